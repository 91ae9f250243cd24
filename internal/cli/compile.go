package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/projmerge/internal/compiler"
	"github.com/roach88/projmerge/internal/plan"
	"github.com/roach88/projmerge/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledPlan is the JSON form of one compiled plan.
type CompiledPlan struct {
	Name    string            `json:"name"`
	Text    string            `json:"text"`
	Plan    json.RawMessage   `json:"plan"`    // canonical plan encoding
	Symbols map[string]string `json:"symbols"` // symbol -> type ("" when unknown)
}

// CompilationResult holds the compiled plans.
type CompilationResult struct {
	Plans []CompiledPlan `json:"plans"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plan-file-or-dir>",
		Short: "Compile CUE plans and print them",
		Long: `Compile CUE plan files to plan trees.

Every plan under the top-level "plans" struct is compiled, checked for
unresolved symbols, and printed as an indented tree (text) or as its
canonical encoding (json).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadPlans(path, LoadModeCollectAll)

	// Handle load errors (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)
	for _, p := range loadResult.Plans {
		formatter.VerboseLog("Compiled plan: %s", p.Name)
	}

	// Handle compilation errors
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result, err := buildCompilationResult(loadResult.Plans)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writePlansToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// buildCompilationResult encodes each plan canonically.
func buildCompilationResult(plans []compiler.Compiled) (*CompilationResult, error) {
	result := &CompilationResult{Plans: make([]CompiledPlan, 0, len(plans))}
	for _, p := range plans {
		encoded, err := store.MarshalPlan(plan.Encode(p.Plan, nil))
		if err != nil {
			return nil, fmt.Errorf("encode plan %s: %w", p.Name, err)
		}
		symbols := make(map[string]string)
		for s, typ := range p.Symbols.Types() {
			symbols[string(s)] = string(typ)
		}
		result.Plans = append(result.Plans, CompiledPlan{
			Name:    p.Name,
			Text:    plan.Format(p.Plan, nil),
			Plan:    json.RawMessage(encoded),
			Symbols: symbols,
		})
	}
	return result, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d plan(s)\n\n", len(result.Plans))

	for _, p := range result.Plans {
		fmt.Fprintf(formatter.Writer, "Plan %s:\n", p.Name)
		fmt.Fprint(formatter.Writer, indentBlock(p.Text, "  "))
		if formatter.Verbose {
			fmt.Fprintf(formatter.Writer, "  Symbols: %s\n", formatSymbolTypes(p.Symbols))
		}
		fmt.Fprintln(formatter.Writer)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled plans to %s\n", outputFile)
	}

	return nil
}

// formatSymbolTypes renders symbol types sorted by symbol, e.g. "a:bigint, x:?".
func formatSymbolTypes(symbols map[string]string) string {
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		typ := symbols[name]
		if typ == "" {
			typ = "?"
		}
		parts[i] = name + ":" + typ
	}
	return strings.Join(parts, ", ")
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Detail()
	}
	return ErrCodeGeneric, err.Error()
}

// writePlansToFile writes the compilation result to a file as indented JSON.
func writePlansToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plans: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// indentBlock prefixes every line of text.
func indentBlock(text, prefix string) string {
	var buf strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		buf.WriteString(prefix)
		buf.WriteString(line)
	}
	return buf.String()
}
