package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/roach88/projmerge/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // glob matched against the scenario file name without extension
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	goldenUpdated bool
	loadFailed    bool
	diff          string // golden vs current snapshot, set on mismatch
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run optimizer scenarios",
		Long: `Run optimizer scenarios through the test harness.

Each scenario names a plan, the rules to run and assertions about the
firing trace and the final plan. When golden/<scenario>.golden exists
next to a scenario, the trace snapshot must match it byte for byte.
With --verbose a mismatch prints the difference.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  projmerge test ./testdata/scenarios
  projmerge test ./testdata/scenarios --filter "three_*"
  projmerge test ./testdata/scenarios --update
  projmerge test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	w := cmd.OutOrStdout()
	asJSON := opts.Format == "json"
	if len(files) == 0 && !asJSON {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		r := evaluateScenario(cmd.Context(), file, opts.Update)
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, r)
		if !asJSON {
			printScenario(w, r, opts.Verbose)
		}
	}

	if asJSON {
		return outputTestJSON(w, result)
	}
	return outputTestText(w, result)
}

// findScenarioFiles returns the .yaml and .yml files under dir in lexical
// order. golden/ directories are not searched.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, "scenario"); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir():
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	slices.Sort(files)
	return files, err
}

// evaluateScenario runs one scenario file. Assertions and, when present,
// the golden snapshot must both pass. In update mode the golden file is
// rewritten instead of compared.
func evaluateScenario(ctx context.Context, file string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:       filepath.Base(file),
			Errors:     []string{fmt.Sprintf("failed to load scenario: %v", err)},
			loadFailed: true,
		}
	}

	r := ScenarioResult{Name: scenario.Name}
	result, err := harness.RunContext(ctx, scenario)
	if err != nil {
		r.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return r
	}

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		r.Errors = []string{fmt.Sprintf("failed to marshal trace: %v", err)}
		return r
	}

	goldenPath := goldenFilePath(file)
	if update {
		if err := writeGolden(goldenPath, snapshot); err != nil {
			r.Errors = []string{fmt.Sprintf("failed to update golden file: %v", err)}
			return r
		}
		r.Pass, r.goldenUpdated = true, true
		return r
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		// assertions only
	case err != nil:
		r.Errors = []string{fmt.Sprintf("golden comparison failed: %v", err)}
		return r
	case !bytes.Equal(golden, snapshot):
		r.Errors = []string{"trace does not match golden file"}
		r.diff = cmp.Diff(string(golden), string(snapshot))
		return r
	}

	r.Pass = result.Pass
	r.Errors = result.Errors
	return r
}

func printScenario(w io.Writer, r ScenarioResult, verbose bool) {
	switch {
	case r.Pass && r.goldenUpdated:
		fmt.Fprintf(w, "✓ %s (golden updated)\n", r.Name)
		return
	case r.Pass:
		fmt.Fprintf(w, "✓ %s\n", r.Name)
		return
	}

	fmt.Fprintf(w, "✗ %s\n", r.Name)
	if r.loadFailed {
		fmt.Fprintf(w, "  Load error: %s\n", strings.TrimPrefix(r.Errors[0], "failed to load scenario: "))
		return
	}
	if r.diff != "" {
		fmt.Fprintln(w, "  Golden file mismatch (run with --update to regenerate)")
		if verbose {
			fmt.Fprint(w, indentBlock(r.diff, "    "))
		}
		return
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGolden(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, snapshot, 0644)
}

func outputTestJSON(w io.Writer, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := writeJSON(w, response); err != nil {
		return err
	}
	return testFailure(result)
}

func outputTestText(w io.Writer, result TestResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if err := testFailure(result); err != nil {
		return err
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

func testFailure(result TestResult) error {
	if result.Failed == 0 {
		return nil
	}
	return &ExitError{
		Code:    ExitFailure,
		ErrCode: ErrCodeTestFailed,
		Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
	}
}
