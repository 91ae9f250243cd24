package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/projmerge/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Plans  int                        `json:"plans"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan-file-or-dir>",
		Short: "Check plans and report every problem",
		Long: `Check CUE plan files without printing the compiled plans.

Unlike compile, which stops each plan at its first problem, validate
reports every unresolved symbol, duplicate output, row width mismatch
and duplicate node id in every plan.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result, err := ValidatePlans(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	formatter.VerboseLog("Checked %d plan(s) in %s", result.Plans, path)

	if !result.Valid {
		return outputValidationErrors(formatter, result.Errors)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidatePlans checks every plan under path. The returned error is set
// only when the path itself cannot be loaded; plan problems are reported
// in the result.
func ValidatePlans(path string) (*ValidationResult, error) {
	loadResult, loadErrors := LoadPlans(path, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	result := &ValidationResult{
		Valid: len(loadErrors) == 0,
		Plans: len(loadResult.Plans),
	}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, toValidationError(err))
	}
	return result, nil
}

// toValidationError converts a load error to the compiler's validation error.
func toValidationError(err error) compiler.ValidationError {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
	}
	field := loadErr.Field
	if field == "" {
		field = "load"
	}
	line := 0
	if loadErr.Pos.IsValid() {
		line = loadErr.Pos.Line()
	}
	return compiler.ValidationError{
		Field:   field,
		Message: loadErr.Message,
		Code:    loadErr.Code,
		Line:    line,
	}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d plan(s) valid\n", result.Plans)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
