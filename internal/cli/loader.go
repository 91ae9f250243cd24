package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/projmerge/internal/compiler"
)

// LoadMode controls how errors are handled during plan loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the plans loaded from a file or directory.
type LoadResult struct {
	Plans     []compiler.Compiled
	FileCount int // Number of CUE files read
}

// LoadError represents an error that occurred during plan loading.
type LoadError struct {
	Code    string
	Field   string // plan file field path, e.g. "plans.chain.nodes.p1.b"
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + e.Message
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Detail returns the field-qualified message.
func (e *LoadError) Detail() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// LoadPlans compiles the plans in a CUE file, or in every CUE file under
// a directory (sorted by path). Plan names must be unique across files.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadPlans(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("plan path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing plan path: %v", err)}}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
	}

	result := &LoadResult{FileCount: len(files)}
	var errs []error
	seen := make(map[string]string)

	for _, file := range files {
		plans, fileErrs := loadFile(file, mode)
		for _, fileErr := range fileErrs {
			errs = append(errs, convertCompileError(fileErr, file))
			if mode == LoadModeFailFast {
				return result, errs
			}
		}

		for _, p := range plans {
			if prev, dup := seen[p.Name]; dup {
				errs = append(errs, &LoadError{
					Code:    compiler.ErrDuplicateName,
					Message: fmt.Sprintf("plan %q is declared in both %s and %s", p.Name, prev, file),
				})
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			seen[p.Name] = file
			result.Plans = append(result.Plans, p)
		}
	}

	return result, errs
}

// loadFile compiles one file. In collect-all mode every problem of every
// plan is reported, and plans are returned only when the file is clean.
func loadFile(file string, mode LoadMode) ([]compiler.Compiled, []error) {
	if mode == LoadModeFailFast {
		plans, err := compiler.CompileFile(file)
		if err != nil {
			return nil, []error{err}
		}
		return plans, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("read %s: %v", file, err)}}
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(file))
	if errs := compiler.CheckPlans(v); len(errs) > 0 {
		return nil, errs
	}
	plans, err := compiler.CompilePlans(v)
	if err != nil {
		return nil, []error{err}
	}
	return plans, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, file string) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := compileErr.Code
		if code == "" {
			code = ErrCodeBuildFailed
		}
		return &LoadError{
			Code:    code,
			Field:   compileErr.Field,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", file, err),
	}
}

// Error code constants - unified across all CLI commands.
// Plan compile errors keep the compiler's E1xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Plan file could not be read
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeOptimize    = "E008" // Optimizer runtime error
	ErrCodeStore       = "E009" // Trace store error
	ErrCodeTestFailed  = "E_TEST_FAILED"
)
