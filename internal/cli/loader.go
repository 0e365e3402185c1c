package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/idlecore/internal/scenario"
)

// LoadError represents an error that occurred while loading a scenario.
type LoadError struct {
	Code    string
	Message string
	Path    string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadScenario reads and validates a scenario file.
//
// Errors are always *LoadError: ErrCodeNotFound for a missing path,
// ErrCodeLoadFailed for an unreadable file or unsupported extension, and
// ErrCodeInvalidScenario for parse, schema and structural failures.
func LoadScenario(path string) (*scenario.Scenario, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenario not found: %s", path), Path: path}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "error accessing scenario", Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("scenario is a directory: %s", path), Path: path}
	}

	if _, err := scenario.FormatFor(path); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Path: path}
	}

	sc, err := scenario.Load(path)
	if err != nil {
		return nil, &LoadError{
			Code:    ErrCodeInvalidScenario,
			Message: fmt.Sprintf("invalid scenario %s", filepath.Base(path)),
			Path:    path,
			Err:     err,
		}
	}
	return sc, nil
}

// loadOrFail loads a scenario, reporting failures through the formatter.
// Missing files are command errors; invalid content is a validation failure.
func loadOrFail(f *OutputFormatter, path string) (*scenario.Scenario, error) {
	sc, err := LoadScenario(path)
	if err == nil {
		f.VerboseLog("Loaded scenario %q from %s", sc.Name, path)
		return sc, nil
	}

	var le *LoadError
	if !errors.As(err, &le) {
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	exitCode := ExitCommandError
	if le.Code == ErrCodeInvalidScenario {
		exitCode = ExitFailure
	}
	return nil, f.Fail(exitCode, le.Code, le.Message, le.Err)
}
