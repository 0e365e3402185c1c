package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the run or the scenario itself failed
	ExitCommandError = 2 // the command could not do its job: flags, files, database
)

// Response error codes. The numbering leaves gaps for codes retired with
// earlier commands.
const (
	ErrCodeGeneric         = "E001"
	ErrCodeLoadFailed      = "E004" // unreadable or unparseable scenario file
	ErrCodeNotFound        = "E005" // missing path or run id
	ErrCodeInvalidScenario = "E006"
	ErrCodeStoreFailed     = "E007"
	ErrCodeRunFailed       = "E008" // a tick consumer returned an error
)

// ExitError carries the process exit code out of a cobra RunE.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return WrapExitError(code, message, nil)
}

// WrapExitError returns an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps an error returned by a command to a process exit code.
// Errors that carry no ExitError count as ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}
