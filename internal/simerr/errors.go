// Package simerr defines the error taxonomy shared by the simulation core.
//
// Two classes of error are surfaced synchronously to callers:
//   - Configuration errors (ErrCodeInvalidArgument): non-positive durations,
//     non-finite relative speeds, invalid node dimensions.
//   - Integrity errors (ErrCodeInvalidOperation): duplicate consumer ids,
//     edges referencing unknown nodes.
//
// Both are detected before any state is mutated, so a rejected operation
// never leaves the scheduler or graph partially updated. Neither is retried.
package simerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes simulation errors.
type Code string

const (
	// ErrCodeInvalidArgument indicates a structurally invalid input value.
	ErrCodeInvalidArgument Code = "INVALID_ARGUMENT"

	// ErrCodeInvalidOperation indicates the operation conflicts with current state.
	ErrCodeInvalidOperation Code = "INVALID_OPERATION"
)

// Error is a structured simulation error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that rejected the input (e.g. "UpsertEdge").
	Op string

	// Message is a human-readable description.
	Message string

	// Details contains additional context such as offending ids.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Details[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

// InvalidArgument creates a configuration error.
func InvalidArgument(op, message string, details ...string) *Error {
	return newError(ErrCodeInvalidArgument, op, message, details)
}

// InvalidOperation creates an integrity error.
func InvalidOperation(op, message string, details ...string) *Error {
	return newError(ErrCodeInvalidOperation, op, message, details)
}

// newError builds an Error; details are alternating key/value pairs.
func newError(code Code, op, message string, details []string) *Error {
	e := &Error{Code: code, Op: op, Message: message}
	if len(details) > 1 {
		e.Details = make(map[string]string, len(details)/2)
		for i := 0; i+1 < len(details); i += 2 {
			e.Details[details[i]] = details[i+1]
		}
	}
	return e
}

// IsInvalidArgument returns true if err is (or wraps) a configuration error.
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument)
}

// IsInvalidOperation returns true if err is (or wraps) an integrity error.
func IsInvalidOperation(err error) bool {
	return hasCode(err, ErrCodeInvalidOperation)
}

func hasCode(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
