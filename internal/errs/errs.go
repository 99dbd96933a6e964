// Package errs defines the coded errors page components, the session provider,
// and the API client surface to scenarios.
package errs

import (
	"errors"
)

// Code is a suite error code.
type Code string

const (
	// Configuration covers bad engine, grid, or timing settings. Fatal at setup.
	Configuration Code = "configuration"
	// Readiness means a page did not reach its expected state before the timeout.
	Readiness Code = "readiness"
	// ElementNotFound means a locator or an exact option match resolved to nothing.
	ElementNotFound Code = "element_not_found"
	// NoMatchingElement means a bounded wait for a non-empty match set came back empty.
	NoMatchingElement Code = "no_matching_element"
	// UnexpectedOutcome means an edge observed the other branch of an outcome.
	UnexpectedOutcome Code = "unexpected_outcome"
	Internal          Code = "internal"
)

// Error is a coded suite error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the outermost error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// Is reports whether any coded error in err's chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		var coded *Error
		if !errors.As(err, &coded) {
			return false
		}
		if coded.Code == code {
			return true
		}
		err = coded.Err
	}
	return false
}

// ExitCode maps an error code to a process exit status for the CLI.
func ExitCode(code Code) int {
	switch code {
	case Configuration:
		return 2
	case Readiness:
		return 3
	case ElementNotFound, NoMatchingElement:
		return 4
	case UnexpectedOutcome:
		return 5
	default:
		return 1
	}
}
