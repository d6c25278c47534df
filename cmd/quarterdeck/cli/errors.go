// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ErrorCategory classifies command errors so scripts wrapping the CLI
// can decide between fixing input, retrying, and reporting a bug
// without parsing message text.
type ErrorCategory string

const (
	// CategoryValidation: the operator provided invalid input. Fix
	// the arguments and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: a referenced resource does not exist.
	// Retrying with the same arguments will not help.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryTransient: a temporary failure (network error, console
	// timeout). Back off and retry.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: an unexpected failure. Report it rather than
	// retry.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized command error. It wraps an inner error,
// preserving the chain for errors.Is and errors.As.
type ToolError struct {
	Category ErrorCategory
	Err      error
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// Validation creates a validation error: the operator provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error: a referenced resource does not exist.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error: a temporary failure that may succeed on retry.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure or bug.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// ExitError signals a non-zero exit code without an extra error line.
// Commands that already printed their own output return this; main
// checks for the ExitCode method and exits silently with the code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code for main to use.
func (e *ExitError) ExitCode() int {
	return e.Code
}
