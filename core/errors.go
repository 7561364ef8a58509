package core

import (
	"errors"
	"fmt"
)

// ClassifiedError is the terminal error type surfaced by the engine.
// It wraps the original failure without mutating it and adds a stable
// code plus a retry hint for programmatic branching.
type ClassifiedError struct {
	Code      ErrorCode // Stable code drawn from the fixed taxonomy
	Message   string    // Human-readable description of the failure
	Retryable bool      // Whether another attempt is expected to help
	Err       error     // Underlying cause; nil when classified from a bare value
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s (retryable=%t)", e.Code, e.Message, e.Retryable)
}

// Unwrap returns the underlying error for error chaining.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NewClassifiedError builds a ClassifiedError for the given code. The
// retry hint comes from the fixed per-code lookup, never from the
// caller, so a code always carries the same retry semantics.
func NewClassifiedError(code ErrorCode, message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Code:      code,
		Message:   message,
		Retryable: retryableByCode[code],
		Err:       cause,
	}
}

// CodeOf extracts the stable code from err, classifying it first if it
// has not been classified yet.
func CodeOf(err error) ErrorCode {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return Classify(err).Code
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return Classify(err).Retryable
}

// Validation errors with actionable guidance.
var (
	ErrNoCollaborator = errors.New("no collaborator: pass a Collaborator func to Session.Start or NewOrchestrator")
)
