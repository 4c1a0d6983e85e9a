package llm

import (
	"errors"
)

// Error types for classifying generation failures. The agent retry loop
// retries TransientError and InvalidError and stops on FatalError.

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// InvalidError marks a response that arrived but could not be parsed or
// failed validation. A new sample from the backend may succeed.
type InvalidError struct {
	err error
}

func (e *InvalidError) Error() string {
	return e.err.Error()
}

func (e *InvalidError) Unwrap() error {
	return e.err
}

// NewInvalidError wraps an error as an invalid-output error.
func NewInvalidError(err error) error {
	return &InvalidError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsInvalid returns true if the error reports unusable generated output.
func IsInvalid(err error) bool {
	var invalid *InvalidError
	return errors.As(err, &invalid)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Kind names the class of an error for logs and metrics:
// "transient", "invalid", "fatal" or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsFatal(err):
		return "fatal"
	case IsInvalid(err):
		return "invalid"
	case IsTransient(err):
		return "transient"
	default:
		return "unknown"
	}
}
