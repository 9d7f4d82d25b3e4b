package core

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable, user-visible failure classification
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindProvider      ErrorKind = "provider"
	KindStateConflict ErrorKind = "conflict"
	KindNotUnderstood ErrorKind = "not_understood"
)

// Error carries an ErrorKind alongside a human-readable message.
// Provider-kind errors are the only retryable ones.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports bad action slots or arguments
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a Cloud Control failure
func ProviderError(msg string, err error) *Error {
	return &Error{Kind: KindProvider, Msg: msg, Err: err}
}

// ConflictError reports a request that contradicts current state
func ConflictError(format string, args ...any) *Error {
	return &Error{Kind: KindStateConflict, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, defaulting to provider
// for untyped errors since those come from I/O paths.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProvider
}

// Retryable reports whether err is worth one more attempt
func Retryable(err error) bool {
	return KindOf(err) == KindProvider
}
