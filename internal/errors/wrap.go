package errors

import (
	"errors"
	"fmt"
)

// ErrorWrapper attaches module and operation context to errors.
type ErrorWrapper struct {
	module    string
	operation string
}

// NewWrapper creates a new error wrapper with module and operation context.
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{module: module, operation: operation}
}

// Wrap wraps err with a short message. Returns nil if err is nil.
func (w *ErrorWrapper) Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Module:    w.module,
		Operation: w.operation,
		Message:   message,
		Cause:     err,
	}
}

// Wrapf is Wrap with a formatted message.
func (w *ErrorWrapper) Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return w.Wrap(err, fmt.Sprintf(format, args...))
}

// WrappedError carries the failing module/operation next to the cause.
type WrappedError struct {
	Module    string // e.g. "faq", "corpussync"
	Operation string // e.g. "load_corpus"
	Message   string
	Cause     error
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %v", e.Module, e.Operation, e.Message, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// Operation returns "module:operation" of the outermost WrappedError in the
// chain, or "" when there is none. Used as a Sentry tag.
func Operation(err error) string {
	var w *WrappedError
	if errors.As(err, &w) {
		return w.Module + ":" + w.Operation
	}
	return ""
}
