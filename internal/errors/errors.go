// Package errors provides domain-specific error types and sentinel errors
// shared by the FAQ engine, the corpus loaders and the LINE transport.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Check them with errors.Is.
var (
	// ErrNotFound indicates a requested object or file does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates a malformed request, record or argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorpusUnavailable indicates no usable FAQ corpus could be loaded.
	ErrCorpusUnavailable = errors.New("faq corpus unavailable")

	// ErrRateLimitExceeded indicates a caller ran out of tokens.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err wraps ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsCorpusUnavailable reports whether err wraps ErrCorpusUnavailable.
func IsCorpusUnavailable(err error) bool { return errors.Is(err, ErrCorpusUnavailable) }

// IsRateLimitExceeded reports whether err wraps ErrRateLimitExceeded.
func IsRateLimitExceeded(err error) bool { return errors.Is(err, ErrRateLimitExceeded) }

// RecordError describes a corpus record that failed validation.
// It unwraps to ErrInvalidInput.
type RecordError struct {
	Source string // file or table the record came from
	Index  int
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("invalid faq record %s[%d]: %s", e.Source, e.Index, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrInvalidInput
}

// NewRecordError creates a new record error.
func NewRecordError(source string, index int, reason string) *RecordError {
	return &RecordError{Source: source, Index: index, Reason: reason}
}
