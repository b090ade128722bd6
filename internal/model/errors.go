package model

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing entity. Wrap with context at the call site.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict reports a compare-and-swap failure on a lead's lock
// version. The caller must re-fetch and retry.
var ErrVersionConflict = errors.New("lock version conflict")

// ValidationError rejects missing or out-of-range input before any side
// effects happen.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
