package store

import (
	"errors"
	"strings"
)

var (
	// ErrAuthRequired is returned when a mutation that needs a session is
	// attempted without one.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNotFound is returned when a referenced mission or reward is missing
	// at the time it is used.
	ErrNotFound = errors.New("not found")
)

// FieldError describes a problem with a single input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError rejects an input before anything is written.
type ValidationError struct {
	Fields []FieldError
}

func newValidationError(flds ...FieldError) error {
	return &ValidationError{Fields: flds}
}

func (err *ValidationError) Error() string {
	parts := make([]string, 0, len(err.Fields))
	for _, f := range err.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
