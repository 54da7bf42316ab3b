package services

import (
	"errors"
	"fmt"
	"strings"
)

// Service-level sentinel errors. Repository sentinels (not found,
// insufficient stock) pass through untouched; these cover the rules the
// engine itself enforces.
var (
	// ErrForbidden means the caller lacks the role or ownership required.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition means the requested status change violates the
	// order state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError carries field-level validation messages back to the caller.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
