package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrEmptyRequirements = errors.New("requirements are empty")
	ErrNoCandidates      = errors.New("candidate id list is empty")
	ErrUnknownBodyType   = errors.New("unknown body type")
	ErrUnknownFuelType   = errors.New("unknown fuel type")
	ErrUnknownUseCase    = errors.New("unknown use-case tag")
	ErrInvalidBudget     = errors.New("invalid budget range")
	ErrVehicleNotFound   = errors.New("vehicle not found")
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
