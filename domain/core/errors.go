package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrRunNotFound    = fmt.Errorf("%w: run", ErrNotFound)
	ErrPlateNotFound  = fmt.Errorf("%w: plate", ErrNotFound)
	ErrTensorNotFound = fmt.Errorf("%w: aligned tensor", ErrNotFound)

	// Validation errors
	ErrCurveShapeMismatch = errors.New("curve sequences have unequal lengths")
	ErrNonMonotonicTime   = errors.New("curve times are not strictly increasing")
	ErrEmptyPlate         = errors.New("plate has no colony positions")
	ErrShapeMismatch      = errors.New("plate array shape mismatch")
	ErrInvalidSettings    = errors.New("invalid analysis settings")

	// Extraction errors
	ErrUnknownMetaPhenotype = errors.New("unknown meta phenotype")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrCurveShapeMismatch) ||
		errors.Is(err, ErrNonMonotonicTime) ||
		errors.Is(err, ErrEmptyPlate) ||
		errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrInvalidSettings)
}
