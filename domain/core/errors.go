package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrModelNotFound   = fmt.Errorf("%w: model", ErrNotFound)
	ErrRunNotFound     = fmt.Errorf("%w: run", ErrNotFound)
	ErrOutcomeNotFound = fmt.Errorf("%w: outcome", ErrNotFound)

	// Uniqueness errors
	ErrAlreadyExists = errors.New("resource already exists")

	// Determinism errors
	ErrSeedMismatch = errors.New("seed mismatch")
	ErrHashMismatch = errors.New("hash mismatch")

	// Run lifecycle errors
	ErrRunActive   = errors.New("run still active")
	ErrRunFinished = errors.New("run already finished")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrSeedMismatch) ||
		errors.Is(err, ErrHashMismatch)
}
