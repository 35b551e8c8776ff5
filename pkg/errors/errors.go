package errors

import (
	"errors"
	"fmt"
)

// Common application errors with proper types for error handling

var (
	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates the operation is already in progress or was already done
	ErrConflict = errors.New("conflict")

	// ErrUnavailable indicates a collaborator service could not be reached
	ErrUnavailable = errors.New("upstream unavailable")
)

// InvalidInputError creates an invalid input error with context
func InvalidInputError(field, reason string) error {
	return fmt.Errorf("%s: %s: %w", field, reason, ErrInvalidInput)
}

// UnavailableError wraps err as an upstream availability failure
func UnavailableError(service string, err error) error {
	return fmt.Errorf("%s: %w: %w", service, ErrUnavailable, err)
}
