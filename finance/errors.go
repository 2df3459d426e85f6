/*
errors.go - Centralized error types for the finance domain

ERROR CATEGORIES:
  1. Validation errors - malformed input (FieldError, ErrInvalid*)
  2. Lookup errors     - ErrNotFound, always tenant-scoped
  3. Conflict errors   - ErrDuplicate (unique constraint hit)

Cross-tenant reads return ErrNotFound, never a permission error, so that
ids from another company are indistinguishable from ids that don't exist.

USAGE:
    if errors.Is(err, finance.ErrNotFound) { ... }

    var fe *finance.FieldError
    if errors.As(err, &fe) { ... fe.Field ... }
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a record does not exist for the company.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint rejects a write
	// (e.g. an email already registered).
	ErrDuplicate = errors.New("already exists")

	// ErrValidation is the parent of every input validation failure.
	ErrValidation = errors.New("validation failed")

	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidDate   = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidWindow = fmt.Errorf("%w: invalid window", ErrValidation)

	// ErrImmutableField is returned when an update touches a field that is
	// fixed after commit (amount, type, category, date).
	ErrImmutableField = fmt.Errorf("%w: field cannot be changed", ErrValidation)

	// ErrInvalidCredentials is returned on login with a bad email or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FieldError names the offending input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrDuplicate)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
