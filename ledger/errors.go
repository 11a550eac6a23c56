/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds in one place. The write path wraps these with field
  context; the API layer maps them onto HTTP statuses.

ERROR CATEGORIES:
  1. Lookup errors     - group/member/user absent
  2. Permission errors - actor is not an active or admin member
  3. Validation errors - bad amounts, self-transfers, future dates

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, ledger.ErrForbidden) { ... }

  Validation failures carry the offending field:

    var verr *ledger.ValidationError
    if errors.As(err, &verr) { render(verr.Field, verr.Message) }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced group, member, or user does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor is not an active member, or
	// not an admin where admin is required.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidAmount is returned for non-positive payment or settlement
	// amounts, and for non-positive expense amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrSelfTransfer is returned when a payment or settlement names the
	// same user on both sides.
	ErrSelfTransfer = errors.New("transfer to self")

	// ErrFutureDate is returned when a payment is dated after today.
	ErrFutureDate = errors.New("date in the future")

	// ErrDuplicateSplit is returned when an expense already has a split for
	// the user.
	ErrDuplicateSplit = errors.New("duplicate split for user")
)

// =============================================================================
// STRUCTURED ERRORS - Carry field context
// =============================================================================

// ValidationError is a field-scoped validation failure. It unwraps to one of
// the sentinel errors above so callers can branch on kind while still
// rendering the field-level message.
type ValidationError struct {
	Field   string
	Message string
	Kind    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// Invalid constructs a field-scoped ValidationError of the given kind.
func Invalid(field, message string, kind error) error {
	return &ValidationError{Field: field, Message: message, Kind: kind}
}

// NotFoundError identifies which record was missing.
type NotFoundError struct {
	Resource string // "group", "member", "user", "expense", ...
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound constructs a NotFoundError for the given resource.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is the caller's fault (maps to a
// 4xx response) rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrFutureDate) ||
		errors.Is(err, ErrDuplicateSplit)
}
