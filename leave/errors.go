/*
errors.go - Centralized error taxonomy for the leave engine

PURPOSE:
  All failure modes in one place. Every operation reports its outcome as a
  typed result; nothing is logged-and-swallowed inside the engine.

ERROR CATEGORIES:
  1. Lookup failures     - ErrNotFound
  2. Authorization       - ErrForbidden
  3. Validation          - ErrInvalidRequest
  4. State machine       - ErrInvalidState
  5. Accounting          - ErrInsufficientBalance
  6. Concurrency         - ErrConflict (lost CAS race)
  7. Collaborators       - ErrStoreUnavailable

USAGE:
  if errors.Is(err, leave.ErrForbidden) { ... }

SEE ALSO:
  - engine.go: produces these errors
  - store/:    stores wrap driver failures in ErrStoreUnavailable
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced request or employee does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor is not permitted to perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when a transition is not allowed from the
	// request's current status.
	ErrInvalidState = errors.New("invalid state for transition")

	// ErrInvalidRequest is returned for malformed input: bad dates, empty
	// reason, unknown type, day-count mismatch, missing rejection reason.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInsufficientBalance is returned when an annual request would
	// overdraw the employee's remaining balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConflict is returned to the loser of a concurrent transition race.
	ErrConflict = errors.New("concurrent transition conflict")

	// ErrStoreUnavailable is returned when a collaborator store fails or
	// times out. It propagates unchanged; retry policy belongs to the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports an annual-leave overdraft.
type InsufficientBalanceError struct {
	EmployeeID string
	Remaining  int
	Requested  int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: %d days remaining, %d requested",
		e.EmployeeID, e.Remaining, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidStateError reports a transition attempted from a terminal status.
type InvalidStateError struct {
	RequestID string
	Current   Status
	Attempted Action
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("request %s is %s, cannot %s", e.RequestID, e.Current, e.Attempted)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input or
// a rule violation, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStoreUnavailable)
}
