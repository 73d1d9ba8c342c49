/*
store.go - Collaborator interfaces for the leave engine

PURPOSE:
  Defines the boundary between the engine and its external collaborators:
  the directory of employees, the ledger of leave requests, and the balance
  trail. Implementations live in store/memory and store/sqlite.

CONCURRENCY CONTRACT:
  CompareAndSetStatus is the engine's optimistic guard: it transitions a
  request only if its current status matches the expected one, and reports
  ErrConflict otherwise. A lost-update race (two callers reading pending,
  both writing) is a correctness bug in any implementation.

  TxStore.WithTx executes fn as one atomic unit. The engine uses it so a
  status transition, the balance mutation it implies and the trail entry
  recording it either all apply or none do.

SEE ALSO:
  - store/memory/memory.go: in-memory implementation (tests, dev)
  - store/sqlite/sqlite.go: SQLite implementation (production)
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// DIRECTORY - Employee records
// =============================================================================

type Directory interface {
	// GetEmployee returns the employee or ErrNotFound.
	GetEmployee(ctx context.Context, id string) (*Employee, error)

	// GetDirectReports returns employees whose manager reference equals
	// managerID. One level only, no org-chart traversal.
	GetDirectReports(ctx context.Context, managerID string) ([]*Employee, error)

	// AdjustBalance applies a relative change to used days, atomically
	// against the current value. It enforces 0 ≤ used ≤ total: an overdraft
	// fails with ErrInsufficientBalance, a negative result with ErrConflict.
	AdjustBalance(ctx context.Context, employeeID string, deltaUsed int) (*Employee, error)
}

// =============================================================================
// LEDGER - Leave request records
// =============================================================================

// StatusUpdate carries the fields CompareAndSetStatus writes. Decision
// fields are replaced wholesale; zero values clear them, which is how the
// approved→cancelled reversal drops DecidedBy/DecisionDate.
type StatusUpdate struct {
	Status          Status
	DecidedBy       string
	DecisionDate    *time.Time
	RejectionReason string
	UpdatedAt       time.Time
}

type Ledger interface {
	// Get returns the request or ErrNotFound.
	Get(ctx context.Context, id string) (*LeaveRequest, error)

	// Create appends a new request record.
	Create(ctx context.Context, req *LeaveRequest) error

	// CompareAndSetStatus transitions the request iff its current status
	// equals expected, returning the updated record. A status mismatch is
	// ErrConflict; UpdatedAt never decreases.
	CompareAndSetStatus(ctx context.Context, id string, expected Status, update StatusUpdate) (*LeaveRequest, error)

	// Query returns requests owned by any of employeeIDs; nil means all.
	Query(ctx context.Context, employeeIDs []string) ([]*LeaveRequest, error)
}

// =============================================================================
// BALANCE TRAIL - Append-only audit of balance mutations
// =============================================================================

type BalanceTrail interface {
	// AppendEntry records a balance mutation. Append-only, no update or delete.
	AppendEntry(ctx context.Context, entry BalanceEntry) error

	// Entries returns all trail entries for an employee, oldest first.
	Entries(ctx context.Context, employeeID string) ([]BalanceEntry, error)
}

// =============================================================================
// COMPOSED STORES
// =============================================================================

// Store is the full collaborator surface the engine operates on.
type Store interface {
	Directory
	Ledger
	BalanceTrail
}

// TxStore adds atomic execution. If fn returns an error the unit is rolled
// back; otherwise it is committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
