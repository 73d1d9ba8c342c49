/*
Package leave implements the leave-request lifecycle and balance engine.

PURPOSE:
  This package contains the rules that must hold no matter how requests
  reach the system or where they are stored: the state machine governing a
  request's status, the authorization table deciding who may act on it, the
  visibility rules deciding who may see it, and the accounting invariant
  linking approved requests to an employee's remaining balance.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: identity, role, manager reference and leave balance
  - Balance: total/used/remaining day counters (remaining is derived)
  - LeaveRequest: the primary entity, created pending and decided once

DESIGN PRINCIPLES:
  1. Transport-free: no HTTP, no sessions; callers supply an actor id
  2. Typed failures: every rule violation is a sentinel error (errors.go)
  3. Atomicity: status transitions and balance mutations share one
     transactional unit (see TxStore in store.go)

SEE ALSO:
  - engine.go:     lifecycle operations (create/list/decide/cancel)
  - authz.go:      the (role, action, relation) decision table
  - visibility.go: role-scoped request listing
  - trail.go:      append-only balance audit entries
*/
package leave

import "time"

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleHR, RoleAdmin:
		return true
	}
	return false
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveType string

const (
	TypeAnnual    LeaveType = "annual"
	TypeSick      LeaveType = "sick"
	TypeUnpaid    LeaveType = "unpaid"
	TypeEmergency LeaveType = "emergency"
)

func (t LeaveType) Valid() bool {
	switch t {
	case TypeAnnual, TypeSick, TypeUnpaid, TypeEmergency:
		return true
	}
	return false
}

// ConsumesBalance reports whether approving a request of this type deducts
// from the employee's balance. Annual leave is the only balance-backed type.
func (t LeaveType) ConsumesBalance() bool { return t == TypeAnnual }

// =============================================================================
// REQUEST STATUS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed from s, except
// the approved→cancelled reversal path handled by the engine.
func (s Status) Terminal() bool { return s != StatusPending }

// =============================================================================
// BALANCE
// =============================================================================

// Balance tracks entitled vs consumed leave days. Remaining is always
// Total − Used; constructors and stores derive it rather than persist it.
type Balance struct {
	Total     int
	Used      int
	Remaining int
}

func NewBalance(total, used int) Balance {
	return Balance{Total: total, Used: used, Remaining: total - used}
}

// Consistent reports whether the accounting invariant holds.
func (b Balance) Consistent() bool {
	return b.Remaining == b.Total-b.Used && b.Used >= 0 && b.Used <= b.Total
}

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is a directory record. ManagerID is a non-owning reference into
// the same entity set; empty means no manager.
type Employee struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Department   string
	Position     string
	ManagerID    string
	Balance      Balance
	CreatedAt    time.Time
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest is the ledger entity. Invariants:
//   - RejectionReason is set iff Status == rejected
//   - DecidedBy/DecisionDate are set iff Status ∈ {approved, rejected}
//   - UpdatedAt never decreases
type LeaveRequest struct {
	ID         string
	EmployeeID string

	StartDate time.Time
	EndDate   time.Time
	Days      int
	Type      LeaveType
	Reason    string

	Status          Status
	DecidedBy       string
	DecisionDate    *time.Time
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}
