/*
engine.go - Leave request lifecycle engine

PURPOSE:
  Applies the create/approve/reject/cancel transitions and their balance
  side-effects. This is the only writer of request status and employee
  balance in the system.

STATE MACHINE:

  ┌─────────┐  approve   ┌──────────┐   cancel    ┌───────────┐
  │ pending │──────────▶ │ approved │───────────▶ │ cancelled │
  └─────────┘            └──────────┘  (credits   └───────────┘
     │    │                                days)        ▲
     │    │  reject      ┌──────────┐                   │
     │    └────────────▶ │ rejected │   (terminal)      │
     │                   └──────────┘                   │
     └──────────────────────────────────────────────────┘
                          cancel

  approved→cancelled is the only exit from a terminal state; it reverses
  the balance deduction in the same atomic unit.

BALANCE RULES:
  Only annual leave consumes balance. Creation pre-checks remaining ≥ days;
  approval re-checks and deducts atomically with the status CAS; cancelling
  an approved annual request credits the days back. Every mutation appends
  a trail entry (trail.go).

CONCURRENCY:
  Decide and cancel run inside TxStore.WithTx with a compare-and-set on
  status. When two callers race on the same pending request exactly one
  transition wins; the loser observes ErrConflict or ErrInvalidState.

SEE ALSO:
  - authz.go:      permission checks applied before any mutation
  - visibility.go: list operation
  - store.go:      collaborator contracts
*/
package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store    TxStore
	Calendar HolidayCalendar

	// Now and NewID are injectable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

func NewEngine(store TxStore) *Engine {
	return &Engine{
		Store:    store,
		Calendar: NoHolidays{},
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Engine) calendar() HolidayCalendar {
	if e.Calendar != nil {
		return e.Calendar
	}
	return NoHolidays{}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput describes a new request. Days is optional: zero means derive;
// a non-zero value must match the derived working-day count.
type CreateInput struct {
	StartDate time.Time
	EndDate   time.Time
	Days      int
	Type      LeaveType
	Reason    string
}

// CreateRequest validates in and persists a new pending request owned by
// the actor. A span overlapping one of the actor's pending or approved
// requests is rejected; rejected and cancelled requests free their dates.
// Annual requests are pre-checked against remaining balance so an overdraft
// is not discovered only at approval time.
func (e *Engine) CreateRequest(ctx context.Context, actorID string, in CreateInput) (*LeaveRequest, error) {
	actor, err := e.Store.GetEmployee(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown leave type %q", ErrInvalidRequest, in.Type)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason must not be empty", ErrInvalidRequest)
	}
	if DayOf(in.EndDate).Before(DayOf(in.StartDate)) {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidRequest)
	}

	days := BusinessDays(in.StartDate, in.EndDate, e.calendar())
	if days == 0 {
		return nil, fmt.Errorf("%w: no working days between %s and %s",
			ErrInvalidRequest, DayOf(in.StartDate).Format("2006-01-02"), DayOf(in.EndDate).Format("2006-01-02"))
	}
	if in.Days != 0 && in.Days != days {
		return nil, fmt.Errorf("%w: supplied day count %d does not match %d working days",
			ErrInvalidRequest, in.Days, days)
	}

	start, end := DayOf(in.StartDate), DayOf(in.EndDate)
	existing, err := e.Store.Query(ctx, []string{actor.ID})
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.Status != StatusPending && r.Status != StatusApproved {
			continue
		}
		// Inclusive day spans overlap when neither ends before the other starts.
		if !start.After(r.EndDate) && !r.StartDate.After(end) {
			return nil, fmt.Errorf("%w: dates overlap %s request %s (%s to %s)",
				ErrInvalidRequest, r.Status, r.ID,
				r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
		}
	}

	if in.Type.ConsumesBalance() && actor.Balance.Remaining < days {
		return nil, &InsufficientBalanceError{
			EmployeeID: actor.ID,
			Remaining:  actor.Balance.Remaining,
			Requested:  days,
		}
	}

	now := e.now()
	req := &LeaveRequest{
		ID:         e.newID(),
		EmployeeID: actor.ID,
		StartDate:  start,
		EndDate:    end,
		Days:       days,
		Type:       in.Type,
		Reason:     reason,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.Store.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// =============================================================================
// LIST
// =============================================================================

// ListRequests returns the requests visible to the actor, newest first.
func (e *Engine) ListRequests(ctx context.Context, actorID string) ([]*LeaveRequest, error) {
	actor, err := e.Store.GetEmployee(ctx, actorID)
	if err != nil {
		return nil, err
	}
	v := &Visibility{Directory: e.Store, Ledger: e.Store}
	return v.VisibleRequests(ctx, actor)
}

// =============================================================================
// DECIDE
// =============================================================================

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// DecideRequest approves or rejects a pending request. Approving an annual
// request deducts its days from the owner's balance atomically with the
// status transition; rejecting requires a non-empty rejection reason.
func (e *Engine) DecideRequest(ctx context.Context, actorID, requestID string, decision Decision, rejectionReason string) (*LeaveRequest, error) {
	var action Action
	switch decision {
	case DecisionApprove:
		action = ActionApprove
	case DecisionReject:
		action = ActionReject
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidRequest, decision)
	}

	var decided *LeaveRequest
	err := e.Store.WithTx(ctx, func(s Store) error {
		actor, err := s.GetEmployee(ctx, actorID)
		if err != nil {
			return err
		}
		req, err := s.Get(ctx, requestID)
		if err != nil {
			return err
		}
		owner, err := s.GetEmployee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}

		if req.Status != StatusPending {
			return &InvalidStateError{RequestID: req.ID, Current: req.Status, Attempted: action}
		}
		if !Allowed(actor, action, req, owner) {
			return fmt.Errorf("%w: %s may not %s request %s", ErrForbidden, actor.ID, action, req.ID)
		}

		now := e.now()
		update := StatusUpdate{
			DecidedBy:    actor.ID,
			DecisionDate: &now,
			UpdatedAt:    now,
		}
		switch decision {
		case DecisionApprove:
			update.Status = StatusApproved
			if req.Type.ConsumesBalance() && owner.Balance.Remaining < req.Days {
				return &InsufficientBalanceError{
					EmployeeID: owner.ID,
					Remaining:  owner.Balance.Remaining,
					Requested:  req.Days,
				}
			}
		case DecisionReject:
			reason := strings.TrimSpace(rejectionReason)
			if reason == "" {
				return fmt.Errorf("%w: rejection reason must not be empty", ErrInvalidRequest)
			}
			update.Status = StatusRejected
			update.RejectionReason = reason
		}

		updated, err := s.CompareAndSetStatus(ctx, req.ID, StatusPending, update)
		if err != nil {
			return err
		}
		if decision == DecisionApprove && req.Type.ConsumesBalance() {
			if _, err := s.AdjustBalance(ctx, owner.ID, req.Days); err != nil {
				return err
			}
			if err := s.AppendEntry(ctx, ConsumptionEntry(e.newID(), updated, now)); err != nil {
				return err
			}
		}
		decided = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// CancelRequest cancels a pending or approved request. Cancelling an
// approved annual request credits its days back and clears the decision
// fields; cancelling a rejected or already cancelled request is
// ErrInvalidState.
func (e *Engine) CancelRequest(ctx context.Context, actorID, requestID string) (*LeaveRequest, error) {
	var cancelled *LeaveRequest
	err := e.Store.WithTx(ctx, func(s Store) error {
		actor, err := s.GetEmployee(ctx, actorID)
		if err != nil {
			return err
		}
		req, err := s.Get(ctx, requestID)
		if err != nil {
			return err
		}
		owner, err := s.GetEmployee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}

		if !Allowed(actor, ActionCancel, req, owner) {
			return fmt.Errorf("%w: %s may not cancel request %s", ErrForbidden, actor.ID, req.ID)
		}

		now := e.now()
		switch req.Status {
		case StatusPending:
			updated, err := s.CompareAndSetStatus(ctx, req.ID, StatusPending, StatusUpdate{
				Status:    StatusCancelled,
				UpdatedAt: now,
			})
			if err != nil {
				return err
			}
			cancelled = updated

		case StatusApproved:
			// Reversal path: decision fields are cleared so the
			// decidedBy-iff-decided invariant keeps holding.
			updated, err := s.CompareAndSetStatus(ctx, req.ID, StatusApproved, StatusUpdate{
				Status:    StatusCancelled,
				UpdatedAt: now,
			})
			if err != nil {
				return err
			}
			if req.Type.ConsumesBalance() {
				if _, err := s.AdjustBalance(ctx, owner.ID, -req.Days); err != nil {
					return err
				}
				if err := s.AppendEntry(ctx, ReversalEntry(e.newID(), updated, now)); err != nil {
					return err
				}
			}
			cancelled = updated

		default:
			return &InvalidStateError{RequestID: req.ID, Current: req.Status, Attempted: ActionCancel}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// =============================================================================
// TRAIL
// =============================================================================

// Trail returns the balance trail for employeeID. Employees read their own
// trail; hr and admin read anyone's.
func (e *Engine) Trail(ctx context.Context, actorID, employeeID string) ([]BalanceEntry, error) {
	actor, err := e.Store.GetEmployee(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != employeeID && actor.Role != RoleHR && actor.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: %s may not read trail of %s", ErrForbidden, actor.ID, employeeID)
	}
	if _, err := e.Store.GetEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	return e.Store.Entries(ctx, employeeID)
}
