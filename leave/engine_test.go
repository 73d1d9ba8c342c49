package leave_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Monday, March 2 2026. All date arithmetic in these tests hangs off this week.
var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time { return monday.AddDate(0, 0, offset) }

type fixture struct {
	engine *leave.Engine
	store  *memory.Store
}

// newFixture returns an engine on a fresh memory store with a deterministic
// clock (one second per call) and sequential ids. Both are mutex-guarded so
// concurrency tests stay race-free.
func newFixture() *fixture {
	store := memory.New()
	engine := leave.NewEngine(store)

	var mu sync.Mutex
	seq := 0
	engine.NewID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	clock := monday.Add(9 * time.Hour)
	engine.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{engine: engine, store: store}
}

func (f *fixture) seed(t *testing.T, id string, role leave.Role, managerID string, total, used int) {
	t.Helper()
	err := f.store.SaveEmployee(context.Background(), &leave.Employee{
		ID:        id,
		Name:      id,
		Email:     id + "@corp.test",
		Role:      role,
		ManagerID: managerID,
		Balance:   leave.NewBalance(total, used),
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, id string) leave.Balance {
	t.Helper()
	emp, err := f.store.GetEmployee(context.Background(), id)
	require.NoError(t, err)
	return emp.Balance
}

func annualWeek() leave.CreateInput {
	return leave.CreateInput{
		StartDate: day(0), // Mon
		EndDate:   day(4), // Fri
		Type:      leave.TypeAnnual,
		Reason:    "family trip",
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateRequest_DerivesBusinessDays(t *testing.T) {
	// GIVEN: an employee with a full balance
	// WHEN: requesting Mon-Fri annual leave
	// THEN: the request is pending with 5 derived days
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, 5, req.Days)
	assert.Equal(t, "alice", req.EmployeeID)
	assert.Empty(t, req.DecidedBy)
	assert.Nil(t, req.DecisionDate)
	assert.Equal(t, req.CreatedAt, req.UpdatedAt)
}

func TestCreateRequest_SpansWeekend(t *testing.T) {
	// Mon through next Mon is 6 working days.
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	in := annualWeek()
	in.EndDate = day(7)
	req, err := f.engine.CreateRequest(context.Background(), "alice", in)
	require.NoError(t, err)
	assert.Equal(t, 6, req.Days)
}

func TestCreateRequest_HolidayReducesSpan(t *testing.T) {
	// GIVEN: Wednesday is a holiday
	// WHEN: requesting Mon-Fri
	// THEN: only 4 days are counted
	f := newFixture()
	f.engine.Calendar = leave.NewHolidaySet(day(2))
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)
	assert.Equal(t, 4, req.Days)
}

func TestCreateRequest_EndBeforeStart_InvalidRequest(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	in := annualWeek()
	in.StartDate, in.EndDate = day(4), day(0)
	_, err := f.engine.CreateRequest(context.Background(), "alice", in)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)
}

func TestCreateRequest_WeekendOnly_InvalidRequest(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	in := annualWeek()
	in.StartDate, in.EndDate = day(5), day(6) // Sat-Sun
	_, err := f.engine.CreateRequest(context.Background(), "alice", in)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)
}

func TestCreateRequest_DayCountMismatch_InvalidRequest(t *testing.T) {
	// GIVEN: Mon-Fri is 5 working days
	// WHEN: the caller claims 7
	// THEN: the mismatch is rejected, not silently corrected
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	in := annualWeek()
	in.Days = 7
	_, err := f.engine.CreateRequest(context.Background(), "alice", in)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)
}

func TestCreateRequest_MatchingDayCountAccepted(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	in := annualWeek()
	in.Days = 5
	req, err := f.engine.CreateRequest(context.Background(), "alice", in)
	require.NoError(t, err)
	assert.Equal(t, 5, req.Days)
}

func TestCreateRequest_EmptyReason_InvalidRequest(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	in := annualWeek()
	in.Reason = "   "
	_, err := f.engine.CreateRequest(context.Background(), "alice", in)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)
}

func TestCreateRequest_UnknownType_InvalidRequest(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	in := annualWeek()
	in.Type = "sabbatical"
	_, err := f.engine.CreateRequest(context.Background(), "alice", in)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)
}

func TestCreateRequest_AnnualOverdraft_InsufficientBalance(t *testing.T) {
	// GIVEN: 3 days remaining
	// WHEN: requesting 5 annual days
	// THEN: the overdraft is caught at creation, not at approval
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 17)

	_, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	var ib *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, 3, ib.Remaining)
	assert.Equal(t, 5, ib.Requested)
}

func TestCreateRequest_SickBypassesBalanceCheck(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 20)

	in := annualWeek()
	in.Type = leave.TypeSick
	req, err := f.engine.CreateRequest(context.Background(), "alice", in)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)
}

func TestCreateRequest_OverlappingSpan_InvalidRequest(t *testing.T) {
	// GIVEN: alice has a pending Mon-Fri request
	// WHEN: she requests a span touching any of those days
	// THEN: the overlap is rejected, whatever the leave type
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)
	ctx := context.Background()

	_, err := f.engine.CreateRequest(ctx, "alice", annualWeek())
	require.NoError(t, err)

	// Identical span.
	_, err = f.engine.CreateRequest(ctx, "alice", annualWeek())
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)

	// Partial overlap on the last day, different type.
	_, err = f.engine.CreateRequest(ctx, "alice", leave.CreateInput{
		StartDate: day(4),
		EndDate:   day(8),
		Type:      leave.TypeSick,
		Reason:    "flu",
	})
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)

	// The following week is free.
	_, err = f.engine.CreateRequest(ctx, "alice", leave.CreateInput{
		StartDate: day(7),
		EndDate:   day(11),
		Type:      leave.TypeAnnual,
		Reason:    "second week",
	})
	require.NoError(t, err)
}

func TestCreateRequest_OverlapScopedToOwner(t *testing.T) {
	// Two employees may take the same week off.
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)
	f.seed(t, "bob", leave.RoleEmployee, "", 20, 0)
	ctx := context.Background()

	_, err := f.engine.CreateRequest(ctx, "alice", annualWeek())
	require.NoError(t, err)
	_, err = f.engine.CreateRequest(ctx, "bob", annualWeek())
	require.NoError(t, err)
}

func TestCreateRequest_TerminalRequestsFreeTheirDates(t *testing.T) {
	// GIVEN: a cancelled and a rejected request over the same week
	// THEN: the week can be requested again
	f := newFixture()
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)
	ctx := context.Background()

	first, err := f.engine.CreateRequest(ctx, "alice", annualWeek())
	require.NoError(t, err)
	_, err = f.engine.CancelRequest(ctx, "alice", first.ID)
	require.NoError(t, err)

	second, err := f.engine.CreateRequest(ctx, "alice", annualWeek())
	require.NoError(t, err)
	_, err = f.engine.DecideRequest(ctx, "hana", second.ID, leave.DecisionReject, "coverage gap")
	require.NoError(t, err)

	_, err = f.engine.CreateRequest(ctx, "alice", annualWeek())
	require.NoError(t, err)
}

func TestCreateRequest_UnknownActor_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.engine.CreateRequest(context.Background(), "ghost", annualWeek())
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// DECIDE
// =============================================================================

func TestDecide_ApproveDeductsBalance(t *testing.T) {
	// GIVEN: alice reports to mark, total=20 used=0, pending 5-day annual request
	// WHEN: mark approves
	// THEN: status=approved, decision fields set, remaining=15
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	approved, err := f.engine.DecideRequest(context.Background(), "mark", req.ID, leave.DecisionApprove, "")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, approved.Status)
	assert.Equal(t, "mark", approved.DecidedBy)
	require.NotNil(t, approved.DecisionDate)
	assert.True(t, approved.UpdatedAt.After(req.UpdatedAt))

	bal := f.balance(t, "alice")
	assert.Equal(t, 5, bal.Used)
	assert.Equal(t, 15, bal.Remaining)
	assert.True(t, bal.Consistent())
}

func TestDecide_RejectStoresReason_NoBalanceEffect(t *testing.T) {
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	rejected, err := f.engine.DecideRequest(context.Background(), "mark", req.ID, leave.DecisionReject, "team is at capacity")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusRejected, rejected.Status)
	assert.Equal(t, "team is at capacity", rejected.RejectionReason)
	assert.Equal(t, "mark", rejected.DecidedBy)
	require.NotNil(t, rejected.DecisionDate)

	bal := f.balance(t, "alice")
	assert.Equal(t, 0, bal.Used)
	assert.Equal(t, 20, bal.Remaining)
}

func TestDecide_RejectWithoutReason_InvalidRequest(t *testing.T) {
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	_, err = f.engine.DecideRequest(context.Background(), "mark", req.ID, leave.DecisionReject, "  ")
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)

	got, err := f.store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, got.Status)
}

func TestDecide_UnknownRequest_NotFound(t *testing.T) {
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)

	_, err := f.engine.DecideRequest(context.Background(), "mark", "nope", leave.DecisionApprove, "")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestDecide_AlreadyDecided_InvalidState(t *testing.T) {
	// No re-deciding a terminal request.
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)
	_, err = f.engine.DecideRequest(context.Background(), "mark", req.ID, leave.DecisionApprove, "")
	require.NoError(t, err)

	_, err = f.engine.DecideRequest(context.Background(), "mark", req.ID, leave.DecisionReject, "changed my mind")
	assert.ErrorIs(t, err, leave.ErrInvalidState)

	// Still exactly one decision timestamp.
	got, err := f.store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
}

func TestDecide_ManagerOfOtherTeam_Forbidden(t *testing.T) {
	// GIVEN: olga reports to mark, not to rita
	// WHEN: rita (manager) tries to approve olga's request
	// THEN: Forbidden, nothing applied
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "rita", leave.RoleManager, "", 20, 0)
	f.seed(t, "olga", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "olga", annualWeek())
	require.NoError(t, err)

	_, err = f.engine.DecideRequest(context.Background(), "rita", req.ID, leave.DecisionApprove, "")
	assert.ErrorIs(t, err, leave.ErrForbidden)

	got, err := f.store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, got.Status)
	assert.Equal(t, 0, f.balance(t, "olga").Used)
}

func TestDecide_ManagerOwnRequest_Forbidden(t *testing.T) {
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "boss", 20, 0)
	f.seed(t, "boss", leave.RoleManager, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "mark", annualWeek())
	require.NoError(t, err)

	_, err = f.engine.DecideRequest(context.Background(), "mark", req.ID, leave.DecisionApprove, "")
	assert.ErrorIs(t, err, leave.ErrForbidden)
}

func TestDecide_HROwnRequest_Allowed(t *testing.T) {
	f := newFixture()
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "hana", annualWeek())
	require.NoError(t, err)

	approved, err := f.engine.DecideRequest(context.Background(), "hana", req.ID, leave.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, approved.Status)
}

func TestDecide_EmployeeRole_Forbidden(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)
	f.seed(t, "bob", leave.RoleEmployee, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	_, err = f.engine.DecideRequest(context.Background(), "bob", req.ID, leave.DecisionApprove, "")
	assert.ErrorIs(t, err, leave.ErrForbidden)
}

func TestDecide_ApproveOverdraft_LeavesEverythingUnchanged(t *testing.T) {
	// GIVEN: a pending 5-day request, but balance drained to 3 remaining
	//        by a later approved request
	// WHEN: approving
	// THEN: InsufficientBalance; status and balance untouched
	f := newFixture()
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	first, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	// A second request eats 17 of the 20 days.
	second, err := f.engine.CreateRequest(context.Background(), "alice", leave.CreateInput{
		StartDate: day(7),
		EndDate:   day(29), // three full weeks + Mon/Tue
		Type:      leave.TypeAnnual,
		Reason:    "long trip",
	})
	require.NoError(t, err)
	assert.Equal(t, 17, second.Days)
	_, err = f.engine.DecideRequest(context.Background(), "hana", second.ID, leave.DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, 3, f.balance(t, "alice").Remaining)

	_, err = f.engine.DecideRequest(context.Background(), "hana", first.ID, leave.DecisionApprove, "")
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	got, err := f.store.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, got.Status)
	assert.Equal(t, 3, f.balance(t, "alice").Remaining)
}

func TestDecide_ApproveSick_NoBalanceEffect(t *testing.T) {
	f := newFixture()
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "", 5, 5)

	in := annualWeek()
	in.Type = leave.TypeSick
	req, err := f.engine.CreateRequest(context.Background(), "alice", in)
	require.NoError(t, err)

	approved, err := f.engine.DecideRequest(context.Background(), "hana", req.ID, leave.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, approved.Status)
	assert.Equal(t, 5, f.balance(t, "alice").Used)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_PendingByOwner(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	cancelled, err := f.engine.CancelRequest(context.Background(), "alice", req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
	assert.Equal(t, 20, f.balance(t, "alice").Remaining)
}

func TestCancel_ApprovedRestoresBalance(t *testing.T) {
	// Full round trip: total=20, approve 5 Mon-Fri days, cancel, back to 20.
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	_, err = f.engine.DecideRequest(context.Background(), "mark", req.ID, leave.DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, 15, f.balance(t, "alice").Remaining)

	cancelled, err := f.engine.CancelRequest(context.Background(), "alice", req.ID)
	require.NoError(t, err)

	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
	// Decision fields are cleared on the reversal path.
	assert.Empty(t, cancelled.DecidedBy)
	assert.Nil(t, cancelled.DecisionDate)

	bal := f.balance(t, "alice")
	assert.Equal(t, 0, bal.Used)
	assert.Equal(t, 20, bal.Remaining)
	assert.True(t, bal.Consistent())
}

func TestCancel_Rejected_InvalidState(t *testing.T) {
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)
	_, err = f.engine.DecideRequest(context.Background(), "mark", req.ID, leave.DecisionReject, "no")
	require.NoError(t, err)

	_, err = f.engine.CancelRequest(context.Background(), "alice", req.ID)
	assert.ErrorIs(t, err, leave.ErrInvalidState)
}

func TestCancel_Twice_InvalidState(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)
	_, err = f.engine.CancelRequest(context.Background(), "alice", req.ID)
	require.NoError(t, err)

	_, err = f.engine.CancelRequest(context.Background(), "alice", req.ID)
	assert.ErrorIs(t, err, leave.ErrInvalidState)
}

func TestCancel_ByUnrelatedEmployee_Forbidden(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)
	f.seed(t, "bob", leave.RoleEmployee, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	_, err = f.engine.CancelRequest(context.Background(), "bob", req.ID)
	assert.ErrorIs(t, err, leave.ErrForbidden)
}

func TestCancel_ManagerCancelsSubordinate(t *testing.T) {
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	cancelled, err := f.engine.CancelRequest(context.Background(), "mark", req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
}

func TestCancel_HRCancelsAnyRequest(t *testing.T) {
	f := newFixture()
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	cancelled, err := f.engine.CancelRequest(context.Background(), "hana", req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
}

// =============================================================================
// BALANCE TRAIL
// =============================================================================

func TestTrail_ApproveAndCancelRoundTrip(t *testing.T) {
	// Approving writes a -5 consumption entry, cancelling a +5 reversal;
	// the trail sums to zero and always mirrors -used.
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)
	_, err = f.engine.DecideRequest(context.Background(), "mark", req.ID, leave.DecisionApprove, "")
	require.NoError(t, err)

	entries, err := f.engine.Trail(context.Background(), "alice", "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, leave.EntryConsumption, entries[0].Type)
	assert.Equal(t, "-5", entries[0].Delta.String())
	assert.Equal(t, req.ID, entries[0].RequestID)

	_, err = f.engine.CancelRequest(context.Background(), "alice", req.ID)
	require.NoError(t, err)

	entries, err = f.engine.Trail(context.Background(), "alice", "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, leave.EntryReversal, entries[1].Type)
	assert.True(t, leave.TrailTotal(entries).IsZero())
}

func TestTrail_OtherEmployee_Forbidden(t *testing.T) {
	f := newFixture()
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)
	f.seed(t, "bob", leave.RoleEmployee, "", 20, 0)

	_, err := f.engine.Trail(context.Background(), "bob", "alice")
	assert.ErrorIs(t, err, leave.ErrForbidden)
}

func TestTrail_HRReadsAnyone(t *testing.T) {
	f := newFixture()
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	entries, err := f.engine.Trail(context.Background(), "hana", "alice")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestBalanceInvariant_HoldsAcrossLifecycle(t *testing.T) {
	// remaining == total - used after every approve/cancel, and the trail
	// total mirrors consumption.
	f := newFixture()
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	ctx := context.Background()
	var approved []string
	for i := 0; i < 3; i++ {
		req, err := f.engine.CreateRequest(ctx, "alice", leave.CreateInput{
			StartDate: day(i * 7),
			EndDate:   day(i*7 + 4),
			Type:      leave.TypeAnnual,
			Reason:    "block",
		})
		require.NoError(t, err)
		_, err = f.engine.DecideRequest(ctx, "hana", req.ID, leave.DecisionApprove, "")
		require.NoError(t, err)
		approved = append(approved, req.ID)
		assert.True(t, f.balance(t, "alice").Consistent())
	}
	require.Equal(t, 15, f.balance(t, "alice").Used)

	_, err := f.engine.CancelRequest(ctx, "alice", approved[1])
	require.NoError(t, err)

	bal := f.balance(t, "alice")
	assert.Equal(t, 10, bal.Used)
	assert.Equal(t, 10, bal.Remaining)
	assert.True(t, bal.Consistent())

	entries, err := f.engine.Trail(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, "-10", leave.TrailTotal(entries).String())
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentDecide_ExactlyOneWinner(t *testing.T) {
	// GIVEN: one pending request
	// WHEN: approve and reject race on it
	// THEN: exactly one wins; the loser sees Conflict or InvalidState
	f := newFixture()
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)
	f.seed(t, "rita", leave.RoleHR, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = f.engine.DecideRequest(context.Background(), "hana", req.ID, leave.DecisionApprove, "")
	}()
	go func() {
		defer wg.Done()
		_, results[1] = f.engine.DecideRequest(context.Background(), "rita", req.ID, leave.DecisionReject, "overlap")
	}()
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		lost := errors.Is(err, leave.ErrConflict) || errors.Is(err, leave.ErrInvalidState)
		assert.True(t, lost, "loser got unexpected error: %v", err)
	}
	require.Equal(t, 1, winners)

	got, err := f.store.Get(context.Background(), req.ID)
	require.NoError(t, err)
	if results[0] == nil {
		assert.Equal(t, leave.StatusApproved, got.Status)
		assert.Equal(t, 15, f.balance(t, "alice").Remaining)
	} else {
		assert.Equal(t, leave.StatusRejected, got.Status)
		assert.Equal(t, 20, f.balance(t, "alice").Remaining)
	}
	assert.True(t, f.balance(t, "alice").Consistent())
}

func TestConcurrentCancel_ExactlyOneWinner(t *testing.T) {
	f := newFixture()
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "", 20, 0)

	req, err := f.engine.CreateRequest(context.Background(), "alice", annualWeek())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = f.engine.CancelRequest(context.Background(), "alice", req.ID)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = f.engine.CancelRequest(context.Background(), "hana", req.ID)
	}()
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
