package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

// newOrg seeds a small org: alice and bob report to mark, carol to rita,
// and every employee has one pending request.
func newOrg(t *testing.T) *fixture {
	t.Helper()
	f := newFixture()
	f.seed(t, "mark", leave.RoleManager, "", 20, 0)
	f.seed(t, "rita", leave.RoleManager, "", 20, 0)
	f.seed(t, "hana", leave.RoleHR, "", 20, 0)
	f.seed(t, "alice", leave.RoleEmployee, "mark", 20, 0)
	f.seed(t, "bob", leave.RoleEmployee, "mark", 20, 0)
	f.seed(t, "carol", leave.RoleEmployee, "rita", 20, 0)

	for _, id := range []string{"mark", "rita", "hana", "alice", "bob", "carol"} {
		_, err := f.engine.CreateRequest(context.Background(), id, annualWeek())
		require.NoError(t, err)
	}
	return f
}

func owners(reqs []*leave.LeaveRequest) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.EmployeeID
	}
	return out
}

func TestVisibility_EmployeeSeesOnlyOwn(t *testing.T) {
	f := newOrg(t)

	reqs, err := f.engine.ListRequests(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, owners(reqs))
}

func TestVisibility_ManagerSeesSelfAndReports(t *testing.T) {
	// GIVEN: alice and bob report to mark, carol does not
	// WHEN: mark lists
	// THEN: mark, alice and bob only
	f := newOrg(t)

	reqs, err := f.engine.ListRequests(context.Background(), "mark")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mark", "alice", "bob"}, owners(reqs))
}

func TestVisibility_HRSeesAll(t *testing.T) {
	f := newOrg(t)

	reqs, err := f.engine.ListRequests(context.Background(), "hana")
	require.NoError(t, err)
	assert.Len(t, reqs, 6)
}

func TestVisibility_NewestFirst(t *testing.T) {
	// Requests were created in id-sequence order with an advancing clock,
	// so hana's listing must come back in reverse creation order.
	f := newOrg(t)

	reqs, err := f.engine.ListRequests(context.Background(), "hana")
	require.NoError(t, err)
	for i := 1; i < len(reqs); i++ {
		assert.False(t, reqs[i].CreatedAt.After(reqs[i-1].CreatedAt),
			"requests out of order at %d", i)
	}
	assert.Equal(t, "carol", reqs[0].EmployeeID)
	assert.Equal(t, "mark", reqs[len(reqs)-1].EmployeeID)
}

func TestSortNewestFirst_TieBreaksOnID(t *testing.T) {
	at := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	reqs := []*leave.LeaveRequest{
		{ID: "b", CreatedAt: at},
		{ID: "a", CreatedAt: at},
		{ID: "c", CreatedAt: at.Add(time.Hour)},
	}
	leave.SortNewestFirst(reqs)
	assert.Equal(t, "c", reqs[0].ID)
	assert.Equal(t, "a", reqs[1].ID)
	assert.Equal(t, "b", reqs[2].ID)
}
