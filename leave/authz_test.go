package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/leave-engine/leave"
)

func TestAllowed_DecisionTable(t *testing.T) {
	mark := &leave.Employee{ID: "mark", Role: leave.RoleManager}
	_ = &leave.Employee{ID: "rita", Role: leave.RoleManager}
	hana := &leave.Employee{ID: "hana", Role: leave.RoleHR}
	adam := &leave.Employee{ID: "adam", Role: leave.RoleAdmin}

	alice := &leave.Employee{ID: "alice", Role: leave.RoleEmployee, ManagerID: "mark"}
	bob := &leave.Employee{ID: "bob", Role: leave.RoleEmployee, ManagerID: "rita"}

	// Managers are employees too; mark reports to a director we never load.
	markSelf := &leave.Employee{ID: "mark", Role: leave.RoleManager, ManagerID: "mark"}

	req := &leave.LeaveRequest{ID: "r1", Status: leave.StatusPending}

	cases := []struct {
		name   string
		actor  *leave.Employee
		action leave.Action
		owner  *leave.Employee
		want   bool
	}{
		{"manager approves direct report", mark, leave.ActionApprove, alice, true},
		{"manager rejects direct report", mark, leave.ActionReject, alice, true},
		{"manager approves other team", mark, leave.ActionApprove, bob, false},
		{"manager approves own request", mark, leave.ActionApprove, markSelf, false},
		{"employee approves peer", alice, leave.ActionApprove, bob, false},
		{"employee approves self", alice, leave.ActionApprove, alice, false},
		{"hr approves anyone", hana, leave.ActionApprove, bob, true},
		{"hr approves own request", hana, leave.ActionApprove, hana, true},
		{"admin rejects anyone", adam, leave.ActionReject, alice, true},

		{"owner cancels own", alice, leave.ActionCancel, alice, true},
		{"peer cancels other", bob, leave.ActionCancel, alice, false},
		{"manager cancels direct report", mark, leave.ActionCancel, alice, true},
		{"manager cancels other team", mark, leave.ActionCancel, bob, false},
		{"manager cancels own request", mark, leave.ActionCancel, markSelf, true},
		{"hr cancels anyone", hana, leave.ActionCancel, bob, true},
		{"admin cancels anyone", adam, leave.ActionCancel, alice, true},

		{"create for self", alice, leave.ActionCreate, alice, true},
		{"create for someone else", alice, leave.ActionCreate, bob, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, leave.Allowed(tc.actor, tc.action, req, tc.owner))
		})
	}
}

func TestAllowed_NilInputs(t *testing.T) {
	hana := &leave.Employee{ID: "hana", Role: leave.RoleHR}
	req := &leave.LeaveRequest{ID: "r1"}

	assert.False(t, leave.Allowed(nil, leave.ActionApprove, req, hana))
	assert.False(t, leave.Allowed(hana, leave.ActionApprove, nil, hana))
	assert.False(t, leave.Allowed(hana, leave.ActionApprove, req, nil))
	assert.False(t, leave.Allowed(hana, leave.Action("audit"), req, hana))
}
