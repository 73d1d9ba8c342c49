package leave

import (
	"context"
	"sort"
)

// =============================================================================
// VISIBILITY RESOLVER
// =============================================================================
//
// Computes, for a given actor, the set of requests they may see. A pure
// function of current ledger + directory state:
//   employee  - own requests only
//   manager   - own requests plus direct reports' requests
//   hr, admin - all requests

type Visibility struct {
	Directory Directory
	Ledger    Ledger
}

// VisibleRequests returns the actor's visible requests, newest CreatedAt
// first with a stable id tie-break.
func (v *Visibility) VisibleRequests(ctx context.Context, actor *Employee) ([]*LeaveRequest, error) {
	var ids []string

	switch actor.Role {
	case RoleHR, RoleAdmin:
		ids = nil // all
	case RoleManager:
		reports, err := v.Directory.GetDirectReports(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		ids = make([]string, 0, len(reports)+1)
		ids = append(ids, actor.ID)
		for _, r := range reports {
			ids = append(ids, r.ID)
		}
	default:
		ids = []string{actor.ID}
	}

	requests, err := v.Ledger.Query(ctx, ids)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(requests)
	return requests, nil
}

// SortNewestFirst orders requests by CreatedAt descending, id ascending on ties.
func SortNewestFirst(requests []*LeaveRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.After(requests[j].CreatedAt)
		}
		return requests[i].ID < requests[j].ID
	})
}
