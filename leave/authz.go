package leave

// =============================================================================
// AUTHORIZATION GATE
// =============================================================================
//
// One decision table keyed by (role, action, relation to target) replaces
// role conditionals scattered through handlers. The gate is pure: callers
// pass the target request and its owning employee, both already loaded.
//
// Rules:
//   create:          any employee, for themselves
//   approve/reject:  hr and admin on any request; a manager only on a
//                    direct report's request, never their own
//   cancel:          the owner, hr and admin on any request; a manager on
//                    a direct report's request

type Action string

const (
	ActionCreate  Action = "create"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// Allowed reports whether actor may perform action on req, owned by owner.
// For ActionCreate, req may be nil and owner is the prospective owner.
// An unauthorized action never partially applies; callers fail with
// ErrForbidden before any mutation.
func Allowed(actor *Employee, action Action, req *LeaveRequest, owner *Employee) bool {
	if actor == nil {
		return false
	}

	switch action {
	case ActionCreate:
		return owner == nil || owner.ID == actor.ID

	case ActionApprove, ActionReject:
		if req == nil || owner == nil {
			return false
		}
		switch actor.Role {
		case RoleHR, RoleAdmin:
			return true
		case RoleManager:
			// Direct reports only, and never the manager's own request.
			return owner.ManagerID == actor.ID && owner.ID != actor.ID
		default:
			return false
		}

	case ActionCancel:
		if req == nil || owner == nil {
			return false
		}
		if owner.ID == actor.ID {
			return true
		}
		switch actor.Role {
		case RoleHR, RoleAdmin:
			return true
		case RoleManager:
			return owner.ManagerID == actor.ID
		default:
			return false
		}
	}

	return false
}
