package auth

import "github.com/icastillejo/practice-management/internal"

// Action names a guarded operation. Deciding whether a user may perform an
// action is centralized here so handlers and services agree.
type Action string

const (
	ActionManageRecords  Action = "manage_records"
	ActionDeletePaid     Action = "delete_paid_session"
	ActionDeleteOverride Action = "delete_override"
	ActionManageUsers    Action = "manage_users"
	ActionViewAudit      Action = "view_audit"
	ActionViewHistory    Action = "view_record_history"
)

// Capabilities evaluates role-based permissions plus the deployment's
// delete policy. Deleting a pending session or a patient needs the
// override: the allow_delete flag must be on and the role listed.
type Capabilities struct {
	allowDelete   bool
	overrideRoles map[string]bool
}

func NewCapabilities(cfg internal.PermissionsConfig) *Capabilities {
	roles := make(map[string]bool, len(cfg.DeleteOverrideRoles))
	for _, role := range cfg.DeleteOverrideRoles {
		roles[role] = true
	}
	return &Capabilities{
		allowDelete:   cfg.AllowDelete,
		overrideRoles: roles,
	}
}

func (c *Capabilities) Can(u *User, action Action) bool {
	if u == nil || !u.IsActive {
		return false
	}

	switch action {
	case ActionManageRecords, ActionDeletePaid:
		return u.CanMutate()
	case ActionDeleteOverride:
		return c.allowDelete && c.overrideRoles[u.Role]
	case ActionManageUsers, ActionViewAudit:
		return u.IsAdmin()
	case ActionViewHistory:
		return u.IsAdmin() || u.CanMutate()
	}

	return false
}
