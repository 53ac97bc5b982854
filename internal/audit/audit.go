package audit

import (
	"encoding/json"
	"time"

	"github.com/icastillejo/practice-management/internal"
)

const (
	ActionCreate        = "CREATE"
	ActionUpdate        = "UPDATE"
	ActionDelete        = "DELETE"
	ActionSoftDelete    = "SOFT_DELETE"
	ActionRestore       = "RESTORE"
	ActionLogin         = "LOGIN"
	ActionLogout        = "LOGOUT"
	ActionLoginFailed   = "LOGIN_FAILED"
	ActionPasswordReset = "PASSWORD_RESET"
)

const (
	TargetPersons  = "persons"
	TargetSessions = "therapy_sessions"
	TargetUsers    = "users"
)

// Entry is one append-only audit record. UserID is nil for actions without
// an authenticated actor, such as failed logins.
type Entry struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id,omitempty"`
	Action      string    `json:"action"`
	TargetType  string    `json:"target_type"`
	TargetID    int64     `json:"target_id"`
	Description string    `json:"description,omitempty"`
	OldValues   string    `json:"old_values,omitempty"`
	NewValues   string    `json:"new_values,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewEntry(actorID *int64, action, targetType string, targetID int64, description string) *Entry {
	return &Entry{
		UserID:      actorID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Description: description,
	}
}

// ActorID wraps a user id for entries that have an authenticated actor.
func ActorID(id int64) *int64 {
	return &id
}

// WithChanges serializes the before and after snapshots. Marshal failures
// leave the field empty rather than blocking the audited mutation.
func (e *Entry) WithChanges(oldValues, newValues any) *Entry {
	if oldValues != nil {
		if b, err := json.Marshal(oldValues); err == nil {
			e.OldValues = string(b)
		}
	}
	if newValues != nil {
		if b, err := json.Marshal(newValues); err == nil {
			e.NewValues = string(b)
		}
	}
	return e
}

func (e *Entry) WithRequest(meta internal.RequestMeta) *Entry {
	e.IPAddress = meta.IPAddress
	e.UserAgent = meta.UserAgent
	e.RequestID = meta.RequestID
	return e
}

// SecuritySummary aggregates authentication activity over a period.
type SecuritySummary struct {
	LoginSuccess   int64 `json:"login_success"`
	LoginFailed    int64 `json:"login_failed"`
	PasswordResets int64 `json:"password_resets"`
	PeriodDays     int   `json:"period_days"`
}
