// Package audit records the who/what/when of access-control mutations:
// permission updates, registrations, bans, and role switches. Events are
// written to a SQL store when one is configured and always logged, so the
// trail degrades to log lines rather than disappearing.
package audit

import (
	"context"
	"time"
)

// Action identifies the kind of event being recorded.
type Action string

const (
	ActionPermissionUpdate Action = "permission.update"
	ActionPermissionDrop   Action = "permission.drop"
	ActionUserRegister     Action = "user.register"
	ActionUserBan          Action = "user.ban"
	ActionUserUnban        Action = "user.unban"
	ActionRoleSwitch       Action = "role.switch"
)

// Event is one audit trail entry. TargetID is the affected user for account
// mutations and zero for session-local events like role switches.
type Event struct {
	Time      time.Time         `json:"time"`
	RequestID string            `json:"request_id,omitempty"`
	Action    Action            `json:"action"`
	TargetID  int64             `json:"target_id,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Recorder persists audit events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Nop discards all events. Used when no audit database is configured.
type Nop struct{}

func (Nop) Record(ctx context.Context, ev Event) error { return nil }
