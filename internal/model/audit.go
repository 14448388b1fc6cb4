package model

import "time"

// Actions recorded in the audit log
const (
	AuditRewardsUpdated      = "rewards_updated"
	AuditRewardsCleared      = "rewards_cleared"
	AuditRewardsResetDefault = "rewards_reset_default"
)

const (
	DefaultAuditLimit = 200
	MaxAuditLimit     = 1000
)

// AuditEvent is one change made to a server's configuration.
// ActorUserID is nil when the change came through a server key.
type AuditEvent struct {
	ID          int64     `db:"id"`
	ServerName  string    `db:"server_name"`
	ActorUserID *int64    `db:"actor_user_id"`
	Action      string    `db:"action"`
	Summary     string    `db:"summary"`
	DetailsJSON string    `db:"details_json"`
	CreatedAt   time.Time `db:"created_at"`
}

// AuditFilter narrows an owner's audit listing. Empty fields match everything.
type AuditFilter struct {
	Server string
	Action string
	Limit  int
}
