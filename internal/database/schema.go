package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is the bootstrap DDL. Every statement is idempotent; there is no migration history.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS servers (
		id BIGSERIAL PRIMARY KEY,
		server_name TEXT NOT NULL UNIQUE,
		owner_user_id BIGINT,
		is_private BOOLEAN NOT NULL DEFAULT FALSE,
		invite_code TEXT,
		claim_buffer_days INTEGER DEFAULT 1 CHECK (claim_buffer_days >= 0),
		inactive_prune_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		inactive_prune_days INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id BIGSERIAL PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		server_name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_used TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS player_keys (
		id BIGSERIAL PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		device_id TEXT NOT NULL,
		server_name TEXT NOT NULL,
		minecraft_username TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_used TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (device_id, server_name)
	)`,
	`CREATE TABLE IF NOT EXISTS step_ingest (
		id BIGSERIAL PRIMARY KEY,
		minecraft_username TEXT NOT NULL,
		server_name TEXT NOT NULL,
		day DATE NOT NULL,
		steps_today BIGINT NOT NULL CHECK (steps_today >= 0),
		device_id TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT 'health_connect',
		reported_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (minecraft_username, server_name, day)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_step_ingest_device_day ON step_ingest (device_id, day)`,
	`CREATE TABLE IF NOT EXISTS server_rewards (
		id BIGSERIAL PRIMARY KEY,
		server_name TEXT NOT NULL,
		min_steps BIGINT NOT NULL CHECK (min_steps >= 0),
		label TEXT NOT NULL,
		item_id TEXT,
		rewards_json TEXT NOT NULL DEFAULT '[]',
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_server_rewards_server ON server_rewards (server_name, min_steps, position)`,
	`CREATE TABLE IF NOT EXISTS step_claims (
		id BIGSERIAL PRIMARY KEY,
		minecraft_username TEXT NOT NULL,
		server_name TEXT NOT NULL,
		day DATE NOT NULL,
		min_steps BIGINT NOT NULL,
		claimed BOOLEAN NOT NULL DEFAULT FALSE,
		claimed_at TIMESTAMPTZ,
		UNIQUE (minecraft_username, server_name, day, min_steps)
	)`,
	`CREATE TABLE IF NOT EXISTS bans (
		id BIGSERIAL PRIMARY KEY,
		ban_group_id TEXT NOT NULL,
		server_name TEXT NOT NULL,
		minecraft_username TEXT,
		device_id TEXT,
		reason TEXT,
		banned_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bans_server ON bans (server_name)`,
	`CREATE TABLE IF NOT EXISTS push_device_tokens (
		id BIGSERIAL PRIMARY KEY,
		device_id TEXT NOT NULL,
		server_name TEXT NOT NULL,
		platform TEXT NOT NULL CHECK (platform IN ('ios', 'android')),
		token TEXT NOT NULL,
		sandbox BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (device_id, server_name, platform, token, sandbox)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_push_device_tokens_server ON push_device_tokens (server_name)`,
	`CREATE TABLE IF NOT EXISTS push_notifications (
		id BIGSERIAL PRIMARY KEY,
		server_name TEXT NOT NULL,
		message TEXT NOT NULL,
		scheduled_at TIMESTAMPTZ NOT NULL,
		scheduled_date DATE NOT NULL,
		created_by BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (server_name, scheduled_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_push_notifications_due ON push_notifications (scheduled_at)`,
	`CREATE TABLE IF NOT EXISTS push_deliveries (
		id BIGSERIAL PRIMARY KEY,
		notification_id BIGINT NOT NULL REFERENCES push_notifications(id) ON DELETE CASCADE,
		device_id TEXT NOT NULL,
		minecraft_username TEXT,
		server_name TEXT NOT NULL,
		delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (notification_id, device_id)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		server_name TEXT NOT NULL,
		actor_user_id BIGINT,
		action TEXT NOT NULL,
		summary TEXT,
		details_json TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_server_created ON audit_logs (server_name, created_at DESC)`,
}

// EnsureSchema creates every table and index the backend needs if missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
