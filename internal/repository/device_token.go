package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/JaggerBean/FitCollector/internal/model"
)

type deviceTokenRepository struct {
	db *sqlx.DB
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Upsert creates or refreshes a device token.
// The key is the full tuple, so one device may hold several tokens per platform.
func (r *deviceTokenRepository) Upsert(ctx context.Context, t *model.DeviceToken) error {
	query := `
		INSERT INTO push_device_tokens (device_id, server_name, platform, token, sandbox, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (device_id, server_name, platform, token, sandbox) DO UPDATE SET
			updated_at = NOW()
		RETURNING id, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, t.DeviceID, t.ServerName, t.Platform, t.Token, t.Sandbox).
		Scan(&t.ID, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

func (r *deviceTokenRepository) Delete(ctx context.Context, deviceID, server, platform, token string) (int64, error) {
	query := `
		DELETE FROM push_device_tokens
		WHERE device_id = $1 AND server_name = $2 AND platform = $3
		  AND ($4::text = '' OR token = $4)
	`
	res, err := r.db.ExecContext(ctx, query, deviceID, server, platform, token)
	if err != nil {
		return 0, fmt.Errorf("delete device token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete device token: %w", err)
	}
	return n, nil
}

func (r *deviceTokenRepository) DeleteByIDs(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := on(r.db, tx).ExecContext(ctx, `DELETE FROM push_device_tokens WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete device tokens: %w", err)
	}
	return nil
}

func (r *deviceTokenRepository) ListByServer(ctx context.Context, server string) ([]model.DeviceToken, error) {
	query := `
		SELECT id, device_id, server_name, platform, token, sandbox, updated_at
		FROM push_device_tokens
		WHERE server_name = $1
		ORDER BY device_id, updated_at DESC
	`
	var tokens []model.DeviceToken
	if err := r.db.SelectContext(ctx, &tokens, query, server); err != nil {
		return nil, fmt.Errorf("list server tokens: %w", err)
	}
	return tokens, nil
}

func (r *deviceTokenRepository) ListByDevice(ctx context.Context, deviceID, server string) ([]model.DeviceToken, error) {
	query := `
		SELECT id, device_id, server_name, platform, token, sandbox, updated_at
		FROM push_device_tokens
		WHERE device_id = $1 AND ($2::text = '' OR server_name = $2)
		ORDER BY updated_at DESC
	`
	var tokens []model.DeviceToken
	if err := r.db.SelectContext(ctx, &tokens, query, deviceID, server); err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	return tokens, nil
}
