package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/JaggerBean/FitCollector/internal/model"
)

type deliveryRepository struct {
	db *sqlx.DB
}

func NewDeliveryRepository(db *sqlx.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// ListDue joins due notifications with the tokens of their server. iOS tokens only
// match the configured APNs environment; FCM has no environments so Android always matches.
// Only platforms with a sender are listed, otherwise their rows would fill every batch.
func (r *deliveryRepository) ListDue(ctx context.Context, now time.Time, apnsSandbox bool, platforms []string, limit int) ([]model.DueDelivery, error) {
	if len(platforms) == 0 {
		return nil, nil
	}
	query := `
		SELECT
			n.id AS notification_id,
			n.server_name,
			n.message,
			n.scheduled_at,
			t.device_id,
			t.id AS token_id,
			t.platform,
			t.token,
			t.sandbox,
			t.updated_at AS token_updated_at,
			pk.minecraft_username
		FROM push_notifications n
		JOIN push_device_tokens t ON t.server_name = n.server_name
		LEFT JOIN player_keys pk ON pk.device_id = t.device_id AND pk.server_name = t.server_name AND pk.active = TRUE
		LEFT JOIN push_deliveries pd ON pd.notification_id = n.id AND pd.device_id = t.device_id
		WHERE n.scheduled_at <= $1
		  AND pd.id IS NULL
		  AND (t.platform = 'android' OR t.sandbox = $2)
		  AND t.platform = ANY($3)
		ORDER BY n.scheduled_at ASC, n.id ASC, t.device_id ASC, t.updated_at DESC
		LIMIT $4
	`
	var rows []model.DueDelivery
	if err := r.db.SelectContext(ctx, &rows, query, now, apnsSandbox, pq.Array(platforms), limit); err != nil {
		return nil, fmt.Errorf("list due deliveries: %w", err)
	}
	return rows, nil
}

func (r *deliveryRepository) TryLock(ctx context.Context, tx *sqlx.Tx, key string) (bool, error) {
	var locked bool
	if err := on(r.db, tx).GetContext(ctx, &locked, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return false, fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return locked, nil
}

func (r *deliveryRepository) Exists(ctx context.Context, tx *sqlx.Tx, notificationID int64, deviceID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM push_deliveries WHERE notification_id = $1 AND device_id = $2)`
	var exists bool
	if err := on(r.db, tx).GetContext(ctx, &exists, query, notificationID, deviceID); err != nil {
		return false, fmt.Errorf("check delivery: %w", err)
	}
	return exists, nil
}

// Record is a no-op when the delivery already exists.
func (r *deliveryRepository) Record(ctx context.Context, tx *sqlx.Tx, d *model.DueDelivery) error {
	query := `
		INSERT INTO push_deliveries (notification_id, device_id, minecraft_username, server_name, delivered_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (notification_id, device_id) DO NOTHING
	`
	if _, err := on(r.db, tx).ExecContext(ctx, query, d.NotificationID, d.DeviceID, d.Username, d.ServerName); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}
