package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/JaggerBean/FitCollector/internal/model"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create fills n.ID and n.CreatedAt on success.
func (r *notificationRepository) Create(ctx context.Context, n *model.PushNotification) (bool, error) {
	query := `
		INSERT INTO push_notifications (server_name, message, scheduled_at, scheduled_date, created_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (server_name, scheduled_date) DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query, n.ServerName, n.Message, n.ScheduledAt, dateArg(n.ScheduledDate), n.CreatedBy).
		Scan(&n.ID, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create push notification: %w", err)
	}
	return true, nil
}

func (r *notificationRepository) ListRecent(ctx context.Context, server string, limit int) ([]model.PushNotification, error) {
	query := `
		SELECT id, server_name, message, scheduled_at, scheduled_date, created_by, created_at
		FROM push_notifications
		WHERE server_name = $1
		ORDER BY scheduled_at DESC
		LIMIT $2
	`
	var out []model.PushNotification
	if err := r.db.SelectContext(ctx, &out, query, server, limit); err != nil {
		return nil, fmt.Errorf("list push notifications: %w", err)
	}
	return out, nil
}
