package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/JaggerBean/FitCollector/internal/model"
)

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Record(ctx context.Context, tx *sqlx.Tx, e *model.AuditEvent) error {
	details := e.DetailsJSON
	if details == "" {
		details = "{}"
	}
	query := `
		INSERT INTO audit_logs (server_name, actor_user_id, action, summary, details_json)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := on(r.db, tx).QueryRowxContext(ctx, query, e.ServerName, e.ActorUserID, e.Action, e.Summary, details).
		Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	e.DetailsJSON = details
	return nil
}

// ListForOwner returns the newest events of every server ownerID owns.
func (r *auditRepository) ListForOwner(ctx context.Context, ownerID int64, f model.AuditFilter) ([]model.AuditEvent, error) {
	query := `
		SELECT
			a.id,
			a.server_name,
			a.actor_user_id,
			a.action,
			COALESCE(a.summary, '') AS summary,
			a.details_json,
			a.created_at
		FROM audit_logs a
		JOIN servers s ON s.server_name = a.server_name AND s.owner_user_id = $1
		WHERE ($2::text = '' OR a.server_name = $2)
		  AND ($3::text = '' OR a.action = $3)
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $4
	`
	events := []model.AuditEvent{}
	if err := r.db.SelectContext(ctx, &events, query, ownerID, f.Server, f.Action, f.Limit); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
