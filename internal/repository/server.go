package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/JaggerBean/FitCollector/internal/model"
)

type serverRepository struct {
	db *sqlx.DB
}

func NewServerRepository(db *sqlx.DB) ServerRepository {
	return &serverRepository{db: db}
}

func (r *serverRepository) Get(ctx context.Context, server string) (*model.Server, error) {
	query := `
		SELECT server_name, owner_user_id, claim_buffer_days
		FROM servers
		WHERE server_name = $1
	`
	var s model.Server
	err := r.db.GetContext(ctx, &s, query, server)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get server: %w", err)
	}
	return &s, nil
}

func (r *serverRepository) SetClaimBufferDays(ctx context.Context, server string, days int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE servers SET claim_buffer_days = $2 WHERE server_name = $1`, server, days)
	if err != nil {
		return fmt.Errorf("update claim buffer days: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim buffer days: %w", err)
	}
	if n == 0 {
		return model.ErrServerNotFound
	}
	return nil
}
