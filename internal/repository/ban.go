package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type banRepository struct {
	db *sqlx.DB
}

func NewBanRepository(db *sqlx.DB) BanRepository {
	return &banRepository{db: db}
}

// IsBanned matches either the username (case-insensitive) or the device.
func (r *banRepository) IsBanned(ctx context.Context, tx *sqlx.Tx, server, username, deviceID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bans
			WHERE server_name = $1
			  AND (LOWER(minecraft_username) = LOWER($2) OR device_id = $3)
		)
	`
	var banned bool
	if err := on(r.db, tx).GetContext(ctx, &banned, query, server, username, deviceID); err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return banned, nil
}
