package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/JaggerBean/FitCollector/internal/model"
)

type identityRepository struct {
	db *sqlx.DB
}

func NewIdentityRepository(db *sqlx.DB) IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) BoundUsername(ctx context.Context, tx *sqlx.Tx, deviceID, server string) (string, error) {
	query := `
		SELECT minecraft_username
		FROM player_keys
		WHERE device_id = $1 AND server_name = $2 AND active = TRUE
	`
	var username string
	err := on(r.db, tx).GetContext(ctx, &username, query, deviceID, server)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrPlayerNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get bound username: %w", err)
	}
	return username, nil
}

func (r *identityRepository) Rename(ctx context.Context, tx *sqlx.Tx, deviceID, server, username string) error {
	query := `
		UPDATE player_keys
		SET minecraft_username = $3
		WHERE device_id = $1 AND server_name = $2
	`
	if _, err := on(r.db, tx).ExecContext(ctx, query, deviceID, server, username); err != nil {
		return fmt.Errorf("rename player: %w", err)
	}
	return nil
}

// ResolvePlayerKey finds the binding that owns keyHash on deviceID and touches last_used.
func (r *identityRepository) ResolvePlayerKey(ctx context.Context, keyHash, deviceID string) (*model.PlayerIdentity, error) {
	query := `
		UPDATE player_keys
		SET last_used = NOW()
		WHERE key_hash = $1 AND device_id = $2 AND active = TRUE
		RETURNING device_id, server_name, minecraft_username
	`
	var id model.PlayerIdentity
	err := r.db.GetContext(ctx, &id, query, keyHash, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve player key: %w", err)
	}
	return &id, nil
}

func (r *identityRepository) ResolveServerKey(ctx context.Context, keyHash string) (string, error) {
	query := `
		UPDATE api_keys
		SET last_used = NOW()
		WHERE key_hash = $1 AND active = TRUE
		RETURNING server_name
	`
	var server string
	err := r.db.GetContext(ctx, &server, query, keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrServerNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve server key: %w", err)
	}
	return server, nil
}
