package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/JaggerBean/FitCollector/internal/model"
)

type claimRepository struct {
	db *sqlx.DB
}

func NewClaimRepository(db *sqlx.DB) ClaimRepository {
	return &claimRepository{db: db}
}

// MarkClaimed only ever moves claimed from false to true, so the first committer's
// timestamp is the one that sticks.
func (r *claimRepository) MarkClaimed(ctx context.Context, tx *sqlx.Tx, username, server string, day time.Time, minSteps int64, at time.Time) (time.Time, bool, error) {
	query := `
		INSERT INTO step_claims (minecraft_username, server_name, day, min_steps, claimed, claimed_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (minecraft_username, server_name, day, min_steps) DO UPDATE SET
			claimed = TRUE,
			claimed_at = EXCLUDED.claimed_at
		WHERE step_claims.claimed = FALSE
		RETURNING claimed_at
	`
	var claimedAt time.Time
	err := on(r.db, tx).GetContext(ctx, &claimedAt, query, username, server, dateArg(day), minSteps, at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("mark claimed: %w", err)
	}
	return claimedAt, true, nil
}

func (r *claimRepository) ClaimedAt(ctx context.Context, tx *sqlx.Tx, username, server string, day time.Time, minSteps int64) (*time.Time, error) {
	query := `
		SELECT claimed_at
		FROM step_claims
		WHERE minecraft_username = $1 AND server_name = $2 AND day = $3 AND min_steps = $4 AND claimed = TRUE
	`
	var claimedAt sql.NullTime
	err := on(r.db, tx).GetContext(ctx, &claimedAt, query, username, server, dateArg(day), minSteps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	if !claimedAt.Valid {
		// Legacy rows may carry claimed without a timestamp.
		return &time.Time{}, nil
	}
	return &claimedAt.Time, nil
}

func (r *claimRepository) ListClaimedRange(ctx context.Context, server, username string, from, to time.Time) ([]model.ClaimRecord, error) {
	query := `
		SELECT minecraft_username, server_name, day, min_steps, claimed, claimed_at
		FROM step_claims
		WHERE server_name = $1 AND minecraft_username = $2 AND day BETWEEN $3 AND $4 AND claimed = TRUE
	`
	var claims []model.ClaimRecord
	if err := r.db.SelectContext(ctx, &claims, query, server, username, dateArg(from), dateArg(to)); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}
