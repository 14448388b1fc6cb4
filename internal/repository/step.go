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

type stepRepository struct {
	db *sqlx.DB
}

func NewStepRepository(db *sqlx.DB) StepRepository {
	return &stepRepository{db: db}
}

// UpsertMax relies on the conditional DO UPDATE: a lower or equal value matches
// no row and RETURNING yields nothing. xmax = 0 only for freshly inserted tuples.
func (r *stepRepository) UpsertMax(ctx context.Context, tx *sqlx.Tx, rec *model.StepRecord) (bool, bool, error) {
	query := `
		INSERT INTO step_ingest
			(minecraft_username, server_name, day, steps_today, device_id, source, reported_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (minecraft_username, server_name, day) DO UPDATE SET
			steps_today = EXCLUDED.steps_today,
			device_id = EXCLUDED.device_id,
			source = EXCLUDED.source,
			reported_at = EXCLUDED.reported_at,
			updated_at = NOW()
		WHERE step_ingest.steps_today < EXCLUDED.steps_today
		RETURNING (xmax = 0) AS inserted
	`
	var inserted bool
	err := on(r.db, tx).QueryRowxContext(ctx, query,
		rec.Username, rec.ServerName, dateArg(rec.Day), rec.Steps, rec.DeviceID, rec.Source, rec.ReportedAt,
	).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("upsert step record: %w", err)
	}
	return true, inserted, nil
}

// LockDeviceDay blocks until the transaction holds the (device, day[, server]) advisory lock.
func (r *stepRepository) LockDeviceDay(ctx context.Context, tx *sqlx.Tx, deviceID, server string, day time.Time) error {
	key := deviceID + ":" + dateArg(day)
	if server != "" {
		key += ":" + server
	}
	if _, err := on(r.db, tx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock device day %s: %w", key, err)
	}
	return nil
}

func (r *stepRepository) OtherUsernameOnDeviceDay(ctx context.Context, tx *sqlx.Tx, deviceID, server, username string, day time.Time) (string, bool, error) {
	query := `
		SELECT minecraft_username
		FROM step_ingest
		WHERE device_id = $1 AND day = $2 AND minecraft_username <> $3
		  AND ($4::text = '' OR server_name = $4)
		ORDER BY created_at ASC
		LIMIT 1
	`
	var other string
	err := on(r.db, tx).GetContext(ctx, &other, query, deviceID, dateArg(day), username, server)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("check device day binding: %w", err)
	}
	return other, true, nil
}

func (r *stepRepository) Get(ctx context.Context, tx *sqlx.Tx, server, username string, day time.Time, forShare bool) (*model.StepRecord, error) {
	query := `
		SELECT minecraft_username, server_name, day, steps_today, device_id, source, reported_at, created_at, updated_at
		FROM step_ingest
		WHERE server_name = $1 AND minecraft_username = $2 AND day = $3
	`
	if forShare {
		query += " FOR SHARE"
	}
	var rec model.StepRecord
	err := on(r.db, tx).GetContext(ctx, &rec, query, server, username, dateArg(day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrStepRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get step record: %w", err)
	}
	return &rec, nil
}

func (r *stepRepository) ListRange(ctx context.Context, server, username string, from, to time.Time) ([]model.StepRecord, error) {
	query := `
		SELECT minecraft_username, server_name, day, steps_today, device_id, source, reported_at, created_at, updated_at
		FROM step_ingest
		WHERE server_name = $1 AND minecraft_username = $2 AND day BETWEEN $3 AND $4
		ORDER BY day DESC
	`
	var recs []model.StepRecord
	if err := r.db.SelectContext(ctx, &recs, query, server, username, dateArg(from), dateArg(to)); err != nil {
		return nil, fmt.Errorf("list step records: %w", err)
	}
	return recs, nil
}
