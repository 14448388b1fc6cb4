package repository

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/JaggerBean/FitCollector/internal/model"
)

type rewardRepository struct {
	db *sqlx.DB
}

func NewRewardRepository(db *sqlx.DB) RewardRepository {
	return &rewardRepository{db: db}
}

func (r *rewardRepository) ListByServer(ctx context.Context, server string) ([]model.RewardTier, error) {
	query := `
		SELECT server_name, min_steps, label, item_id, rewards_json, position
		FROM server_rewards
		WHERE server_name = $1
		ORDER BY min_steps ASC, position ASC
	`
	var rows []model.RewardTierRow
	if err := r.db.SelectContext(ctx, &rows, query, server); err != nil {
		return nil, fmt.Errorf("list reward tiers: %w", err)
	}

	tiers := make([]model.RewardTier, 0, len(rows))
	for _, row := range rows {
		tier := model.RewardTier{
			MinSteps: row.MinSteps,
			Label:    row.Label,
			Position: row.Position,
			Rewards:  []string{},
		}
		if row.ItemID != nil {
			tier.ItemID = *row.ItemID
		}
		if row.RewardsJSON != "" {
			if err := json.Unmarshal([]byte(row.RewardsJSON), &tier.Rewards); err != nil {
				return nil, fmt.Errorf("decode rewards for tier %d: %w", row.MinSteps, err)
			}
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

// Replace swaps the whole catalog. Existing claims reference min_steps only and stay valid.
func (r *rewardRepository) Replace(ctx context.Context, tx *sqlx.Tx, server string, tiers []model.RewardTier) error {
	q := on(r.db, tx)
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('rewards:' || $1::text))`, server); err != nil {
		return fmt.Errorf("lock reward tiers: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM server_rewards WHERE server_name = $1`, server); err != nil {
		return fmt.Errorf("clear reward tiers: %w", err)
	}

	insert := `
		INSERT INTO server_rewards (server_name, min_steps, label, item_id, rewards_json, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, tier := range tiers {
		rewards := tier.Rewards
		if rewards == nil {
			rewards = []string{}
		}
		payload, err := json.Marshal(rewards)
		if err != nil {
			return fmt.Errorf("encode rewards for tier %d: %w", tier.MinSteps, err)
		}
		var itemID *string
		if tier.ItemID != "" {
			itemID = &tier.ItemID
		}
		if _, err := q.ExecContext(ctx, insert, server, tier.MinSteps, tier.Label, itemID, string(payload), i); err != nil {
			return fmt.Errorf("insert reward tier %d: %w", tier.MinSteps, err)
		}
	}
	return nil
}
