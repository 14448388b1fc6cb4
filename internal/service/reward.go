package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/JaggerBean/FitCollector/internal/cache"
	"github.com/JaggerBean/FitCollector/internal/metrics"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/repository"
)

// RewardService serves each server's reward catalog, falling back to the built-in default.
// Every change is written to the audit log in the same transaction.
type RewardService struct {
	tx      repository.Transactor
	rewards repository.RewardRepository
	audits  repository.AuditRepository
	cache   cache.CatalogCache
	metrics metrics.Recorder
}

func NewRewardService(
	tx repository.Transactor,
	rewards repository.RewardRepository,
	audits repository.AuditRepository,
	c cache.CatalogCache,
	rec metrics.Recorder,
) *RewardService {
	if c == nil {
		c = cache.NewCatalogCache(nil, 0)
	}
	if rec == nil {
		rec = metrics.Noop()
	}
	return &RewardService{tx: tx, rewards: rewards, audits: audits, cache: c, metrics: rec}
}

// ForServer returns the server's tiers sorted by min_steps then position.
// isDefault is true when the server has none and the built-in catalog is served.
func (s *RewardService) ForServer(ctx context.Context, server string) ([]model.RewardTier, bool, error) {
	tiers, err := s.stored(ctx, server)
	if err != nil {
		return nil, false, err
	}
	if len(tiers) == 0 {
		return model.DefaultRewardTiers(), true, nil
	}
	return tiers, false, nil
}

func (s *RewardService) stored(ctx context.Context, server string) ([]model.RewardTier, error) {
	tiers, found, err := s.cache.Get(ctx, server)
	if err != nil {
		log.Warn().Err(err).Str("component", "rewards").Str("server", server).Msg("catalog cache read failed")
	}
	if found {
		s.metrics.IncCacheHit("catalog")
		return tiers, nil
	}
	s.metrics.IncCacheMiss("catalog")

	tiers, err = s.rewards.ListByServer(ctx, server)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Fill(ctx, server, tiers); err != nil {
		log.Warn().Err(err).Str("component", "rewards").Str("server", server).Msg("catalog cache write failed")
	}
	return tiers, nil
}

// FindTier looks up the tier with exactly minSteps.
func (s *RewardService) FindTier(ctx context.Context, server string, minSteps int64) (*model.RewardTier, error) {
	tiers, _, err := s.ForServer(ctx, server)
	if err != nil {
		return nil, err
	}
	for i := range tiers {
		if tiers[i].MinSteps == minSteps {
			return &tiers[i], nil
		}
	}
	return nil, nil
}

// Replace swaps the server's whole catalog. An empty list clears it, which serves the default again.
// actor is the owner making the change, nil for server-key callers.
func (s *RewardService) Replace(ctx context.Context, server string, tiers []model.RewardTier, actor *int64) ([]model.RewardTier, error) {
	clean := make([]model.RewardTier, 0, len(tiers))
	for i, t := range tiers {
		t.Label = strings.TrimSpace(t.Label)
		if t.MinSteps < 0 {
			return nil, model.Validation("min_steps", model.ErrMinStepsNegative)
		}
		if t.Label == "" {
			return nil, model.Validation("label", model.ErrTierLabelEmpty)
		}
		if t.Rewards == nil {
			t.Rewards = []string{}
		}
		t.Position = i
		clean = append(clean, t)
	}

	event := &model.AuditEvent{
		ServerName:  server,
		ActorUserID: actor,
		Action:      model.AuditRewardsCleared,
		Summary:     "Cleared all reward tiers",
	}
	if len(clean) > 0 {
		details, err := json.Marshal(map[string]interface{}{"tiers": clean})
		if err != nil {
			return nil, fmt.Errorf("encode audit details: %w", err)
		}
		event.Action = model.AuditRewardsUpdated
		event.Summary = fmt.Sprintf("Updated %d reward tier(s)", len(clean))
		event.DetailsJSON = string(details)
	}
	return s.store(ctx, server, clean, event)
}

// ResetToDefault stores the built-in catalog as the server's own.
func (s *RewardService) ResetToDefault(ctx context.Context, server string, actor *int64) ([]model.RewardTier, error) {
	return s.store(ctx, server, model.DefaultRewardTiers(), &model.AuditEvent{
		ServerName:  server,
		ActorUserID: actor,
		Action:      model.AuditRewardsResetDefault,
		Summary:     "Reset rewards to default tiers",
	})
}

// store writes the catalog and its audit event, then publishes the catalog to the
// cache before commit. The repository holds the server's catalog lock at that point,
// so concurrent replaces publish in commit order.
func (s *RewardService) store(ctx context.Context, server string, tiers []model.RewardTier, event *model.AuditEvent) ([]model.RewardTier, error) {
	sorted := make([]model.RewardTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MinSteps != sorted[j].MinSteps {
			return sorted[i].MinSteps < sorted[j].MinSteps
		}
		return sorted[i].Position < sorted[j].Position
	})

	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.rewards.Replace(ctx, tx, server, tiers); err != nil {
			return err
		}
		if err := s.audits.Record(ctx, tx, event); err != nil {
			return err
		}
		s.publish(ctx, server, sorted)
		return nil
	})
	if err != nil {
		s.invalidate(ctx, server)
		return nil, err
	}

	log.Info().
		Str("component", "rewards").
		Str("server", server).
		Str("action", event.Action).
		Int("tiers", len(sorted)).
		Msg("reward catalog replaced")
	return sorted, nil
}

func (s *RewardService) publish(ctx context.Context, server string, tiers []model.RewardTier) {
	if err := s.cache.Set(ctx, server, tiers); err != nil {
		log.Warn().Err(err).Str("component", "rewards").Str("server", server).Msg("catalog cache write failed")
		s.invalidate(ctx, server)
	}
}

func (s *RewardService) invalidate(ctx context.Context, server string) {
	if err := s.cache.Invalidate(ctx, server); err != nil {
		log.Warn().Err(err).Str("component", "rewards").Str("server", server).Msg("catalog cache invalidation failed")
	}
}
