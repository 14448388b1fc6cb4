package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/JaggerBean/FitCollector/internal/clock"
	"github.com/JaggerBean/FitCollector/internal/metrics"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/repository"
)

// ClaimService decides which reward tiers a player may claim and records claims exactly once.
type ClaimService struct {
	tx         repository.Transactor
	steps      repository.StepRepository
	claims     repository.ClaimRepository
	identities repository.IdentityRepository
	catalog    *RewardService
	settings   *SettingsService
	clock      *clock.Clock
	verify     bool
	metrics    metrics.Recorder
}

func NewClaimService(
	tx repository.Transactor,
	steps repository.StepRepository,
	claims repository.ClaimRepository,
	identities repository.IdentityRepository,
	catalog *RewardService,
	settings *SettingsService,
	clk *clock.Clock,
	verifyEligibility bool,
	rec metrics.Recorder,
) *ClaimService {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &ClaimService{
		tx:         tx,
		steps:      steps,
		claims:     claims,
		identities: identities,
		catalog:    catalog,
		settings:   settings,
		clock:      clk,
		verify:     verifyEligibility,
		metrics:    rec,
	}
}

// ListClaimable resolves the player bound to deviceID on server and lists their claimable tiers.
func (s *ClaimService) ListClaimable(ctx context.Context, server, deviceID string) ([]model.ClaimableReward, error) {
	username, err := s.identities.BoundUsername(ctx, nil, deviceID, server)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil, model.NotFound("player", err)
	}
	if err != nil {
		return nil, err
	}
	return s.ListClaimableFor(ctx, server, username)
}

// ListClaimableFor returns every (day, tier) inside the window that the player reached and has not claimed.
func (s *ClaimService) ListClaimableFor(ctx context.Context, server, username string) ([]model.ClaimableReward, error) {
	w, err := s.window(ctx, server, username)
	if err != nil {
		return nil, err
	}

	out := []model.ClaimableReward{}
	for _, day := range w.days {
		rec, ok := w.steps[day]
		if !ok {
			continue
		}
		for _, tier := range w.tiers {
			if rec.Steps < tier.MinSteps {
				continue
			}
			if _, claimed := w.claimed[claimKey{day, tier.MinSteps}]; claimed {
				continue
			}
			out = append(out, model.ClaimableReward{Day: day, MinSteps: tier.MinSteps, Label: tier.Label})
		}
	}
	return out, nil
}

// ClaimStatusList reports every tier of every day in the window.
func (s *ClaimService) ClaimStatusList(ctx context.Context, server, username string) ([]model.TierStatus, error) {
	w, err := s.window(ctx, server, username)
	if err != nil {
		return nil, err
	}

	out := make([]model.TierStatus, 0, len(w.days)*len(w.tiers))
	for _, day := range w.days {
		rec, hasRecord := w.steps[day]
		for _, tier := range w.tiers {
			st := model.TierStatus{
				Day:      day,
				MinSteps: tier.MinSteps,
				Label:    tier.Label,
				Steps:    rec.Steps,
				Eligible: hasRecord && rec.Steps >= tier.MinSteps,
			}
			if at, ok := w.claimed[claimKey{day, tier.MinSteps}]; ok {
				st.Claimed = true
				st.ClaimedAt = at
			}
			out = append(out, st)
		}
	}
	return out, nil
}

// ClaimStatus reports a single tier on a single day.
func (s *ClaimService) ClaimStatus(ctx context.Context, server, username string, day time.Time, minSteps int64) (*model.TierStatus, error) {
	day = clock.DayOf(day)
	st := &model.TierStatus{Day: day, MinSteps: minSteps}

	tier, err := s.catalog.FindTier(ctx, server, minSteps)
	if err != nil {
		return nil, err
	}
	if tier != nil {
		st.Label = tier.Label
	}

	rec, err := s.steps.Get(ctx, nil, server, username, day, false)
	switch {
	case errors.Is(err, model.ErrStepRecordNotFound):
	case err != nil:
		return nil, err
	default:
		st.Steps = rec.Steps
		st.Eligible = rec.Steps >= minSteps
	}

	at, err := s.claims.ClaimedAt(ctx, nil, username, server, day, minSteps)
	if err != nil {
		return nil, err
	}
	if at != nil {
		st.Claimed = true
		st.ClaimedAt = at
	}
	return st, nil
}

// Claim marks the tier claimed. Repeating a claim returns the first claim's timestamp.
func (s *ClaimService) Claim(ctx context.Context, server, username string, day time.Time, minSteps int64) (*model.ClaimResult, error) {
	username = strings.TrimSpace(username)
	day = clock.DayOf(day)

	if err := s.validateClaim(ctx, server, username, day, minSteps); err != nil {
		s.metrics.IncClaim(metrics.ResultRejected)
		return nil, err
	}

	result := &model.ClaimResult{Claimed: true}
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if s.verify {
			rec, err := s.steps.Get(ctx, tx, server, username, day, true)
			if errors.Is(err, model.ErrStepRecordNotFound) {
				return model.NotFound("step record", err)
			}
			if err != nil {
				return err
			}
			if rec.Steps < minSteps {
				return model.Validation("min_steps", model.ErrNotEligible)
			}
		}

		claimedAt, applied, err := s.claims.MarkClaimed(ctx, tx, username, server, day, minSteps, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		if applied {
			result.ClaimedAt = claimedAt
			return nil
		}

		existing, err := s.claims.ClaimedAt(ctx, tx, username, server, day, minSteps)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("claim for %s on %s tier %d vanished", username, clock.FormatDay(day), minSteps)
		}
		result.ClaimedAt = *existing
		result.AlreadyClaimed = true
		return nil
	})
	if err != nil {
		s.metrics.IncClaim(claimErrorResult(err))
		return nil, err
	}

	if result.AlreadyClaimed {
		s.metrics.IncClaim(metrics.ResultRepeat)
	} else {
		s.metrics.IncClaim(metrics.ResultClaimed)
		log.Info().
			Str("component", "claims").
			Str("server", server).
			Str("player", username).
			Str("day", clock.FormatDay(day)).
			Int64("min_steps", minSteps).
			Msg("reward claimed")
	}
	return result, nil
}

func (s *ClaimService) validateClaim(ctx context.Context, server, username string, day time.Time, minSteps int64) error {
	if server == "" {
		return model.Validation("server_name", model.ErrIdentifierRequired)
	}
	if username == "" {
		return model.Validation("minecraft_username", model.ErrIdentifierRequired)
	}
	if minSteps < 0 {
		return model.Validation("min_steps", model.ErrMinStepsNegative)
	}

	buffer, err := s.settings.ClaimBufferDays(ctx, server)
	if err != nil {
		return err
	}
	if !s.clock.IsWithinWindow(day, buffer) {
		return model.Validation("day", model.ErrOutsideClaimWindow)
	}

	if s.verify {
		tier, err := s.catalog.FindTier(ctx, server, minSteps)
		if err != nil {
			return err
		}
		if tier == nil {
			return model.Validation("min_steps", model.ErrUnknownTier)
		}
	}
	return nil
}

type claimKey struct {
	day      time.Time
	minSteps int64
}

type claimWindow struct {
	days    []time.Time
	tiers   []model.RewardTier
	steps   map[time.Time]model.StepRecord
	claimed map[claimKey]*time.Time
}

// window loads everything a listing needs with one range query per table.
func (s *ClaimService) window(ctx context.Context, server, username string) (*claimWindow, error) {
	buffer, err := s.settings.ClaimBufferDays(ctx, server)
	if err != nil {
		return nil, err
	}
	days := s.clock.ClaimableDays(buffer)
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	from, to := days[len(days)-1], days[0]

	tiers, _, err := s.catalog.ForServer(ctx, server)
	if err != nil {
		return nil, err
	}

	recs, err := s.steps.ListRange(ctx, server, username, from, to)
	if err != nil {
		return nil, err
	}
	claims, err := s.claims.ListClaimedRange(ctx, server, username, from, to)
	if err != nil {
		return nil, err
	}

	w := &claimWindow{
		days:    days,
		tiers:   tiers,
		steps:   make(map[time.Time]model.StepRecord, len(recs)),
		claimed: make(map[claimKey]*time.Time, len(claims)),
	}
	for _, r := range recs {
		w.steps[clock.DayOf(r.Day)] = r
	}
	for _, c := range claims {
		w.claimed[claimKey{clock.DayOf(c.Day), c.MinSteps}] = c.ClaimedAt
	}
	return w, nil
}

func claimErrorResult(err error) string {
	var validation *model.ValidationError
	var notFound *model.NotFoundError
	if errors.As(err, &validation) || errors.As(err, &notFound) {
		return metrics.ResultRejected
	}
	return metrics.ResultError
}
