package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/JaggerBean/FitCollector/internal/clock"
	"github.com/JaggerBean/FitCollector/internal/metrics"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/repository"
)

const ReasonNotHigher = "not higher than previous"

// IngestService keeps, per player, server and day, the highest step count ever reported.
type IngestService struct {
	tx         repository.Transactor
	steps      repository.StepRepository
	identities repository.IdentityRepository
	bans       repository.BanRepository
	clock      *clock.Clock
	scope      string
	metrics    metrics.Recorder
}

func NewIngestService(
	tx repository.Transactor,
	steps repository.StepRepository,
	identities repository.IdentityRepository,
	bans repository.BanRepository,
	clk *clock.Clock,
	bindingScope string,
	rec metrics.Recorder,
) *IngestService {
	if bindingScope != model.BindingScopeGlobal {
		bindingScope = model.BindingScopePerServer
	}
	if rec == nil {
		rec = metrics.Noop()
	}
	return &IngestService{
		tx:         tx,
		steps:      steps,
		identities: identities,
		bans:       bans,
		clock:      clk,
		scope:      bindingScope,
		metrics:    rec,
	}
}

func (s *IngestService) Ingest(ctx context.Context, req model.IngestRequest) (*model.IngestResult, error) {
	req.ServerName = strings.TrimSpace(req.ServerName)
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	req.Username = strings.TrimSpace(req.Username)

	if err := s.validate(req); err != nil {
		s.metrics.IncIngest(metrics.ResultRejected)
		return nil, err
	}

	day := s.clock.Today()
	if req.Day != nil {
		day = clock.DayOf(*req.Day)
	}
	reportedAt := s.clock.Now().UTC()
	if req.ReportedAt != nil {
		reportedAt = req.ReportedAt.UTC()
	}
	source := req.Source
	if source == "" {
		source = model.DefaultStepSource
	}

	result := &model.IngestResult{Day: day, Steps: req.Steps}

	scopeServer := req.ServerName
	if s.scope == model.BindingScopeGlobal {
		scopeServer = ""
	}

	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		// Serializes reports of one device and day so two usernames cannot both pass the check below.
		if err := s.steps.LockDeviceDay(ctx, tx, req.DeviceID, scopeServer, day); err != nil {
			return err
		}
		if err := s.syncUsername(ctx, tx, req); err != nil {
			return err
		}

		first, found, err := s.steps.OtherUsernameOnDeviceDay(ctx, tx, req.DeviceID, scopeServer, req.Username, day)
		if err != nil {
			return err
		}
		if found {
			return &model.ConflictError{
				Resource: "device",
				Reason:   model.ErrDeviceBoundToOtherUser.Error() + " (" + first + ")",
				Err:      model.ErrDeviceBoundToOtherUser,
			}
		}

		banned, err := s.bans.IsBanned(ctx, tx, req.ServerName, req.Username, req.DeviceID)
		if err != nil {
			return err
		}
		if banned {
			return model.Forbidden(model.ErrBanned)
		}

		applied, inserted, err := s.steps.UpsertMax(ctx, tx, &model.StepRecord{
			Username:   req.Username,
			ServerName: req.ServerName,
			Day:        day,
			Steps:      req.Steps,
			DeviceID:   req.DeviceID,
			Source:     source,
			ReportedAt: reportedAt,
		})
		if err != nil {
			return err
		}

		result.Accepted = applied
		result.IsNewDay = inserted
		if !applied {
			result.Reason = ReasonNotHigher
		}
		return nil
	})
	if err != nil {
		s.metrics.IncIngest(ingestErrorResult(err))
		return nil, err
	}

	if result.Accepted {
		s.metrics.IncIngest(metrics.ResultAccepted)
	} else {
		s.metrics.IncIngest(metrics.ResultIgnored)
	}
	log.Debug().
		Str("component", "ingest").
		Str("server", req.ServerName).
		Str("player", req.Username).
		Str("day", clock.FormatDay(day)).
		Int64("steps", req.Steps).
		Bool("accepted", result.Accepted).
		Msg("step report processed")
	return result, nil
}

// syncUsername follows an in-game rename: the device binding takes the reported name.
func (s *IngestService) syncUsername(ctx context.Context, tx *sqlx.Tx, req model.IngestRequest) error {
	bound, err := s.identities.BoundUsername(ctx, tx, req.DeviceID, req.ServerName)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if bound == req.Username {
		return nil
	}
	log.Info().
		Str("component", "ingest").
		Str("server", req.ServerName).
		Str("from", bound).
		Str("to", req.Username).
		Msg("player renamed")
	return s.identities.Rename(ctx, tx, req.DeviceID, req.ServerName, req.Username)
}

func (s *IngestService) validate(req model.IngestRequest) error {
	switch {
	case req.ServerName == "":
		return model.Validation("server_name", model.ErrIdentifierRequired)
	case req.DeviceID == "":
		return model.Validation("device_id", model.ErrIdentifierRequired)
	case req.Username == "":
		return model.Validation("minecraft_username", model.ErrIdentifierRequired)
	case req.Steps < 0:
		return model.Validation("steps_today", model.ErrStepsNegative)
	case req.Steps > model.MaxStepsPerDay:
		return model.Validation("steps_today", model.ErrStepsTooHigh)
	case req.Day != nil && s.clock.IsFuture(*req.Day):
		return model.Validation("day", model.ErrFutureDay)
	}
	return nil
}

// StepsForDay returns the stored record, wrapping a miss as a NotFoundError.
func (s *IngestService) StepsForDay(ctx context.Context, server, username string, day time.Time) (*model.StepRecord, error) {
	rec, err := s.steps.Get(ctx, nil, server, username, clock.DayOf(day), false)
	if errors.Is(err, model.ErrStepRecordNotFound) {
		return nil, model.NotFound("step record", err)
	}
	return rec, err
}

func ingestErrorResult(err error) string {
	var conflict *model.ConflictError
	var forbidden *model.ForbiddenError
	if errors.As(err, &conflict) || errors.As(err, &forbidden) {
		return metrics.ResultRejected
	}
	return metrics.ResultError
}
