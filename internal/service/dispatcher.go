package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/JaggerBean/FitCollector/internal/clock"
	"github.com/JaggerBean/FitCollector/internal/metrics"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/push"
	"github.com/JaggerBean/FitCollector/internal/repository"
)

const DefaultDispatchBatch = 200

type DispatcherConfig struct {
	BatchSize    int
	APNsSandbox  bool
	DefaultTitle string
}

// Dispatcher delivers due notifications to every device of their server, once per device.
type Dispatcher struct {
	tx         repository.Transactor
	deliveries repository.DeliveryRepository
	tokens     repository.DeviceTokenRepository
	senders    push.Senders
	clock      *clock.Clock
	cfg        DispatcherConfig
	metrics    metrics.Recorder
}

func NewDispatcher(
	tx repository.Transactor,
	deliveries repository.DeliveryRepository,
	tokens repository.DeviceTokenRepository,
	senders push.Senders,
	clk *clock.Clock,
	cfg DispatcherConfig,
	rec metrics.Recorder,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultDispatchBatch
	}
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Dispatcher{
		tx:         tx,
		deliveries: deliveries,
		tokens:     tokens,
		senders:    senders,
		clock:      clk,
		cfg:        cfg,
		metrics:    rec,
	}
}

// deviceBatch is every due token of one device for one notification, newest token first.
type deviceBatch struct {
	rows []model.DueDelivery
}

func (b *deviceBatch) first() *model.DueDelivery { return &b.rows[0] }

type deviceOutcome int

const (
	outcomeDelivered deviceOutcome = iota
	outcomeFailed
	outcomeSkipped
)

// RunOnce performs one dispatch pass. A failure on one device never stops the others.
func (d *Dispatcher) RunOnce(ctx context.Context) (*model.DispatchSummary, error) {
	started := time.Now()
	defer func() { d.metrics.ObserveDispatch(time.Since(started)) }()

	logger := log.With().Str("component", "dispatcher").Str("pass", uuid.NewString()).Logger()

	platforms := d.senders.Platforms()
	if len(platforms) == 0 {
		return &model.DispatchSummary{}, nil
	}

	rows, err := d.deliveries.ListDue(ctx, d.clock.Now().UTC(), d.cfg.APNsSandbox, platforms, d.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	batches := groupByDevice(rows)
	summary := &model.DispatchSummary{Candidates: len(batches)}

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome, revoked, err := d.dispatchDevice(ctx, b, logger)
		summary.Revoked += revoked
		if err != nil {
			logger.Error().Err(err).
				Int64("notification_id", b.first().NotificationID).
				Str("device", b.first().DeviceID).
				Msg("device dispatch failed")
			summary.Failed++
			continue
		}
		switch outcome {
		case outcomeDelivered:
			summary.Delivered++
		case outcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	if summary.Candidates > 0 {
		logger.Info().
			Int("candidates", summary.Candidates).
			Int("delivered", summary.Delivered).
			Int("revoked", summary.Revoked).
			Int("failed", summary.Failed).
			Int("skipped", summary.Skipped).
			Dur("took", time.Since(started)).
			Msg("dispatch pass finished")
	}
	return summary, nil
}

// dispatchDevice runs inside its own transaction holding an advisory lock on
// (notification, device), so two instances never push the same device twice.
func (d *Dispatcher) dispatchDevice(ctx context.Context, b *deviceBatch, logger zerolog.Logger) (deviceOutcome, int, error) {
	head := b.first()
	outcome := outcomeSkipped
	var revoked []int64

	err := d.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		revoked = revoked[:0]
		outcome = outcomeSkipped

		locked, err := d.deliveries.TryLock(ctx, tx, lockKey(head.NotificationID, head.DeviceID))
		if err != nil {
			return err
		}
		if !locked {
			return nil
		}

		done, err := d.deliveries.Exists(ctx, tx, head.NotificationID, head.DeviceID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		msg := push.Message{
			Title: d.cfg.DefaultTitle,
			Body:  head.Message,
			Data: map[string]string{
				"type":            "scheduled",
				"notification_id": strconv.FormatInt(head.NotificationID, 10),
				"server":          head.ServerName,
			},
		}

		for i := range b.rows {
			row := &b.rows[i]
			sender, ok := d.senders.For(row.Platform)
			if !ok {
				continue
			}

			sendErr := sender.Send(ctx, row.Token, msg)
			if sendErr == nil {
				if err := d.deliveries.Record(ctx, tx, row); err != nil {
					return err
				}
				d.metrics.IncPushSend(row.Platform, metrics.OutcomeDelivered)
				outcome = outcomeDelivered
				break
			}

			if push.IsPermanent(sendErr) {
				revoked = append(revoked, row.TokenID)
				d.metrics.IncPushSend(row.Platform, metrics.OutcomeRevoked)
				logger.Info().
					Str("device", row.DeviceID).
					Str("platform", row.Platform).
					Msg("removed unregistered token")
			} else {
				d.metrics.IncPushSend(row.Platform, metrics.OutcomeFailed)
				logger.Warn().Err(sendErr).
					Str("device", row.DeviceID).
					Str("platform", row.Platform).
					Msg("push send failed, will retry")
			}
			outcome = outcomeFailed
		}
		return d.tokens.DeleteByIDs(ctx, tx, revoked)
	})
	if err != nil {
		return outcomeFailed, 0, err
	}
	return outcome, len(revoked), nil
}

func lockKey(notificationID int64, deviceID string) string {
	return fmt.Sprintf("%d:%s", notificationID, deviceID)
}

// groupByDevice keeps the query order, which already lists each device's tokens newest first.
func groupByDevice(rows []model.DueDelivery) []*deviceBatch {
	type key struct {
		notificationID int64
		deviceID       string
	}
	index := make(map[key]*deviceBatch)
	var out []*deviceBatch
	for _, r := range rows {
		k := key{r.NotificationID, r.DeviceID}
		b, ok := index[k]
		if !ok {
			b = &deviceBatch{}
			index[k] = b
			out = append(out, b)
		}
		b.rows = append(b.rows, r)
	}
	return out
}
