package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JaggerBean/FitCollector/internal/model"
)

const (
	// DefaultInterval is how often due notifications are polled
	DefaultInterval = 30 * time.Second
)

var ErrAlreadyRunning = errors.New("scheduler already running")

// Dispatcher is one pass over the due notifications.
type Dispatcher interface {
	RunOnce(ctx context.Context) (*model.DispatchSummary, error)
}

type SchedulerConfig struct {
	Interval time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Interval: DefaultInterval}
}

// Scheduler runs the dispatcher on a fixed interval in a single goroutine.
// A failing or panicking pass is logged and the loop keeps going.
type Scheduler struct {
	dispatcher Dispatcher
	interval   time.Duration

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(d Dispatcher, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{dispatcher: d, interval: cfg.Interval}
}

// Start runs a first pass immediately, then one per interval. Call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	log.Info().Str("component", "scheduler").Dur("interval", s.interval).Msg("push scheduler started")
	return nil
}

// Stop stops ticking and blocks until an in-flight pass has finished.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	log.Info().Str("component", "scheduler").Msg("push scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs one pass. The pass is not cancelled by Stop so a device is never left half sent.
func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "scheduler").Str("panic", fmt.Sprint(r)).Msg("dispatch pass panicked")
		}
	}()

	if s.ctx.Err() != nil {
		return
	}

	summary, err := s.dispatcher.RunOnce(context.WithoutCancel(s.ctx))
	if err != nil {
		log.Error().Err(err).Str("component", "scheduler").Msg("dispatch pass failed")
		return
	}
	if summary != nil && summary.Candidates > 0 {
		log.Debug().Str("component", "scheduler").Int("delivered", summary.Delivered).Msg("tick done")
	}
}
