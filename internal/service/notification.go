package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/JaggerBean/FitCollector/internal/clock"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/repository"
)

// Layouts accepted for a scheduled time without an offset; they are read in the request's timezone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// NotificationService schedules one push notification per server and local day.
type NotificationService struct {
	notifs repository.NotificationRepository
	clock  *clock.Clock
}

func NewNotificationService(notifs repository.NotificationRepository, clk *clock.Clock) *NotificationService {
	return &NotificationService{notifs: notifs, clock: clk}
}

func (s *NotificationService) Schedule(ctx context.Context, server, message, scheduledAt, timezone string, createdBy *int64) (*model.PushNotification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, model.Validation("message", model.ErrMessageRequired)
	}
	if utf8.RuneCountInString(message) > model.MaxNotificationMessageLen {
		return nil, model.Validation("message", model.ErrMessageTooLong)
	}

	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return nil, model.Validation("timezone", model.ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, model.Validation("timezone", model.ErrInvalidTimezone)
	}

	at, err := parseScheduledAt(strings.TrimSpace(scheduledAt), loc)
	if err != nil {
		return nil, model.Validation("scheduled_at", model.ErrInvalidScheduleAt)
	}
	if !at.After(s.clock.Now()) {
		return nil, model.Validation("scheduled_at", model.ErrScheduleInPast)
	}

	n := &model.PushNotification{
		ServerName:    server,
		Message:       message,
		ScheduledAt:   at.UTC(),
		ScheduledDate: clock.DayOf(at.In(loc)),
		CreatedBy:     createdBy,
	}
	created, err := s.notifs.Create(ctx, n)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, model.Conflict("push notification", model.ErrNotificationExists)
	}

	log.Info().
		Str("component", "scheduler").
		Str("server", server).
		Int64("notification_id", n.ID).
		Time("scheduled_at", n.ScheduledAt).
		Msg("push notification scheduled")
	return n, nil
}

func (s *NotificationService) ListRecent(ctx context.Context, server string) ([]model.PushNotification, error) {
	return s.notifs.ListRecent(ctx, server, model.RecentNotificationsLimit)
}

func parseScheduledAt(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	var lastErr error
	for _, layout := range naiveLayouts {
		t, err := time.ParseInLocation(layout, v, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
