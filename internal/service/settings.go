package service

import (
	"context"
	"errors"

	"github.com/JaggerBean/FitCollector/internal/cache"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/repository"
)

// SettingsService reads per-server settings through a short-lived in-process cache.
type SettingsService struct {
	servers repository.ServerRepository
	cache   cache.SettingsCache
}

func NewSettingsService(servers repository.ServerRepository, c cache.SettingsCache) *SettingsService {
	if c == nil {
		c = cache.NewSettingsCache(0, 0)
	}
	return &SettingsService{servers: servers, cache: c}
}

// ClaimBufferDays falls back to the default for unknown servers and unset values.
func (s *SettingsService) ClaimBufferDays(ctx context.Context, server string) (int, error) {
	if days, ok := s.cache.BufferDays(server); ok {
		return days, nil
	}

	days := model.DefaultClaimBufferDays
	srv, err := s.servers.Get(ctx, server)
	switch {
	case errors.Is(err, model.ErrServerNotFound):
	case err != nil:
		return 0, err
	case srv.ClaimBufferDays != nil:
		days = *srv.ClaimBufferDays
	}
	if days < 0 {
		days = 0
	}

	s.cache.SetBufferDays(server, days)
	return days, nil
}

func (s *SettingsService) SetClaimBufferDays(ctx context.Context, server string, days int) error {
	if days < 0 {
		return model.Validation("claim_buffer_days", model.ErrBufferDaysNegative)
	}
	if err := s.servers.SetClaimBufferDays(ctx, server, days); err != nil {
		if errors.Is(err, model.ErrServerNotFound) {
			return model.NotFound("server", err)
		}
		return err
	}
	s.cache.Invalidate(server)
	return nil
}

// EnsureOwner returns a ForbiddenError unless userID owns server.
func (s *SettingsService) EnsureOwner(ctx context.Context, server string, userID int64) error {
	srv, err := s.servers.Get(ctx, server)
	if errors.Is(err, model.ErrServerNotFound) {
		return model.NotFound("server", err)
	}
	if err != nil {
		return err
	}
	if srv.OwnerUserID == nil || *srv.OwnerUserID != userID {
		return model.Forbidden(model.ErrNotServerOwner)
	}
	return nil
}
