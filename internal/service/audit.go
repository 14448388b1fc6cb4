package service

import (
	"context"
	"strings"

	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/repository"
)

// AuditService lists configuration changes for the owner dashboard.
type AuditService struct {
	audits repository.AuditRepository
}

func NewAuditService(audits repository.AuditRepository) *AuditService {
	return &AuditService{audits: audits}
}

// List returns the newest events across the servers ownerID owns. A zero limit means the default.
func (s *AuditService) List(ctx context.Context, ownerID int64, f model.AuditFilter) ([]model.AuditEvent, error) {
	f.Server = strings.TrimSpace(f.Server)
	f.Action = strings.TrimSpace(f.Action)
	if f.Limit == 0 {
		f.Limit = model.DefaultAuditLimit
	}
	if f.Limit < 1 || f.Limit > model.MaxAuditLimit {
		return nil, model.Validation("limit", model.ErrLimitOutOfRange)
	}
	return s.audits.ListForOwner(ctx, ownerID, f)
}
