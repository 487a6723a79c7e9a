package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sigab-api/internal/models"
	appErrors "github.com/noah-isme/sigab-api/pkg/errors"
)

type auditReader interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// AuditService exposes read access to the append-only audit trail.
type AuditService struct {
	repo   auditReader
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// List returns audit entries matching the filter, newest first.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return logs, nil
}

// CaseTrail returns the audit entries recorded for one disposal case.
func (s *AuditService) CaseTrail(ctx context.Context, caseID string, limit, offset int) ([]models.AuditLog, error) {
	return s.List(ctx, models.AuditFilter{
		Resource:   "disposal_case",
		ResourceID: caseID,
		Limit:      limit,
		Offset:     offset,
	})
}
