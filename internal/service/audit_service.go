package service

import (
	"context"
	"strings"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

type auditRepository interface {
	ListAuditLogs(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
}

// AuditService exposes the audit trail to admin and staff.
type AuditService struct {
	repo auditRepository
}

// NewAuditService constructs AuditService.
func NewAuditService(repo auditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// List returns audit rows newest first.
func (s *AuditService) List(ctx context.Context, actor models.Actor, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error) {
	if err := requireStaff(actor); err != nil {
		return nil, nil, err
	}
	filter.Resource = strings.ToLower(strings.TrimSpace(filter.Resource))
	filter.Action = strings.ToUpper(strings.TrimSpace(filter.Action))
	filter.ResourceID = strings.TrimSpace(filter.ResourceID)
	filter.UserID = strings.TrimSpace(filter.UserID)
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)

	logs, total, err := s.repo.ListAuditLogs(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list audit logs")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, pagination(filter.Page, filter.PageSize, total), nil
}
