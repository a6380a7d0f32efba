package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-admission-api/internal/models"
)

// AuditRepository persists audit trail rows.
type AuditRepository struct {
	db sqlx.ExtContext
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog inserts an audit log entry.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns audit rows newest first, narrowed by resource, resource id,
// actor and action, together with the unpaged total.
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	var conditions []string
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("resource", filter.Resource)
	add("resource_id", filter.ResourceID)
	add("user_id", filter.UserID)
	add("action", filter.Action)

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT id, user_id, action, resource, resource_id,
COALESCE(old_values, 'null'::jsonb) AS old_values, COALESCE(new_values, 'null'::jsonb) AS new_values,
ip_address, user_agent, created_at
FROM audit_logs%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, clause, size, (page-1)*size)

	var logs []models.AuditLog
	if err := sqlx.SelectContext(ctx, r.db, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM audit_logs`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return logs, total, nil
}
