package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-admission-api/internal/models"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db sqlx.ExtContext
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db sqlx.ExtContext) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// InsertNotification records a notification.
func (r *NotificationRepository) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Channel == "" {
		n.Channel = models.NotificationChannelInApp
	}
	const query = `INSERT INTO notifications (id, user_id, type, channel, title, message, related_enrollment_id, is_read, created_at)
VALUES (:id, :user_id, :type, :channel, :title, :message, :related_enrollment_id, :is_read, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the notifications of a user, newest first.
func (r *NotificationRepository) ListNotifications(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	clause := " WHERE user_id = $1"
	if filter.UnreadOnly {
		clause += " AND is_read = FALSE"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT id, user_id, type, channel, title, message, related_enrollment_id, is_read, created_at
FROM notifications%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, clause, size, (page-1)*size)

	var items []models.Notification
	if err := sqlx.SelectContext(ctx, r.db, &items, query, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) FROM notifications"+clause, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// MarkNotificationRead flags a notification of the user as read and reports whether it existed.
func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	return affected > 0, nil
}
