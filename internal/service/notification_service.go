package service

import (
	"context"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

type notificationRepository interface {
	ListNotifications(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkNotificationRead(ctx context.Context, id, userID string) (bool, error)
}

// NotificationService exposes a user's in-app notifications.
type NotificationService struct {
	repo notificationRepository
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(repo notificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// List returns the actor's own notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor models.Actor, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	filter.UserID = actor.UserID
	items, total, err := s.repo.ListNotifications(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list notifications")
	}
	return items, pagination(filter.Page, filter.PageSize, total), nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id string) error {
	updated, err := s.repo.MarkNotificationRead(ctx, id, actor.UserID)
	if err != nil {
		return appErrors.Internal(err, "failed to update notification")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}
