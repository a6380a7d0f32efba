package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

func TestNotificationsAreScopedToActor(t *testing.T) {
	db := seedCatalog()
	db.notifications = []models.Notification{
		{ID: "n-1", UserID: studentA, Title: "Enrollment Confirmation"},
		{ID: "n-2", UserID: studentB, Title: "Waitlist Promotion"},
	}
	svc := NewNotificationService(db)
	ctx := context.Background()

	items, page, err := svc.List(ctx, studentActor(studentA), models.NotificationFilter{UserID: studentB})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n-1", items[0].ID)
	assert.Equal(t, 1, page.TotalCount)

	assert.True(t, errors.Is(svc.MarkRead(ctx, studentActor(studentA), "n-2"), appErrors.ErrNotFound))
	require.NoError(t, svc.MarkRead(ctx, studentActor(studentA), "n-1"))
	assert.True(t, db.notifications[0].IsRead)

	items, _, err = svc.List(ctx, studentActor(studentA), models.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, items)
}
