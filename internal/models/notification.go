package models

import "time"

// Notification types and channels recorded for enrollment events.
const (
	NotificationTypeEnrollment = "enrollment"
	NotificationTypePromotion  = "waitlist_promotion"
	NotificationChannelInApp   = "in_app"
)

// Notification is an in-app message for a user.
type Notification struct {
	ID                  string    `db:"id" json:"id"`
	UserID              string    `db:"user_id" json:"user_id"`
	Type                string    `db:"type" json:"type"`
	Channel             string    `db:"channel" json:"channel"`
	Title               string    `db:"title" json:"title"`
	Message             string    `db:"message" json:"message"`
	RelatedEnrollmentID *string   `db:"related_enrollment_id" json:"related_enrollment_id,omitempty"`
	IsRead              bool      `db:"is_read" json:"is_read"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows a user's notification list.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
