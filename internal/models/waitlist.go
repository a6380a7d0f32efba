package models

import "time"

// WaitlistStatus is the state of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "waiting"
	WaitlistEnrolled  WaitlistStatus = "enrolled"
	WaitlistExpired   WaitlistStatus = "expired"
	WaitlistCancelled WaitlistStatus = "cancelled"
)

// WaitlistEntry is a student's FCFS place for a full batch.
type WaitlistEntry struct {
	ID        string         `db:"id" json:"id"`
	StudentID string         `db:"student_id" json:"student_id"`
	BatchID   string         `db:"batch_id" json:"batch_id"`
	Position  int            `db:"position" json:"position"`
	Status    WaitlistStatus `db:"status" json:"status"`
	Notified  bool           `db:"notified" json:"notified"`
	JoinedAt  time.Time      `db:"joined_at" json:"joined_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// WaitlistEntryDetail adds display fields to an entry.
type WaitlistEntryDetail struct {
	WaitlistEntry
	StudentName string `db:"student_name" json:"student_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseName  string `db:"course_name" json:"course_name"`
	BatchNumber int    `db:"batch_number" json:"batch_number"`
}

// WaitlistFilter provides filters for listing waitlist entries.
type WaitlistFilter struct {
	StudentID string
	BatchID   string
	Status    WaitlistStatus
	Page      int
	PageSize  int
}

// JoinWaitlistRequest asks for a place on a batch waitlist. StudentID defaults to the caller.
type JoinWaitlistRequest struct {
	StudentID string `json:"student_id" validate:"omitempty,uuid"`
	BatchID   string `json:"batch_id" validate:"required,uuid"`
}

// WaitlistPosition reports where a student stands in a batch queue.
type WaitlistPosition struct {
	EntryID      string         `json:"entry_id"`
	BatchID      string         `json:"batch_id"`
	StudentID    string         `json:"student_id"`
	Position     int            `json:"position"`
	Status       WaitlistStatus `json:"status"`
	WaitingAhead int            `json:"waiting_ahead"`
	TotalWaiting int            `json:"total_waiting"`
}
