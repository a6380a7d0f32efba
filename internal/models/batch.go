package models

import (
	"fmt"
	"time"
)

// Batch is a scheduled section of a course with its own capacity.
// EnrolledCount always equals the number of active and pending enrollments once recomputed.
type Batch struct {
	ID            string     `db:"id" json:"id"`
	CourseID      string     `db:"course_id" json:"course_id"`
	BatchNumber   int        `db:"batch_number" json:"batch_number"`
	InstructorID  *string    `db:"instructor_id" json:"instructor_id,omitempty"`
	Capacity      int        `db:"capacity" json:"capacity"`
	EnrolledCount int        `db:"enrolled_count" json:"enrolled_count"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	StartDate     *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate       *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	CourseCode               string                  `db:"course_code" json:"course_code,omitempty"`
	CourseName               string                  `db:"course_name" json:"course_name,omitempty"`
	PrerequisiteEnforcement  PrerequisiteEnforcement `db:"prerequisite_enforcement" json:"-"`
	ScheduleConflictChecking ConflictChecking        `db:"schedule_conflict_checking" json:"-"`

	Schedules []Schedule `db:"-" json:"schedules,omitempty"`
}

// IsFull reports whether no seat is left.
func (b *Batch) IsFull() bool {
	return b.EnrolledCount >= b.Capacity
}

// Label renders the batch the way messages refer to it.
func (b *Batch) Label() string {
	return fmt.Sprintf("%s - Batch %d", b.CourseName, b.BatchNumber)
}

// BatchFilter captures filtering criteria for listing batches.
type BatchFilter struct {
	CourseID     string
	InstructorID string
	Active       *bool
	Page         int
	PageSize     int
}

// CreateBatchRequest is the payload for creating a batch.
type CreateBatchRequest struct {
	CourseID     string  `json:"course_id" validate:"required,uuid"`
	BatchNumber  int     `json:"batch_number" validate:"required,min=1"`
	InstructorID *string `json:"instructor_id" validate:"omitempty,uuid"`
	Capacity     int     `json:"capacity" validate:"required,min=1"`
	IsActive     *bool   `json:"is_active"`
	StartDate    string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateBatchRequest is the partial payload for changing a batch.
type UpdateBatchRequest struct {
	InstructorID *string `json:"instructor_id" validate:"omitempty,uuid"`
	Capacity     *int    `json:"capacity" validate:"omitempty,min=1"`
	IsActive     *bool   `json:"is_active"`
	StartDate    *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// BatchUpdateResult reports the saved batch and any students seated from its waitlist.
type BatchUpdateResult struct {
	Batch    *Batch       `json:"batch"`
	Promoted []Enrollment `json:"promoted"`
}

// BatchAvailability summarises seats for a batch.
type BatchAvailability struct {
	BatchID   string `json:"batch_id"`
	Capacity  int    `json:"capacity"`
	Enrolled  int    `json:"enrolled"`
	Available int    `json:"available"`
	Waiting   int    `json:"waiting"`
	IsActive  bool   `json:"is_active"`
	IsFull    bool   `json:"is_full"`
}

// RosterEntry is one line of a batch roster export.
type RosterEntry struct {
	EnrollmentID string           `db:"enrollment_id"`
	StudentID    string           `db:"student_id"`
	StudentName  string           `db:"student_name"`
	StudentEmail string           `db:"student_email"`
	Status       EnrollmentStatus `db:"status"`
	Source       EnrollmentSource `db:"source"`
	EnrolledAt   time.Time        `db:"enrolled_at"`
}
