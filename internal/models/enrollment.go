package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// Live reports whether the enrollment occupies a seat.
func (s EnrollmentStatus) Live() bool {
	return s == EnrollmentActive || s == EnrollmentPending
}

// CanTransition reports whether a status update from s to next is allowed.
func (s EnrollmentStatus) CanTransition(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentPending:
		return next == EnrollmentActive || next == EnrollmentDropped
	case EnrollmentActive:
		return next == EnrollmentCompleted || next == EnrollmentDropped
	default:
		return false
	}
}

// EnrollmentSource records how an enrollment came to exist.
type EnrollmentSource string

const (
	SourceDirect   EnrollmentSource = "direct"
	SourceWaitlist EnrollmentSource = "waitlist"
	SourceBulk     EnrollmentSource = "bulk"
)

// Enrollment captures a student's seat in a batch.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	BatchID    string           `db:"batch_id" json:"batch_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Source     EnrollmentSource `db:"source" json:"source"`
	Grade      *string          `db:"grade" json:"grade,omitempty"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	CourseCode   string `db:"course_code" json:"course_code"`
	CourseName   string `db:"course_name" json:"course_name"`
	BatchNumber  int    `db:"batch_number" json:"batch_number"`
}

// HeldEnrollment is a live enrollment of a student in some batch of a course.
type HeldEnrollment struct {
	EnrollmentID string `db:"enrollment_id"`
	BatchID      string `db:"batch_id"`
	BatchNumber  int    `db:"batch_number"`
	CourseName   string `db:"course_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID    string
	BatchID      string
	CourseID     string
	InstructorID string
	Status       EnrollmentStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CreateEnrollmentRequest asks for a seat in a batch. StudentID defaults to the caller.
type CreateEnrollmentRequest struct {
	StudentID string `json:"student_id" validate:"omitempty,uuid"`
	BatchID   string `json:"batch_id" validate:"required,uuid"`
}

// UpdateEnrollmentStatusRequest moves an enrollment through its lifecycle.
type UpdateEnrollmentStatusRequest struct {
	Status EnrollmentStatus `json:"status" validate:"required,oneof=active completed dropped"`
	Grade  *string          `json:"grade" validate:"omitempty,max=8"`
}

// BulkEnrollRequest admits many students into one batch.
type BulkEnrollRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,uuid"`
}
