package models

import "time"

// EligibilityResult is the outcome of the admission checks for one student and batch.
type EligibilityResult struct {
	Eligible  bool               `json:"eligible"`
	Errors    []string           `json:"errors"`
	Warnings  []string           `json:"warnings"`
	Conflicts []ScheduleConflict `json:"conflicts,omitempty"`
	Missing   []string           `json:"missing_prerequisites,omitempty"`
}

// AdmissionResult is a created enrollment plus the warnings raised during admission.
type AdmissionResult struct {
	Enrollment *Enrollment `json:"enrollment"`
	Warnings   []string    `json:"warnings,omitempty"`
}

// DropResult reports a vacated seat and the promotion it triggered, if any.
type DropResult struct {
	EnrollmentID string      `json:"enrollment_id"`
	BatchID      string      `json:"batch_id"`
	Promoted     *Enrollment `json:"promoted,omitempty"`
}

// BulkEnrollmentSuccess is one admitted student of a bulk request.
type BulkEnrollmentSuccess struct {
	StudentID    string   `json:"student_id"`
	StudentName  string   `json:"student_name"`
	EnrollmentID string   `json:"enrollment_id"`
	Warnings     []string `json:"warnings,omitempty"`
}

// BulkEnrollmentFailure is one rejected student of a bulk request.
type BulkEnrollmentFailure struct {
	StudentID   string   `json:"student_id"`
	StudentName string   `json:"student_name,omitempty"`
	Errors      []string `json:"errors"`
}

// BulkEnrollmentResult aggregates a bulk admission.
type BulkEnrollmentResult struct {
	BatchID   string                  `json:"batch_id"`
	Total     int                     `json:"total"`
	Succeeded []BulkEnrollmentSuccess `json:"succeeded"`
	Failed    []BulkEnrollmentFailure `json:"failed"`
}

// EligibilityRequest previews admission without writing.
type EligibilityRequest struct {
	StudentID string `json:"student_id" validate:"omitempty,uuid"`
	BatchID   string `json:"batch_id" validate:"required,uuid"`
}

// ReconcileResult reports a count reconciliation run.
type ReconcileResult struct {
	Batches    int       `json:"batches"`
	Courses    int       `json:"courses"`
	Adjusted   int       `json:"adjusted"`
	FinishedAt time.Time `json:"finished_at"`
}

// StatusUpdateResult reports a status change and the promotion a drop triggered, if any.
type StatusUpdateResult struct {
	Enrollment *Enrollment `json:"enrollment"`
	Promoted   *Enrollment `json:"promoted,omitempty"`
}
