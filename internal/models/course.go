package models

import "time"

// PrerequisiteEnforcement controls how missing prerequisite completions affect admission.
type PrerequisiteEnforcement string

const (
	PrerequisiteStrict PrerequisiteEnforcement = "strict"
	PrerequisiteSoft   PrerequisiteEnforcement = "soft"
	PrerequisiteNone   PrerequisiteEnforcement = "none"
)

// ConflictChecking controls how schedule overlaps affect admission.
type ConflictChecking string

const (
	ConflictStrict  ConflictChecking = "strict"
	ConflictWarning ConflictChecking = "warning"
	ConflictNone    ConflictChecking = "none"
)

// Course is a catalogue entry. EnrolledCount is derived from live enrollments.
type Course struct {
	ID                       string                  `db:"id" json:"id"`
	Code                     string                  `db:"code" json:"code"`
	Name                     string                  `db:"name" json:"name"`
	Description              string                  `db:"description" json:"description"`
	EnrolledCount            int                     `db:"enrolled_count" json:"enrolled_count"`
	PrerequisiteEnforcement  PrerequisiteEnforcement `db:"prerequisite_enforcement" json:"prerequisite_enforcement"`
	ScheduleConflictChecking ConflictChecking        `db:"schedule_conflict_checking" json:"schedule_conflict_checking"`
	Active                   bool                    `db:"active" json:"active"`
	CreatedAt                time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time               `db:"updated_at" json:"updated_at"`
	Prerequisites            []CourseRef             `db:"-" json:"prerequisites,omitempty"`
}

// CourseRef is the compact form used when listing related courses.
type CourseRef struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// PrerequisiteEdge is a row of the course_prerequisites relation.
type PrerequisiteEdge struct {
	CourseID       string `db:"course_id"`
	PrerequisiteID string `db:"prerequisite_id"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Code                     string                  `json:"code" validate:"required,max=32"`
	Name                     string                  `json:"name" validate:"required,max=200"`
	Description              string                  `json:"description"`
	PrerequisiteEnforcement  PrerequisiteEnforcement `json:"prerequisite_enforcement" validate:"omitempty,oneof=strict soft none"`
	ScheduleConflictChecking ConflictChecking        `json:"schedule_conflict_checking" validate:"omitempty,oneof=strict warning none"`
	PrerequisiteIDs          []string                `json:"prerequisite_ids" validate:"omitempty,dive,uuid"`
}

// UpdateCourseRequest changes course metadata and admission policies.
type UpdateCourseRequest struct {
	Name                     *string                  `json:"name" validate:"omitempty,max=200"`
	Description              *string                  `json:"description"`
	PrerequisiteEnforcement  *PrerequisiteEnforcement `json:"prerequisite_enforcement" validate:"omitempty,oneof=strict soft none"`
	ScheduleConflictChecking *ConflictChecking        `json:"schedule_conflict_checking" validate:"omitempty,oneof=strict warning none"`
	Active                   *bool                    `json:"active"`
}

// SetPrerequisitesRequest replaces the direct prerequisites of a course.
type SetPrerequisitesRequest struct {
	PrerequisiteIDs []string `json:"prerequisite_ids" validate:"omitempty,dive,uuid"`
}

// PrerequisiteProgress reports whether a student completed one prerequisite.
type PrerequisiteProgress struct {
	CourseRef
	Completed bool `db:"completed" json:"completed"`
}

// PrerequisiteStatus summarises a student's standing against a course's prerequisites.
type PrerequisiteStatus struct {
	CourseID      string                  `json:"course_id"`
	StudentID     string                  `json:"student_id"`
	Enforcement   PrerequisiteEnforcement `json:"enforcement"`
	Prerequisites []PrerequisiteProgress  `json:"prerequisites"`
	Satisfied     bool                    `json:"satisfied"`
}
