package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionEnrollmentCreate = "ENROLLMENT_CREATE"
	AuditActionEnrollmentDelete = "ENROLLMENT_DELETE"
	AuditActionEnrollmentStatus = "ENROLLMENT_STATUS"
	AuditActionWaitlistPromote  = "WAITLIST_PROMOTE"
	AuditActionWaitlistJoin     = "WAITLIST_JOIN"
	AuditActionWaitlistCancel   = "WAITLIST_CANCEL"
	AuditActionWaitlistExpire   = "WAITLIST_EXPIRE"
	AuditActionWaitlistDelete   = "WAITLIST_DELETE"
	AuditActionBulkEnrollment   = "BULK_ENROLLMENT"
	AuditActionPrerequisitesSet = "PREREQUISITES_SET"
	AuditActionBatchUpdate      = "BATCH_UPDATE"
)

// Audit resources.
const (
	AuditResourceEnrollment = "enrollment"
	AuditResourceWaitlist   = "waitlist"
	AuditResourceBatch      = "batch"
	AuditResourceCourse     = "course"
)

// AuditLogFilter narrows the audit trail listing.
type AuditLogFilter struct {
	Resource   string
	ResourceID string
	UserID     string
	Action     string
	Page       int
	PageSize   int
}

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
