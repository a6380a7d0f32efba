package service

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// lookupError maps a repository miss to a 404 and anything else to an internal error.
func lookupError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return appErrors.Internal(err, "failed to load "+what)
}

// keepOrWrap returns typed errors unchanged and wraps everything else as internal.
func keepOrWrap(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Internal(err, message)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func auditEntry(actor models.Actor, action, resource, resourceID string, values interface{}) *models.AuditLog {
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
	}
	if actor.UserID != "" {
		id := actor.UserID
		entry.UserID = &id
	}
	if resourceID != "" {
		id := resourceID
		entry.ResourceID = &id
	}
	if values != nil {
		if payload, err := json.Marshal(values); err == nil {
			entry.NewValues = payload
		}
	}
	return entry
}

// resolveStudent decides whose seat the actor is acting on. Students act only for
// themselves, admin and staff for anyone, instructors for nobody.
func resolveStudent(actor models.Actor, requested string) (string, error) {
	switch {
	case actor.IsStaff():
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "student_id is required")
		}
		return requested, nil
	case actor.Role == models.RoleStudent:
		if requested != "" && requested != actor.UserID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "students may only act for themselves")
		}
		return actor.UserID, nil
	default:
		return "", appErrors.Clone(appErrors.ErrForbidden, "role cannot manage enrollments")
	}
}

func requireStaff(actor models.Actor) error {
	if !actor.IsStaff() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin or staff role required")
	}
	return nil
}

func pagination(page, size, total int) *models.Pagination {
	page, size = models.NormalizePage(page, size)
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
