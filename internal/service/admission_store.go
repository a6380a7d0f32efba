package service

import (
	"context"

	"github.com/noah-isme/institute-admission-api/internal/models"
	"github.com/noah-isme/institute-admission-api/internal/repository"
)

// eligibilityReader is the read surface the eligibility checks need.
type eligibilityReader interface {
	HasOpenEnrollment(ctx context.Context, studentID, batchID string) (bool, error)
	FindLiveCourseEnrollment(ctx context.Context, studentID, courseID, excludeBatchID string) (*models.HeldEnrollment, error)
	ListPrerequisiteProgress(ctx context.Context, courseID, studentID string) ([]models.PrerequisiteProgress, error)
	ListBatchSchedules(ctx context.Context, batchID string) ([]models.Schedule, error)
	ListHeldSchedules(ctx context.Context, studentID, excludeBatchID string) ([]models.HeldSchedule, error)
}

// admissionTx is the transaction-scoped repository surface used by seat-changing workflows.
type admissionTx interface {
	eligibilityReader

	FindUser(ctx context.Context, id string) (*models.User, error)
	LockUser(ctx context.Context, id string) (*models.User, error)

	FindCourse(ctx context.Context, id string) (*models.Course, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, course *models.Course) error
	CountCourses(ctx context.Context, ids []string) (int, error)
	LockPrerequisiteGraph(ctx context.Context) error
	ListPrerequisiteEdges(ctx context.Context) ([]models.PrerequisiteEdge, error)
	ReplacePrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error

	FindBatch(ctx context.Context, id string) (*models.Batch, error)
	LockBatch(ctx context.Context, id string) (*models.Batch, error)
	RefreshEnrolledCounts(ctx context.Context, batchID, courseID string) (int, error)
	UpdateBatch(ctx context.Context, batch *models.Batch) error

	FindEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	LockEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	DeleteEnrollment(ctx context.Context, id string) error
	SetEnrollmentStatus(ctx context.Context, id string, status models.EnrollmentStatus, grade *string) error

	FindWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error)
	LockWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error)
	FindStudentEntry(ctx context.Context, studentID, batchID string) (*models.WaitlistEntry, error)
	NextWaiting(ctx context.Context, batchID string) (*models.WaitlistEntry, error)
	NextWaitlistPosition(ctx context.Context, batchID string) (int, error)
	InsertWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error
	RequeueWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error
	SetWaitlistStatus(ctx context.Context, id string, status models.WaitlistStatus, notified bool) error
	DeleteWaitlistEntry(ctx context.Context, id string) error
	RenumberWaitlist(ctx context.Context, batchID string) error

	InsertNotification(ctx context.Context, n *models.Notification) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// admissionStore runs a unit of work in one transaction.
type admissionStore interface {
	WithinTx(ctx context.Context, label string, fn func(admissionTx) error) error
}

// AdmissionStore adapts a repository.Transactor to the service layer.
type AdmissionStore struct {
	tx *repository.Transactor
}

// NewAdmissionStore wraps the transactor.
func NewAdmissionStore(tx *repository.Transactor) *AdmissionStore {
	return &AdmissionStore{tx: tx}
}

// WithinTx runs fn against a transaction-bound repository set.
func (s *AdmissionStore) WithinTx(ctx context.Context, label string, fn func(admissionTx) error) error {
	return s.tx.WithinTx(ctx, label, func(store *repository.Store) error {
		return fn(store)
	})
}
