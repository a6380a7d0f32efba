package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

type enrollmentReader interface {
	ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindEnrollmentDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindBatch(ctx context.Context, id string) (*models.Batch, error)
}

type batchInvalidator interface {
	InvalidateBatch(ctx context.Context, batchID string)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateBatch(context.Context, string) {}

// AdmissionConfig tunes AdmissionService.
type AdmissionConfig struct {
	MaxBulkSize int
}

// AdmissionService owns seat allocation: admission, drops, status changes and the
// waitlist promotion that follows a vacated seat.
type AdmissionService struct {
	store     admissionStore
	reader    enrollmentReader
	cache     batchInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AdmissionConfig
}

// NewAdmissionService constructs AdmissionService.
func NewAdmissionService(store admissionStore, reader enrollmentReader, cache batchInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AdmissionConfig) *AdmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBulkSize <= 0 {
		cfg.MaxBulkSize = 200
	}
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &AdmissionService{store: store, reader: reader, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// Check previews admission for a student without writing anything.
func (s *AdmissionService) Check(ctx context.Context, actor models.Actor, req models.EligibilityRequest) (*models.EligibilityResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid eligibility payload")
	}
	studentID, err := resolveStudent(actor, req.StudentID)
	if err != nil {
		return nil, err
	}

	var result *models.EligibilityResult
	err = s.store.WithinTx(ctx, "eligibility_check", func(tx admissionTx) error {
		batch, err := tx.FindBatch(ctx, req.BatchID)
		if err != nil {
			return lookupError(err, "batch")
		}
		if _, err := loadStudent(ctx, tx.FindUser, studentID); err != nil {
			return err
		}
		result, err = checkEligibility(ctx, tx, studentID, batch)
		return err
	})
	if err != nil {
		return nil, keepOrWrap(err, "failed to check eligibility")
	}
	return result, nil
}

// Enroll admits a student into a batch.
func (s *AdmissionService) Enroll(ctx context.Context, actor models.Actor, req models.CreateEnrollmentRequest) (*models.AdmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	studentID, err := resolveStudent(actor, req.StudentID)
	if err != nil {
		return nil, err
	}

	var result *models.AdmissionResult
	err = s.store.WithinTx(ctx, "enroll", func(tx admissionTx) error {
		var err error
		result, err = s.admit(ctx, tx, actor, studentID, req.BatchID, models.SourceDirect)
		return err
	})
	s.recordAdmission(err, models.SourceDirect)
	if err != nil {
		return nil, keepOrWrap(err, "failed to enroll student")
	}

	s.cache.InvalidateBatch(ctx, req.BatchID)
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", result.Enrollment.ID),
		zap.String("student_id", studentID),
		zap.String("batch_id", req.BatchID),
		zap.Strings("warnings", result.Warnings))
	return result, nil
}

// admit runs the admission sequence inside an open transaction. Lock order is
// batch and course, then student, then enrollment and waitlist rows.
func (s *AdmissionService) admit(ctx context.Context, tx admissionTx, actor models.Actor, studentID, batchID string, source models.EnrollmentSource) (*models.AdmissionResult, error) {
	batch, student, err := lockSeatAndStudent(ctx, tx, studentID, batchID)
	if err != nil {
		return nil, err
	}
	return s.admitLocked(ctx, tx, actor, batch, student, source)
}

// lockSeatAndStudent takes the batch lock and then the student row lock.
func lockSeatAndStudent(ctx context.Context, tx admissionTx, studentID, batchID string) (*models.Batch, *models.User, error) {
	batch, err := tx.LockBatch(ctx, batchID)
	if err != nil {
		return nil, nil, lookupError(err, "batch")
	}
	user, err := tx.LockUser(ctx, studentID)
	if err != nil {
		return nil, nil, lookupError(err, "student")
	}
	return batch, user, nil
}

// admitLocked finishes an admission once the batch and student rows are locked.
func (s *AdmissionService) admitLocked(ctx context.Context, tx admissionTx, actor models.Actor, batch *models.Batch, student *models.User, source models.EnrollmentSource) (*models.AdmissionResult, error) {
	if err := checkStudent(student); err != nil {
		return nil, err
	}
	studentID := student.ID
	var err error
	if batch.EnrolledCount, err = tx.RefreshEnrolledCounts(ctx, batch.ID, batch.CourseID); err != nil {
		return nil, appErrors.Internal(err, "failed to recount batch")
	}

	eligibility, err := checkEligibility(ctx, tx, studentID, batch)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, appErrors.WithDetails(appErrors.ErrAdmissionRejected, strings.Join(eligibility.Errors, "; "), eligibility.Errors)
	}

	enrollment := &models.Enrollment{
		StudentID: studentID,
		BatchID:   batch.ID,
		CourseID:  batch.CourseID,
		Status:    models.EnrollmentActive,
		Source:    source,
	}
	if err := tx.InsertEnrollment(ctx, enrollment); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.WithDetails(appErrors.ErrConflict, msgAlreadyInBatch, []string{msgAlreadyInBatch})
		}
		return nil, appErrors.Internal(err, "failed to create enrollment")
	}
	if _, err := tx.RefreshEnrolledCounts(ctx, batch.ID, batch.CourseID); err != nil {
		return nil, appErrors.Internal(err, "failed to recount batch")
	}

	entry, err := tx.FindStudentEntry(ctx, studentID, batch.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load waitlist entry")
	}
	if entry != nil && entry.Status == models.WaitlistWaiting {
		if err := tx.SetWaitlistStatus(ctx, entry.ID, models.WaitlistEnrolled, entry.Notified); err != nil {
			return nil, appErrors.Internal(err, "failed to close waitlist entry")
		}
		if err := tx.RenumberWaitlist(ctx, batch.ID); err != nil {
			return nil, appErrors.Internal(err, "failed to renumber waitlist")
		}
	}

	enrollmentID := enrollment.ID
	if err := tx.InsertNotification(ctx, &models.Notification{
		UserID:              studentID,
		Type:                models.NotificationTypeEnrollment,
		Channel:             models.NotificationChannelInApp,
		Title:               "Enrollment Confirmation",
		Message:             fmt.Sprintf("You have been enrolled in %s", batch.Label()),
		RelatedEnrollmentID: &enrollmentID,
	}); err != nil {
		return nil, appErrors.Internal(err, "failed to record notification")
	}

	if source != models.SourceBulk {
		if err := tx.CreateAuditLog(ctx, auditEntry(actor, models.AuditActionEnrollmentCreate, models.AuditResourceEnrollment, enrollment.ID, map[string]interface{}{
			"student_id": studentID,
			"batch_id":   batch.ID,
			"course_id":  batch.CourseID,
			"source":     source,
			"warnings":   eligibility.Warnings,
		})); err != nil {
			return nil, appErrors.Internal(err, "failed to write audit log")
		}
	}

	return &models.AdmissionResult{Enrollment: enrollment, Warnings: eligibility.Warnings}, nil
}

func loadStudent(ctx context.Context, load func(context.Context, string) (*models.User, error), studentID string) (*models.User, error) {
	user, err := load(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "student")
	}
	if err := checkStudent(user); err != nil {
		return nil, err
	}
	return user, nil
}

func checkStudent(user *models.User) error {
	if user.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "user is not a student")
	}
	if !user.Active {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student account is inactive")
	}
	return nil
}

// Drop deletes an enrollment, recomputes counts and promotes the next waiting student.
func (s *AdmissionService) Drop(ctx context.Context, actor models.Actor, enrollmentID string) (*models.DropResult, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}

	var result *models.DropResult
	err := s.store.WithinTx(ctx, "drop", func(tx admissionTx) error {
		batch, enrollment, err := s.lockEnrollmentWithBatch(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if err := tx.DeleteEnrollment(ctx, enrollment.ID); err != nil {
			return appErrors.Internal(err, "failed to delete enrollment")
		}
		count, err := tx.RefreshEnrolledCounts(ctx, batch.ID, batch.CourseID)
		if err != nil {
			return appErrors.Internal(err, "failed to recount batch")
		}
		if err := tx.CreateAuditLog(ctx, auditEntry(actor, models.AuditActionEnrollmentDelete, models.AuditResourceEnrollment, enrollment.ID, map[string]interface{}{
			"student_id": enrollment.StudentID,
			"batch_id":   enrollment.BatchID,
			"status":     enrollment.Status,
		})); err != nil {
			return appErrors.Internal(err, "failed to write audit log")
		}
		batch.EnrolledCount = count
		promoted, err := promoteNext(ctx, tx, actor, batch)
		if err != nil {
			return err
		}
		result = &models.DropResult{EnrollmentID: enrollment.ID, BatchID: batch.ID, Promoted: promoted}
		return nil
	})
	if err != nil {
		return nil, keepOrWrap(err, "failed to drop enrollment")
	}
	s.afterSeatReleased(ctx, result.BatchID, result.EnrollmentID, result.Promoted)
	return result, nil
}

// UpdateStatus moves an enrollment through its lifecycle. Dropping frees the seat and
// promotes from the waitlist; completing only recomputes counts.
func (s *AdmissionService) UpdateStatus(ctx context.Context, actor models.Actor, enrollmentID string, req models.UpdateEnrollmentStatusRequest) (*models.StatusUpdateResult, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	var result *models.StatusUpdateResult
	err := s.store.WithinTx(ctx, "status_update", func(tx admissionTx) error {
		batch, enrollment, err := s.lockEnrollmentWithBatch(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		previous := enrollment.Status
		if !previous.CanTransition(req.Status) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot change status from %s to %s", previous, req.Status))
		}
		if err := tx.SetEnrollmentStatus(ctx, enrollment.ID, req.Status, req.Grade); err != nil {
			return appErrors.Internal(err, "failed to update enrollment status")
		}
		enrollment.Status = req.Status
		if req.Grade != nil {
			enrollment.Grade = req.Grade
		}
		count, err := tx.RefreshEnrolledCounts(ctx, batch.ID, batch.CourseID)
		if err != nil {
			return appErrors.Internal(err, "failed to recount batch")
		}
		if err := tx.CreateAuditLog(ctx, auditEntry(actor, models.AuditActionEnrollmentStatus, models.AuditResourceEnrollment, enrollment.ID, map[string]interface{}{
			"from": previous,
			"to":   req.Status,
		})); err != nil {
			return appErrors.Internal(err, "failed to write audit log")
		}

		result = &models.StatusUpdateResult{Enrollment: enrollment}
		if req.Status == models.EnrollmentDropped {
			batch.EnrolledCount = count
			if result.Promoted, err = promoteNext(ctx, tx, actor, batch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, keepOrWrap(err, "failed to update enrollment status")
	}
	if req.Status == models.EnrollmentDropped {
		s.afterSeatReleased(ctx, result.Enrollment.BatchID, result.Enrollment.ID, result.Promoted)
	} else {
		s.cache.InvalidateBatch(ctx, result.Enrollment.BatchID)
	}
	return result, nil
}

// lockEnrollmentWithBatch reads the enrollment to learn its batch, takes the batch lock
// and then locks the enrollment row itself.
func (s *AdmissionService) lockEnrollmentWithBatch(ctx context.Context, tx admissionTx, enrollmentID string) (*models.Batch, *models.Enrollment, error) {
	peek, err := tx.FindEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, nil, lookupError(err, "enrollment")
	}
	batch, err := tx.LockBatch(ctx, peek.BatchID)
	if err != nil {
		return nil, nil, lookupError(err, "batch")
	}
	enrollment, err := tx.LockEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, nil, lookupError(err, "enrollment")
	}
	return batch, enrollment, nil
}

// promoteNext fills one vacated seat from the waitlist. batch.EnrolledCount must hold
// the count recomputed after the seat was released. At most one student is promoted.
func promoteNext(ctx context.Context, tx admissionTx, actor models.Actor, batch *models.Batch) (*models.Enrollment, error) {
	if batch.EnrolledCount >= batch.Capacity {
		return nil, nil
	}
	for {
		entry, err := tx.NextWaiting(ctx, batch.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load waitlist")
		}
		if entry == nil {
			return nil, nil
		}
		if _, err := tx.LockUser(ctx, entry.StudentID); err != nil {
			return nil, lookupError(err, "waitlisted student")
		}

		// An entry whose student already holds a seat in this course is closed without
		// consuming the vacancy.
		seated, err := holdsCourseSeat(ctx, tx, entry.StudentID, batch)
		if err != nil {
			return nil, err
		}
		if seated {
			if err := tx.SetWaitlistStatus(ctx, entry.ID, models.WaitlistEnrolled, entry.Notified); err != nil {
				return nil, appErrors.Internal(err, "failed to close waitlist entry")
			}
			continue
		}

		enrollment := &models.Enrollment{
			StudentID: entry.StudentID,
			BatchID:   batch.ID,
			CourseID:  batch.CourseID,
			Status:    models.EnrollmentActive,
			Source:    models.SourceWaitlist,
		}
		if err := tx.InsertEnrollment(ctx, enrollment); err != nil {
			return nil, appErrors.Internal(err, "failed to create promoted enrollment")
		}
		if err := tx.SetWaitlistStatus(ctx, entry.ID, models.WaitlistEnrolled, true); err != nil {
			return nil, appErrors.Internal(err, "failed to update waitlist entry")
		}
		enrollmentID := enrollment.ID
		if err := tx.InsertNotification(ctx, &models.Notification{
			UserID:              entry.StudentID,
			Type:                models.NotificationTypePromotion,
			Channel:             models.NotificationChannelInApp,
			Title:               "Waitlist Promotion",
			Message:             fmt.Sprintf("A seat opened in %s and you have been enrolled from the waitlist", batch.Label()),
			RelatedEnrollmentID: &enrollmentID,
		}); err != nil {
			return nil, appErrors.Internal(err, "failed to record notification")
		}
		if err := tx.RenumberWaitlist(ctx, batch.ID); err != nil {
			return nil, appErrors.Internal(err, "failed to renumber waitlist")
		}
		if batch.EnrolledCount, err = tx.RefreshEnrolledCounts(ctx, batch.ID, batch.CourseID); err != nil {
			return nil, appErrors.Internal(err, "failed to recount batch")
		}
		if err := tx.CreateAuditLog(ctx, auditEntry(actor, models.AuditActionWaitlistPromote, models.AuditResourceWaitlist, entry.ID, map[string]interface{}{
			"student_id":    entry.StudentID,
			"batch_id":      batch.ID,
			"enrollment_id": enrollment.ID,
			"position":      entry.Position,
		})); err != nil {
			return nil, appErrors.Internal(err, "failed to write audit log")
		}
		return enrollment, nil
	}
}

// holdsCourseSeat reports whether the student has a live enrollment in the batch or in
// another batch of the same course.
func holdsCourseSeat(ctx context.Context, tx admissionTx, studentID string, batch *models.Batch) (bool, error) {
	open, err := tx.HasOpenEnrollment(ctx, studentID, batch.ID)
	if err != nil {
		return false, appErrors.Internal(err, "failed to check existing enrollment")
	}
	if open {
		return true, nil
	}
	held, err := tx.FindLiveCourseEnrollment(ctx, studentID, batch.CourseID, batch.ID)
	if err != nil {
		return false, appErrors.Internal(err, "failed to check course enrollment")
	}
	return held != nil, nil
}

func (s *AdmissionService) afterSeatReleased(ctx context.Context, batchID, enrollmentID string, promoted *models.Enrollment) {
	s.cache.InvalidateBatch(ctx, batchID)
	fields := []zap.Field{zap.String("enrollment_id", enrollmentID), zap.String("batch_id", batchID)}
	if promoted != nil {
		s.metrics.RecordPromotion()
		fields = append(fields, zap.String("promoted_student_id", promoted.StudentID), zap.String("promoted_enrollment_id", promoted.ID))
	}
	s.logger.Info("seat released", fields...)
}

// BulkEnroll admits many students into one batch, each in its own transaction, and
// records one audit entry for the whole request.
func (s *AdmissionService) BulkEnroll(ctx context.Context, actor models.Actor, batchID string, req models.BulkEnrollRequest) (*models.BulkEnrollmentResult, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk enrollment payload")
	}
	if len(req.StudentIDs) > s.cfg.MaxBulkSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d students per request", s.cfg.MaxBulkSize))
	}
	if _, err := s.reader.FindBatch(ctx, batchID); err != nil {
		return nil, lookupError(err, "batch")
	}

	result := &models.BulkEnrollmentResult{
		BatchID:   batchID,
		Succeeded: []models.BulkEnrollmentSuccess{},
		Failed:    []models.BulkEnrollmentFailure{},
	}
	seen := make(map[string]struct{}, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		if _, dup := seen[studentID]; dup {
			continue
		}
		seen[studentID] = struct{}{}
		result.Total++

		var admitted *models.AdmissionResult
		var studentName string
		err := s.store.WithinTx(ctx, "bulk_enroll", func(tx admissionTx) error {
			batch, student, err := lockSeatAndStudent(ctx, tx, studentID, batchID)
			if err != nil {
				return err
			}
			studentName = student.FullName
			admitted, err = s.admitLocked(ctx, tx, actor, batch, student, models.SourceBulk)
			return err
		})
		s.recordAdmission(err, models.SourceBulk)
		if err != nil {
			result.Failed = append(result.Failed, models.BulkEnrollmentFailure{
				StudentID:   studentID,
				StudentName: studentName,
				Errors:      s.failureMessages(err, studentID),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, models.BulkEnrollmentSuccess{
			StudentID:    studentID,
			StudentName:  studentName,
			EnrollmentID: admitted.Enrollment.ID,
			Warnings:     admitted.Warnings,
		})
	}

	if err := s.store.WithinTx(ctx, "bulk_audit", func(tx admissionTx) error {
		return tx.CreateAuditLog(ctx, auditEntry(actor, models.AuditActionBulkEnrollment, models.AuditResourceBatch, batchID, map[string]interface{}{
			"total":     result.Total,
			"succeeded": len(result.Succeeded),
			"failed":    len(result.Failed),
		}))
	}); err != nil {
		s.logger.Error("failed to audit bulk enrollment", zap.String("batch_id", batchID), zap.Error(err))
	}

	if len(result.Succeeded) > 0 {
		s.cache.InvalidateBatch(ctx, batchID)
	}
	s.logger.Info("bulk enrollment processed",
		zap.String("batch_id", batchID),
		zap.Int("total", result.Total),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

func (s *AdmissionService) failureMessages(err error, studentID string) []string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status < 500 {
		if len(appErr.Details) > 0 {
			return appErr.Details
		}
		return []string{appErr.Message}
	}
	s.logger.Error("bulk admission failed", zap.String("student_id", studentID), zap.Error(err))
	return []string{"internal error"}
}

func (s *AdmissionService) recordAdmission(err error, source models.EnrollmentSource) {
	outcome := AdmissionAdmitted
	if err != nil {
		outcome = AdmissionFailed
		if errors.Is(err, appErrors.ErrAdmissionRejected) {
			outcome = AdmissionRejected
		}
	}
	s.metrics.RecordAdmission(outcome, string(source))
}

// List returns enrollments visible to the actor.
func (s *AdmissionService) List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	case models.RoleInstructor:
		filter.InstructorID = actor.UserID
	}
	items, total, err := s.reader.ListEnrollments(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return items, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one enrollment when the actor may see it.
func (s *AdmissionService) Get(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.reader.FindEnrollmentDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	switch actor.Role {
	case models.RoleStudent:
		if detail.StudentID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
	case models.RoleInstructor:
		batch, err := s.reader.FindBatch(ctx, detail.BatchID)
		if err != nil {
			return nil, lookupError(err, "batch")
		}
		if batch.InstructorID == nil || *batch.InstructorID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
	}
	return detail, nil
}
