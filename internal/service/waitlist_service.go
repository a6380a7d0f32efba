package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

type waitlistReader interface {
	ListWaitlist(ctx context.Context, filter models.WaitlistFilter) ([]models.WaitlistEntryDetail, int, error)
	FindStudentEntry(ctx context.Context, studentID, batchID string) (*models.WaitlistEntry, error)
	CountWaiting(ctx context.Context, batchID string) (int, error)
	CountWaitingAhead(ctx context.Context, entry *models.WaitlistEntry) (int, error)
	FindBatch(ctx context.Context, id string) (*models.Batch, error)
}

// WaitlistService manages FCFS queues for full batches.
type WaitlistService struct {
	store     admissionStore
	reader    waitlistReader
	cache     batchInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWaitlistService constructs WaitlistService.
func NewWaitlistService(store admissionStore, reader waitlistReader, cache batchInvalidator, validate *validator.Validate, logger *zap.Logger) *WaitlistService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &WaitlistService{store: store, reader: reader, cache: cache, validator: validate, logger: logger}
}

// Join queues a student for a full batch. A finished entry for the same pair is
// requeued at the back rather than duplicated.
func (s *WaitlistService) Join(ctx context.Context, actor models.Actor, req models.JoinWaitlistRequest) (*models.WaitlistEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waitlist payload")
	}
	studentID, err := resolveStudent(actor, req.StudentID)
	if err != nil {
		return nil, err
	}

	var entry *models.WaitlistEntry
	err = s.store.WithinTx(ctx, "waitlist_join", func(tx admissionTx) error {
		batch, err := tx.LockBatch(ctx, req.BatchID)
		if err != nil {
			return lookupError(err, "batch")
		}
		if _, err := loadStudent(ctx, tx.LockUser, studentID); err != nil {
			return err
		}
		if !batch.IsActive {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, msgBatchInactive)
		}
		if batch.EnrolledCount, err = tx.RefreshEnrolledCounts(ctx, batch.ID, batch.CourseID); err != nil {
			return appErrors.Internal(err, "failed to recount batch")
		}
		if !batch.IsFull() {
			return appErrors.Clone(appErrors.ErrValidation, "Batch has open seats; enroll directly")
		}
		open, err := tx.HasOpenEnrollment(ctx, studentID, batch.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to check existing enrollment")
		}
		if open {
			return appErrors.Clone(appErrors.ErrConflict, msgAlreadyInBatch)
		}
		held, err := tx.FindLiveCourseEnrollment(ctx, studentID, batch.CourseID, batch.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to check course enrollment")
		}
		if held != nil {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Already enrolled in %s (Batch %d)", held.CourseName, held.BatchNumber))
		}

		existing, err := tx.FindStudentEntry(ctx, studentID, batch.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to load waitlist entry")
		}
		if existing != nil && existing.Status == models.WaitlistWaiting {
			return appErrors.Clone(appErrors.ErrConflict, "Already on the waitlist for this batch")
		}
		position, err := tx.NextWaitlistPosition(ctx, batch.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to allocate waitlist position")
		}

		if existing != nil {
			existing.Position = position
			if err := tx.RequeueWaitlistEntry(ctx, existing); err != nil {
				return appErrors.Internal(err, "failed to requeue waitlist entry")
			}
			entry = existing
		} else {
			entry = &models.WaitlistEntry{StudentID: studentID, BatchID: batch.ID, Position: position, Status: models.WaitlistWaiting}
			if err := tx.InsertWaitlistEntry(ctx, entry); err != nil {
				if isUniqueViolation(err) {
					return appErrors.Clone(appErrors.ErrConflict, "Already on the waitlist for this batch")
				}
				return appErrors.Internal(err, "failed to create waitlist entry")
			}
		}
		return tx.CreateAuditLog(ctx, auditEntry(actor, models.AuditActionWaitlistJoin, models.AuditResourceWaitlist, entry.ID, map[string]interface{}{
			"student_id": studentID,
			"batch_id":   batch.ID,
			"position":   entry.Position,
		}))
	})
	if err != nil {
		return nil, keepOrWrap(err, "failed to join waitlist")
	}

	s.cache.InvalidateBatch(ctx, entry.BatchID)
	s.logger.Info("waitlist joined",
		zap.String("entry_id", entry.ID),
		zap.String("student_id", studentID),
		zap.String("batch_id", entry.BatchID),
		zap.Int("position", entry.Position))
	return entry, nil
}

// Cancel withdraws a waiting entry. Students may cancel only their own.
func (s *WaitlistService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.WaitlistEntry, error) {
	if !actor.IsStaff() && actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot manage waitlists")
	}
	return s.close(ctx, actor, id, "waitlist_cancel", models.WaitlistCancelled, models.AuditActionWaitlistCancel)
}

// Expire closes a waiting entry on behalf of the institute.
func (s *WaitlistService) Expire(ctx context.Context, actor models.Actor, id string) (*models.WaitlistEntry, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.close(ctx, actor, id, "waitlist_expire", models.WaitlistExpired, models.AuditActionWaitlistExpire)
}

// Delete removes an entry outright and closes the gap it leaves.
func (s *WaitlistService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	var batchID string
	err := s.store.WithinTx(ctx, "waitlist_delete", func(tx admissionTx) error {
		entry, err := lockEntryWithBatch(ctx, tx, id)
		if err != nil {
			return err
		}
		batchID = entry.BatchID
		if err := tx.DeleteWaitlistEntry(ctx, entry.ID); err != nil {
			return appErrors.Internal(err, "failed to delete waitlist entry")
		}
		if err := tx.RenumberWaitlist(ctx, entry.BatchID); err != nil {
			return appErrors.Internal(err, "failed to renumber waitlist")
		}
		return tx.CreateAuditLog(ctx, auditEntry(actor, models.AuditActionWaitlistDelete, models.AuditResourceWaitlist, entry.ID, map[string]interface{}{
			"student_id": entry.StudentID,
			"batch_id":   entry.BatchID,
			"status":     entry.Status,
			"position":   entry.Position,
		}))
	})
	if err != nil {
		return keepOrWrap(err, "failed to delete waitlist entry")
	}
	s.cache.InvalidateBatch(ctx, batchID)
	return nil
}

func (s *WaitlistService) close(ctx context.Context, actor models.Actor, id, label string, status models.WaitlistStatus, action string) (*models.WaitlistEntry, error) {
	var entry *models.WaitlistEntry
	err := s.store.WithinTx(ctx, label, func(tx admissionTx) error {
		var err error
		if entry, err = lockEntryWithBatch(ctx, tx, id); err != nil {
			return err
		}
		if actor.Role == models.RoleStudent && entry.StudentID != actor.UserID {
			return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		if entry.Status != models.WaitlistWaiting {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "waitlist entry is "+string(entry.Status))
		}
		if err := tx.SetWaitlistStatus(ctx, entry.ID, status, entry.Notified); err != nil {
			return appErrors.Internal(err, "failed to update waitlist entry")
		}
		if err := tx.RenumberWaitlist(ctx, entry.BatchID); err != nil {
			return appErrors.Internal(err, "failed to renumber waitlist")
		}
		previous := entry.Position
		entry.Status = status
		return tx.CreateAuditLog(ctx, auditEntry(actor, action, models.AuditResourceWaitlist, entry.ID, map[string]interface{}{
			"student_id": entry.StudentID,
			"batch_id":   entry.BatchID,
			"position":   previous,
		}))
	})
	if err != nil {
		return nil, keepOrWrap(err, "failed to update waitlist entry")
	}
	s.cache.InvalidateBatch(ctx, entry.BatchID)
	s.logger.Info("waitlist entry closed", zap.String("entry_id", entry.ID), zap.String("status", string(status)))
	return entry, nil
}

// lockEntryWithBatch keeps the batch-before-row lock order used by admissions.
func lockEntryWithBatch(ctx context.Context, tx admissionTx, id string) (*models.WaitlistEntry, error) {
	peek, err := tx.FindWaitlistEntry(ctx, id)
	if err != nil {
		return nil, lookupError(err, "waitlist entry")
	}
	if _, err := tx.LockBatch(ctx, peek.BatchID); err != nil {
		return nil, lookupError(err, "batch")
	}
	entry, err := tx.LockWaitlistEntry(ctx, id)
	if err != nil {
		return nil, lookupError(err, "waitlist entry")
	}
	return entry, nil
}

// List returns waitlist entries visible to the actor. Instructors must name a batch they teach.
func (s *WaitlistService) List(ctx context.Context, actor models.Actor, filter models.WaitlistFilter) ([]models.WaitlistEntryDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	case models.RoleInstructor:
		if filter.BatchID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "batch_id is required")
		}
		batch, err := s.reader.FindBatch(ctx, filter.BatchID)
		if err != nil {
			return nil, nil, lookupError(err, "batch")
		}
		if batch.InstructorID == nil || *batch.InstructorID != actor.UserID {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "not the instructor of this batch")
		}
	}
	items, total, err := s.reader.ListWaitlist(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list waitlist")
	}
	return items, pagination(filter.Page, filter.PageSize, total), nil
}

// Position reports where a student stands in a batch queue.
func (s *WaitlistService) Position(ctx context.Context, actor models.Actor, batchID, studentID string) (*models.WaitlistPosition, error) {
	if batchID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch_id is required")
	}
	studentID, err := resolveStudent(actor, studentID)
	if err != nil {
		return nil, err
	}
	entry, err := s.reader.FindStudentEntry(ctx, studentID, batchID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load waitlist entry")
	}
	if entry == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "not on the waitlist for this batch")
	}
	total, err := s.reader.CountWaiting(ctx, batchID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count waitlist")
	}
	pos := &models.WaitlistPosition{
		EntryID:      entry.ID,
		BatchID:      entry.BatchID,
		StudentID:    entry.StudentID,
		Position:     entry.Position,
		Status:       entry.Status,
		TotalWaiting: total,
	}
	if entry.Status == models.WaitlistWaiting {
		if pos.WaitingAhead, err = s.reader.CountWaitingAhead(ctx, entry); err != nil {
			return nil, appErrors.Internal(err, "failed to count waitlist")
		}
	}
	return pos, nil
}
