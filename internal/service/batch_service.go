package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
	"github.com/noah-isme/institute-admission-api/pkg/export"
)

type batchRepository interface {
	FindBatch(ctx context.Context, id string) (*models.Batch, error)
	ListBatches(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error)
	CreateBatch(ctx context.Context, batch *models.Batch) error
	ListRoster(ctx context.Context, batchID string) ([]models.RosterEntry, error)
	ListBatchSchedules(ctx context.Context, batchID string) ([]models.Schedule, error)
	CreateSchedule(ctx context.Context, schedule *models.Schedule) error
	DeleteSchedule(ctx context.Context, batchID, scheduleID string) (bool, error)
	CountWaiting(ctx context.Context, batchID string) (int, error)
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	FindUser(ctx context.Context, id string) (*models.User, error)
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateBatch(ctx context.Context, batchID string)
}

// RosterFile is a rendered roster ready to be streamed.
type RosterFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// BatchService manages batches, their weekly schedule and seat availability.
type BatchService struct {
	repo      batchRepository
	store     admissionStore
	cache     availabilityCache
	renderers map[string]export.Renderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchService constructs BatchService. Renderers default to CSV and PDF.
func NewBatchService(repo batchRepository, store admissionStore, cache availabilityCache, validate *validator.Validate, logger *zap.Logger, renderers ...export.Renderer) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter()}
	}
	byExt := make(map[string]export.Renderer, len(renderers))
	for _, r := range renderers {
		byExt[r.Extension()] = r
	}
	return &BatchService{repo: repo, store: store, cache: cache, renderers: byExt, validator: validate, logger: logger}
}

// List returns batches with pagination.
func (s *BatchService) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, *models.Pagination, error) {
	batches, total, err := s.repo.ListBatches(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list batches")
	}
	return batches, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a batch with its schedule.
func (s *BatchService) Get(ctx context.Context, id string) (*models.Batch, error) {
	batch, err := s.repo.FindBatch(ctx, id)
	if err != nil {
		return nil, lookupError(err, "batch")
	}
	schedules, err := s.repo.ListBatchSchedules(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load schedule")
	}
	batch.Schedules = schedules
	return batch, nil
}

// Create adds a batch to a course.
func (s *BatchService) Create(ctx context.Context, actor models.Actor, req models.CreateBatchRequest) (*models.Batch, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	if _, err := s.repo.FindCourse(ctx, req.CourseID); err != nil {
		return nil, lookupError(err, "course")
	}
	if req.InstructorID != nil {
		user, err := s.repo.FindUser(ctx, *req.InstructorID)
		if err != nil {
			return nil, lookupError(err, "instructor")
		}
		if user.Role != models.RoleInstructor {
			return nil, appErrors.Clone(appErrors.ErrValidation, "instructor_id must reference an instructor")
		}
	}

	batch := &models.Batch{
		CourseID:     req.CourseID,
		BatchNumber:  req.BatchNumber,
		InstructorID: req.InstructorID,
		Capacity:     req.Capacity,
		IsActive:     true,
		StartDate:    start,
		EndDate:      end,
	}
	if req.IsActive != nil {
		batch.IsActive = *req.IsActive
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("batch %d already exists for this course", req.BatchNumber))
		}
		return nil, appErrors.Internal(err, "failed to create batch")
	}
	s.logger.Info("batch created", zap.String("batch_id", batch.ID), zap.String("course_id", batch.CourseID), zap.Int("capacity", batch.Capacity))
	return s.Get(ctx, batch.ID)
}

// Update changes capacity, instructor, dates or the active flag of a batch under the
// batch lock. Capacity may not drop below the recomputed enrolled count. When an
// active batch gains seats, waiting students are promoted one per freed seat.
func (s *BatchService) Update(ctx context.Context, actor models.Actor, batchID string, req models.UpdateBatchRequest) (*models.BatchUpdateResult, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	result := &models.BatchUpdateResult{Promoted: []models.Enrollment{}}
	err := s.store.WithinTx(ctx, "batch_update", func(tx admissionTx) error {
		batch, err := tx.LockBatch(ctx, batchID)
		if err != nil {
			return lookupError(err, "batch")
		}
		before := map[string]interface{}{
			"capacity":      batch.Capacity,
			"is_active":     batch.IsActive,
			"instructor_id": batch.InstructorID,
		}

		if req.InstructorID != nil {
			if *req.InstructorID == "" {
				batch.InstructorID = nil
			} else {
				user, err := tx.FindUser(ctx, *req.InstructorID)
				if err != nil {
					return lookupError(err, "instructor")
				}
				if user.Role != models.RoleInstructor {
					return appErrors.Clone(appErrors.ErrValidation, "instructor_id must reference an instructor")
				}
				id := user.ID
				batch.InstructorID = &id
			}
		}
		if req.StartDate != nil {
			if batch.StartDate, err = parseDate(*req.StartDate); err != nil {
				return err
			}
		}
		if req.EndDate != nil {
			if batch.EndDate, err = parseDate(*req.EndDate); err != nil {
				return err
			}
		}
		if batch.StartDate != nil && batch.EndDate != nil && batch.EndDate.Before(*batch.StartDate) {
			return appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
		}
		if req.IsActive != nil {
			batch.IsActive = *req.IsActive
		}

		if batch.EnrolledCount, err = tx.RefreshEnrolledCounts(ctx, batch.ID, batch.CourseID); err != nil {
			return appErrors.Internal(err, "failed to recount batch")
		}
		if req.Capacity != nil {
			if *req.Capacity < batch.EnrolledCount {
				return appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("capacity %d is below the %d students already enrolled", *req.Capacity, batch.EnrolledCount))
			}
			batch.Capacity = *req.Capacity
		}

		if err := tx.UpdateBatch(ctx, batch); err != nil {
			return lookupError(err, "batch")
		}
		if err := tx.CreateAuditLog(ctx, auditEntry(actor, models.AuditActionBatchUpdate, models.AuditResourceBatch, batch.ID, map[string]interface{}{
			"old": before,
			"new": map[string]interface{}{
				"capacity":      batch.Capacity,
				"is_active":     batch.IsActive,
				"instructor_id": batch.InstructorID,
			},
		})); err != nil {
			return appErrors.Internal(err, "failed to write audit log")
		}

		if batch.IsActive {
			for {
				promoted, err := promoteNext(ctx, tx, actor, batch)
				if err != nil {
					return err
				}
				if promoted == nil {
					break
				}
				result.Promoted = append(result.Promoted, *promoted)
			}
		}
		result.Batch = batch
		return nil
	})
	if err != nil {
		return nil, keepOrWrap(err, "failed to update batch")
	}
	if s.cache != nil {
		s.cache.InvalidateBatch(ctx, batchID)
	}
	s.logger.Info("batch updated",
		zap.String("batch_id", batchID),
		zap.Int("capacity", result.Batch.Capacity),
		zap.Int("enrolled", result.Batch.EnrolledCount),
		zap.Int("promoted", len(result.Promoted)),
	)
	return result, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dates must use YYYY-MM-DD")
	}
	return &t, nil
}

// AddSchedule attaches a weekly slot to a batch.
func (s *BatchService) AddSchedule(ctx context.Context, actor models.Actor, batchID string, req models.CreateScheduleRequest) (*models.Schedule, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	start, err := models.ParseClock(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must use HH:MM")
	}
	end, err := models.ParseClock(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must use HH:MM")
	}
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	if _, err := s.repo.FindBatch(ctx, batchID); err != nil {
		return nil, lookupError(err, "batch")
	}
	schedule := &models.Schedule{
		BatchID:   batchID,
		DayOfWeek: req.DayOfWeek,
		StartTime: start,
		EndTime:   end,
		Room:      strings.TrimSpace(req.Room),
		Building:  strings.TrimSpace(req.Building),
	}
	if err := s.repo.CreateSchedule(ctx, schedule); err != nil {
		return nil, appErrors.Internal(err, "failed to create schedule")
	}
	return schedule, nil
}

// RemoveSchedule deletes a slot from a batch.
func (s *BatchService) RemoveSchedule(ctx context.Context, actor models.Actor, batchID, scheduleID string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	removed, err := s.repo.DeleteSchedule(ctx, batchID, scheduleID)
	if err != nil {
		return appErrors.Internal(err, "failed to delete schedule")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	return nil
}

// Availability reports seats for a batch, served from cache when possible. The
// boolean reports a cache hit.
func (s *BatchService) Availability(ctx context.Context, batchID string) (*models.BatchAvailability, bool, error) {
	key := availabilityKey(batchID)
	var cached models.BatchAvailability
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, true, nil
		}
	}

	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		return nil, false, lookupError(err, "batch")
	}
	waiting, err := s.repo.CountWaiting(ctx, batchID)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to count waitlist")
	}
	available := batch.Capacity - batch.EnrolledCount
	if available < 0 {
		available = 0
	}
	result := &models.BatchAvailability{
		BatchID:   batch.ID,
		Capacity:  batch.Capacity,
		Enrolled:  batch.EnrolledCount,
		Available: available,
		Waiting:   waiting,
		IsActive:  batch.IsActive,
		IsFull:    batch.IsFull(),
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, result, 0)
	}
	return result, false, nil
}

// Roster renders the non-dropped enrollments of a batch. Staff and the batch
// instructor may export it.
func (s *BatchService) Roster(ctx context.Context, actor models.Actor, batchID, format string) (*RosterFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported roster format")
	}
	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		return nil, lookupError(err, "batch")
	}
	if !actor.IsStaff() {
		if actor.Role != models.RoleInstructor || batch.InstructorID == nil || *batch.InstructorID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to export this roster")
		}
	}
	entries, err := s.repo.ListRoster(ctx, batchID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load roster")
	}

	dataset := export.Dataset{Headers: []string{"student_name", "student_email", "status", "source", "enrolled_at"}}
	for _, e := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_name":  e.StudentName,
			"student_email": e.StudentEmail,
			"status":        string(e.Status),
			"source":        string(e.Source),
			"enrolled_at":   e.EnrolledAt.UTC().Format("2006-01-02"),
		})
	}
	body, err := renderer.Render(dataset, batch.CourseCode+" "+batch.Label()+" roster")
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render roster")
	}
	return &RosterFile{
		Filename:    fmt.Sprintf("%s-batch-%d-roster.%s", strings.ToLower(batch.CourseCode), batch.BatchNumber, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}
