package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

type courseReader interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListPrerequisites(ctx context.Context, courseID string) ([]models.CourseRef, error)
	ListPrerequisiteProgress(ctx context.Context, courseID, studentID string) ([]models.PrerequisiteProgress, error)
}

// CourseService manages the course catalogue and its prerequisite graph.
type CourseService struct {
	store     admissionStore
	reader    courseReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(store admissionStore, reader courseReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{store: store, reader: reader, validator: validate, logger: logger}
}

// List returns courses with pagination.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.reader.ListCourses(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a course with its direct prerequisites.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.reader.FindCourse(ctx, id)
	if err != nil {
		return nil, lookupError(err, "course")
	}
	prereqs, err := s.reader.ListPrerequisites(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load prerequisites")
	}
	course.Prerequisites = prereqs
	return course, nil
}

// Create adds a course and, optionally, its prerequisites in one transaction.
func (s *CourseService) Create(ctx context.Context, actor models.Actor, req models.CreateCourseRequest) (*models.Course, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		Code:                     strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:                     strings.TrimSpace(req.Name),
		Description:              req.Description,
		PrerequisiteEnforcement:  req.PrerequisiteEnforcement,
		ScheduleConflictChecking: req.ScheduleConflictChecking,
		Active:                   true,
	}
	if course.PrerequisiteEnforcement == "" {
		course.PrerequisiteEnforcement = models.PrerequisiteStrict
	}
	if course.ScheduleConflictChecking == "" {
		course.ScheduleConflictChecking = models.ConflictStrict
	}

	err := s.store.WithinTx(ctx, "course_create", func(tx admissionTx) error {
		if err := tx.CreateCourse(ctx, course); err != nil {
			if isUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "course code already exists")
			}
			return appErrors.Internal(err, "failed to create course")
		}
		if len(req.PrerequisiteIDs) == 0 {
			return nil
		}
		return s.replacePrerequisites(ctx, tx, actor, course.ID, req.PrerequisiteIDs)
	})
	if err != nil {
		return nil, keepOrWrap(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.Code))
	return s.Get(ctx, course.ID)
}

// Update changes course metadata and admission policies.
func (s *CourseService) Update(ctx context.Context, actor models.Actor, id string, req models.UpdateCourseRequest) (*models.Course, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	err := s.store.WithinTx(ctx, "course_update", func(tx admissionTx) error {
		course, err := tx.FindCourse(ctx, id)
		if err != nil {
			return lookupError(err, "course")
		}
		if req.Name != nil {
			course.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			course.Description = *req.Description
		}
		if req.PrerequisiteEnforcement != nil {
			course.PrerequisiteEnforcement = *req.PrerequisiteEnforcement
		}
		if req.ScheduleConflictChecking != nil {
			course.ScheduleConflictChecking = *req.ScheduleConflictChecking
		}
		if req.Active != nil {
			course.Active = *req.Active
		}
		if err := tx.UpdateCourse(ctx, course); err != nil {
			return lookupError(err, "course")
		}
		return nil
	})
	if err != nil {
		return nil, keepOrWrap(err, "failed to update course")
	}
	return s.Get(ctx, id)
}

// SetPrerequisites replaces the direct prerequisites of a course.
func (s *CourseService) SetPrerequisites(ctx context.Context, actor models.Actor, id string, req models.SetPrerequisitesRequest) (*models.Course, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prerequisite payload")
	}
	err := s.store.WithinTx(ctx, "prerequisites_set", func(tx admissionTx) error {
		if _, err := tx.FindCourse(ctx, id); err != nil {
			return lookupError(err, "course")
		}
		return s.replacePrerequisites(ctx, tx, actor, id, req.PrerequisiteIDs)
	})
	if err != nil {
		return nil, keepOrWrap(err, "failed to set prerequisites")
	}
	return s.Get(ctx, id)
}

func (s *CourseService) replacePrerequisites(ctx context.Context, tx admissionTx, actor models.Actor, courseID string, requested []string) error {
	ids := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if _, self := seen[courseID]; self {
		return appErrors.WithDetails(appErrors.ErrPrerequisiteCycle, "a course cannot be its own prerequisite", []string{courseID})
	}
	if len(ids) > 0 {
		found, err := tx.CountCourses(ctx, ids)
		if err != nil {
			return appErrors.Internal(err, "failed to verify prerequisite courses")
		}
		if found != len(ids) {
			return appErrors.Clone(appErrors.ErrValidation, "unknown prerequisite course")
		}
	}

	if err := tx.LockPrerequisiteGraph(ctx); err != nil {
		return appErrors.Internal(err, "failed to lock prerequisite graph")
	}
	edges, err := tx.ListPrerequisiteEdges(ctx)
	if err != nil {
		return appErrors.Internal(err, "failed to load prerequisite graph")
	}
	if path := prerequisiteCycle(edges, courseID, ids); path != nil {
		return appErrors.WithDetails(appErrors.ErrPrerequisiteCycle, "prerequisites would form a cycle", []string{strings.Join(path, " -> ")})
	}
	if err := tx.ReplacePrerequisites(ctx, courseID, ids); err != nil {
		return appErrors.Internal(err, "failed to store prerequisites")
	}
	return tx.CreateAuditLog(ctx, auditEntry(actor, models.AuditActionPrerequisitesSet, models.AuditResourceCourse, courseID, map[string]interface{}{
		"prerequisite_ids": ids,
	}))
}

// prerequisiteCycle reports the path courseID -> ... -> courseID that would appear if
// courseID required prereqs on top of the existing graph, or nil when the graph stays acyclic.
func prerequisiteCycle(edges []models.PrerequisiteEdge, courseID string, prereqs []string) []string {
	graph := make(map[string][]string)
	for _, e := range edges {
		if e.CourseID == courseID {
			continue
		}
		graph[e.CourseID] = append(graph[e.CourseID], e.PrerequisiteID)
	}
	graph[courseID] = prereqs

	visited := make(map[string]bool)
	var path []string
	var walk func(node string) bool
	walk = func(node string) bool {
		path = append(path, node)
		for _, next := range graph[node] {
			if next == courseID {
				path = append(path, next)
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if walk(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	if walk(courseID) {
		return path
	}
	return nil
}

// PrerequisiteStatus reports which prerequisites of a course a student has completed.
func (s *CourseService) PrerequisiteStatus(ctx context.Context, actor models.Actor, courseID, studentID string) (*models.PrerequisiteStatus, error) {
	studentID, err := resolveStudent(actor, studentID)
	if err != nil {
		return nil, err
	}
	course, err := s.reader.FindCourse(ctx, courseID)
	if err != nil {
		return nil, lookupError(err, "course")
	}
	progress, err := s.reader.ListPrerequisiteProgress(ctx, courseID, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check prerequisites")
	}
	status := &models.PrerequisiteStatus{
		CourseID:      course.ID,
		StudentID:     studentID,
		Enforcement:   course.PrerequisiteEnforcement,
		Prerequisites: progress,
		Satisfied:     true,
	}
	if status.Prerequisites == nil {
		status.Prerequisites = []models.PrerequisiteProgress{}
	}
	for _, p := range progress {
		if !p.Completed {
			status.Satisfied = false
			break
		}
	}
	return status, nil
}
