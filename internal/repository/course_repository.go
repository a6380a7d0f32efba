package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/institute-admission-api/internal/models"
)

const courseColumns = `id, code, name, description, enrolled_count, prerequisite_enforcement, schedule_conflict_checking, active, created_at, updated_at`

// CourseRepository handles persistence of courses and their prerequisite graph.
type CourseRepository struct {
	db sqlx.ExtContext
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db sqlx.ExtContext) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindCourse returns a course by ID.
func (r *CourseRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := sqlx.GetContext(ctx, r.db, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ListCourses returns courses matching the filter ordered by code.
func (r *CourseRepository) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY code ASC LIMIT %d OFFSET %d`, courseColumns, clause, size, (page-1)*size)

	var courses []models.Course
	if err := sqlx.SelectContext(ctx, r.db, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) FROM courses"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// CreateCourse inserts a course.
func (r *CourseRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, name, description, enrolled_count, prerequisite_enforcement, schedule_conflict_checking, active, created_at, updated_at)
VALUES (:id, :code, :name, :description, 0, :prerequisite_enforcement, :schedule_conflict_checking, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// UpdateCourse persists name, description, policies and active flag.
func (r *CourseRepository) UpdateCourse(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, description = :description, prerequisite_enforcement = :prerequisite_enforcement,
schedule_conflict_checking = :schedule_conflict_checking, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.db, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountCourses returns how many of the given IDs exist.
func (r *CourseRepository) CountCourses(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM courses WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return count, nil
}

// LockPrerequisiteGraph blocks concurrent prerequisite writers until the transaction ends.
func (r *CourseRepository) LockPrerequisiteGraph(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `LOCK TABLE course_prerequisites IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock prerequisite graph: %w", err)
	}
	return nil
}

// ListPrerequisiteEdges returns the whole prerequisite relation.
func (r *CourseRepository) ListPrerequisiteEdges(ctx context.Context) ([]models.PrerequisiteEdge, error) {
	var edges []models.PrerequisiteEdge
	if err := sqlx.SelectContext(ctx, r.db, &edges, `SELECT course_id, prerequisite_id FROM course_prerequisites`); err != nil {
		return nil, fmt.Errorf("list prerequisite edges: %w", err)
	}
	return edges, nil
}

// ReplacePrerequisites swaps the direct prerequisites of a course.
func (r *CourseRepository) ReplacePrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM course_prerequisites WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("clear prerequisites: %w", err)
	}
	if len(prerequisiteIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO course_prerequisites (course_id, prerequisite_id) SELECT $1, UNNEST($2::uuid[]) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, courseID, pq.Array(prerequisiteIDs)); err != nil {
		return fmt.Errorf("insert prerequisites: %w", err)
	}
	return nil
}

// ListPrerequisites returns the direct prerequisites of a course ordered by code.
func (r *CourseRepository) ListPrerequisites(ctx context.Context, courseID string) ([]models.CourseRef, error) {
	const query = `SELECT c.id, c.code, c.name FROM course_prerequisites cp
JOIN courses c ON c.id = cp.prerequisite_id
WHERE cp.course_id = $1 ORDER BY c.code`
	var refs []models.CourseRef
	if err := sqlx.SelectContext(ctx, r.db, &refs, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return refs, nil
}

// ListPrerequisiteProgress reports, per direct prerequisite of the course, whether the
// student holds a completed enrollment in any batch of it.
func (r *CourseRepository) ListPrerequisiteProgress(ctx context.Context, courseID, studentID string) ([]models.PrerequisiteProgress, error) {
	const query = `SELECT c.id, c.code, c.name,
EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = $2 AND e.status = 'completed') AS completed
FROM course_prerequisites cp
JOIN courses c ON c.id = cp.prerequisite_id
WHERE cp.course_id = $1 ORDER BY c.code`
	var progress []models.PrerequisiteProgress
	if err := sqlx.SelectContext(ctx, r.db, &progress, query, courseID, studentID); err != nil {
		return nil, fmt.Errorf("list prerequisite progress: %w", err)
	}
	return progress, nil
}
