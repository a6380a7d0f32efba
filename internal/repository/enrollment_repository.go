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

	"github.com/noah-isme/institute-admission-api/internal/models"
)

const enrollmentColumns = `id, student_id, batch_id, course_id, status, source, grade, enrolled_at, updated_at`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.batch_id, e.course_id, e.status, e.source, e.grade, e.enrolled_at, e.updated_at,
u.full_name AS student_name, u.email AS student_email, c.code AS course_code, c.name AS course_name, b.batch_number`

const enrollmentDetailFrom = `FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN batches b ON b.id = e.batch_id
JOIN courses c ON c.id = e.course_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db sqlx.ExtContext
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db sqlx.ExtContext) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListEnrollments returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("e.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("b.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "u.full_name",
		"course_code":  "c.code",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`%s %s%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		enrollmentDetailSelect, enrollmentDetailFrom, clause, orderBy, order, size, (page-1)*size)

	var enrollments []models.EnrollmentDetail
	if err := sqlx.SelectContext(ctx, r.db, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) "+enrollmentDetailFrom+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindEnrollment returns an enrollment by its ID.
func (r *EnrollmentRepository) FindEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.db, &enrollment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// LockEnrollment loads an enrollment with FOR UPDATE.
func (r *EnrollmentRepository) LockEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.db, &enrollment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindEnrollmentDetail returns an enrollment with student and course info.
func (r *EnrollmentRepository) FindEnrollmentDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " " + enrollmentDetailFrom + " WHERE e.id = $1"
	var detail models.EnrollmentDetail
	if err := sqlx.GetContext(ctx, r.db, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment detail: %w", err)
	}
	return &detail, nil
}

// HasOpenEnrollment reports whether the student holds a non-dropped enrollment in the batch.
func (r *EnrollmentRepository) HasOpenEnrollment(ctx context.Context, studentID, batchID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND batch_id = $2 AND status <> 'dropped')`
	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, studentID, batchID); err != nil {
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return exists, nil
}

// FindLiveCourseEnrollment returns an active or pending enrollment of the student in
// another batch of the course, or nil when there is none.
func (r *EnrollmentRepository) FindLiveCourseEnrollment(ctx context.Context, studentID, courseID, excludeBatchID string) (*models.HeldEnrollment, error) {
	const query = `SELECT e.id AS enrollment_id, e.batch_id, b.batch_number, c.name AS course_name
FROM enrollments e
JOIN batches b ON b.id = e.batch_id
JOIN courses c ON c.id = e.course_id
WHERE e.student_id = $1 AND e.course_id = $2 AND e.batch_id <> $3 AND e.status IN ('active', 'pending')
ORDER BY e.enrolled_at LIMIT 1`
	var held models.HeldEnrollment
	if err := sqlx.GetContext(ctx, r.db, &held, query, studentID, courseID, excludeBatchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find live course enrollment: %w", err)
	}
	return &held, nil
}

// InsertEnrollment creates an enrollment row.
func (r *EnrollmentRepository) InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, batch_id, course_id, status, source, grade, enrolled_at, updated_at)
VALUES (:id, :student_id, :batch_id, :course_id, :status, :source, :grade, :enrolled_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// DeleteEnrollment removes an enrollment row.
func (r *EnrollmentRepository) DeleteEnrollment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetEnrollmentStatus changes the status and, when provided, the grade.
func (r *EnrollmentRepository) SetEnrollmentStatus(ctx context.Context, id string, status models.EnrollmentStatus, grade *string) error {
	const query = `UPDATE enrollments SET status = $2, grade = COALESCE($3, grade), updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, grade, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set enrollment status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
