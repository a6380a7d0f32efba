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

const batchSelect = `SELECT b.id, b.course_id, b.batch_number, b.instructor_id, b.capacity, b.enrolled_count, b.is_active,
b.start_date, b.end_date, b.created_at, b.updated_at,
c.code AS course_code, c.name AS course_name, c.prerequisite_enforcement, c.schedule_conflict_checking
FROM batches b JOIN courses c ON c.id = b.course_id`

// BatchKey identifies a batch and its course for reconciliation.
type BatchKey struct {
	ID       string `db:"id"`
	CourseID string `db:"course_id"`
}

// BatchRepository handles persistence of batches and their derived counts.
type BatchRepository struct {
	db sqlx.ExtContext
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db sqlx.ExtContext) *BatchRepository {
	return &BatchRepository{db: db}
}

// FindBatch returns a batch with its course policies.
func (r *BatchRepository) FindBatch(ctx context.Context, id string) (*models.Batch, error) {
	var batch models.Batch
	if err := sqlx.GetContext(ctx, r.db, &batch, batchSelect+` WHERE b.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return &batch, nil
}

// LockBatch loads a batch and locks both the batch and its course row until the
// transaction ends. Every seat-changing operation takes this lock first.
func (r *BatchRepository) LockBatch(ctx context.Context, id string) (*models.Batch, error) {
	var batch models.Batch
	if err := sqlx.GetContext(ctx, r.db, &batch, batchSelect+` WHERE b.id = $1 FOR UPDATE OF b, c`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock batch: %w", err)
	}
	return &batch, nil
}

// RefreshEnrolledCounts recomputes the batch and course counts from live enrollment rows
// and returns the new batch count. Callers must hold the LockBatch lock.
func (r *BatchRepository) RefreshEnrolledCounts(ctx context.Context, batchID, courseID string) (int, error) {
	const batchQuery = `UPDATE batches SET enrolled_count = (
    SELECT COUNT(*) FROM enrollments WHERE batch_id = $1 AND status IN ('active', 'pending')
), updated_at = NOW() WHERE id = $1 RETURNING enrolled_count`
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, batchQuery, batchID); err != nil {
		return 0, fmt.Errorf("refresh batch count: %w", err)
	}
	const courseQuery = `UPDATE courses SET enrolled_count = (
    SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status IN ('active', 'pending')
), updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, courseQuery, courseID); err != nil {
		return 0, fmt.Errorf("refresh course count: %w", err)
	}
	return count, nil
}

// ListBatches returns batches filtered by course, instructor and active flag.
func (r *BatchRepository) ListBatches(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	var conditions []string
	var args []interface{}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("b.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("b.is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`%s%s ORDER BY c.code ASC, b.batch_number ASC LIMIT %d OFFSET %d`, batchSelect, clause, size, (page-1)*size)

	var batches []models.Batch
	if err := sqlx.SelectContext(ctx, r.db, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	var total int
	countQuery := `SELECT COUNT(*) FROM batches b JOIN courses c ON c.id = b.course_id` + clause
	if err := sqlx.GetContext(ctx, r.db, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	return batches, total, nil
}

// CreateBatch inserts a batch with a zero count.
func (r *BatchRepository) CreateBatch(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	batch.EnrolledCount = 0
	const query = `INSERT INTO batches (id, course_id, batch_number, instructor_id, capacity, enrolled_count, is_active, start_date, end_date, created_at, updated_at)
VALUES (:id, :course_id, :batch_number, :instructor_id, :capacity, 0, :is_active, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// UpdateBatch saves the mutable batch fields. Callers must hold the LockBatch lock.
func (r *BatchRepository) UpdateBatch(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batches SET instructor_id = $1, capacity = $2, is_active = $3, start_date = $4, end_date = $5, updated_at = $6
WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query, batch.InstructorID, batch.Capacity, batch.IsActive, batch.StartDate, batch.EndDate, batch.UpdatedAt, batch.ID)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update batch rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListBatchKeys returns every batch with its course for reconciliation.
func (r *BatchRepository) ListBatchKeys(ctx context.Context) ([]BatchKey, error) {
	var keys []BatchKey
	if err := sqlx.SelectContext(ctx, r.db, &keys, `SELECT id, course_id FROM batches ORDER BY course_id, id`); err != nil {
		return nil, fmt.Errorf("list batch keys: %w", err)
	}
	return keys, nil
}

// ListRoster returns the live and completed enrollments of a batch ordered by student name.
func (r *BatchRepository) ListRoster(ctx context.Context, batchID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id AS enrollment_id, e.student_id, u.full_name AS student_name, u.email AS student_email,
e.status, e.source, e.enrolled_at
FROM enrollments e JOIN users u ON u.id = e.student_id
WHERE e.batch_id = $1 AND e.status <> 'dropped'
ORDER BY u.full_name ASC`
	var roster []models.RosterEntry
	if err := sqlx.SelectContext(ctx, r.db, &roster, query, batchID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return roster, nil
}
