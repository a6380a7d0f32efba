package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-admission-api/internal/models"
)

// ScheduleRepository handles persistence of batch schedule slots.
type ScheduleRepository struct {
	db sqlx.ExtContext
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db sqlx.ExtContext) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListBatchSchedules returns the slots of a batch ordered by weekday and start time.
func (r *ScheduleRepository) ListBatchSchedules(ctx context.Context, batchID string) ([]models.Schedule, error) {
	const query = `SELECT id, batch_id, day_of_week, start_time, end_time, room, building, created_at
FROM schedules WHERE batch_id = $1
ORDER BY array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY'], day_of_week), start_time`
	var schedules []models.Schedule
	if err := sqlx.SelectContext(ctx, r.db, &schedules, query, batchID); err != nil {
		return nil, fmt.Errorf("list batch schedules: %w", err)
	}
	return schedules, nil
}

// ListHeldSchedules returns the slots of every batch, other than excludeBatchID, in
// which the student holds an active or pending enrollment.
func (r *ScheduleRepository) ListHeldSchedules(ctx context.Context, studentID, excludeBatchID string) ([]models.HeldSchedule, error) {
	const query = `SELECT s.id, s.batch_id, s.day_of_week, s.start_time, s.end_time, s.room, s.building, s.created_at,
c.code AS course_code, b.batch_number
FROM enrollments e
JOIN batches b ON b.id = e.batch_id
JOIN courses c ON c.id = b.course_id
JOIN schedules s ON s.batch_id = b.id
WHERE e.student_id = $1 AND e.status IN ('active', 'pending') AND e.batch_id <> $2
ORDER BY c.code, b.batch_number, s.start_time`
	var held []models.HeldSchedule
	if err := sqlx.SelectContext(ctx, r.db, &held, query, studentID, excludeBatchID); err != nil {
		return nil, fmt.Errorf("list held schedules: %w", err)
	}
	return held, nil
}

// CreateSchedule inserts a slot.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO schedules (id, batch_id, day_of_week, start_time, end_time, room, building, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, schedule.ID, schedule.BatchID, schedule.DayOfWeek,
		schedule.StartTime, schedule.EndTime, schedule.Room, schedule.Building, schedule.CreatedAt); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// DeleteSchedule removes a slot of a batch and reports whether it existed.
func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, batchID, scheduleID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1 AND batch_id = $2`, scheduleID, batchID)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete schedule rows: %w", err)
	}
	return affected > 0, nil
}
