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

const waitlistColumns = `id, student_id, batch_id, position, status, notified, joined_at, updated_at`

// WaitlistRepository handles persistence of batch waitlists.
type WaitlistRepository struct {
	db sqlx.ExtContext
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db sqlx.ExtContext) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

func (r *WaitlistRepository) getEntry(ctx context.Context, op, query string, args ...interface{}) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	if err := sqlx.GetContext(ctx, r.db, &entry, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &entry, nil
}

// FindWaitlistEntry returns an entry by ID.
func (r *WaitlistRepository) FindWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	return r.getEntry(ctx, "find waitlist entry", `SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = $1`, id)
}

// LockWaitlistEntry loads an entry with FOR UPDATE.
func (r *WaitlistRepository) LockWaitlistEntry(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	return r.getEntry(ctx, "lock waitlist entry", `SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = $1 FOR UPDATE`, id)
}

// FindStudentEntry returns the entry of a student for a batch, or nil when absent.
func (r *WaitlistRepository) FindStudentEntry(ctx context.Context, studentID, batchID string) (*models.WaitlistEntry, error) {
	entry, err := r.getEntry(ctx, "find student waitlist entry",
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE student_id = $1 AND batch_id = $2`, studentID, batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// NextWaiting returns the waiting entry with the lowest position, ties broken by join
// time, locked for update. It returns nil when nobody waits.
func (r *WaitlistRepository) NextWaiting(ctx context.Context, batchID string) (*models.WaitlistEntry, error) {
	entry, err := r.getEntry(ctx, "next waiting entry",
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE batch_id = $1 AND status = 'waiting'
ORDER BY position ASC, joined_at ASC LIMIT 1 FOR UPDATE`, batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// NextWaitlistPosition returns max(position)+1 over every entry of the batch.
func (r *WaitlistRepository) NextWaitlistPosition(ctx context.Context, batchID string) (int, error) {
	var next int
	if err := sqlx.GetContext(ctx, r.db, &next, `SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist_entries WHERE batch_id = $1`, batchID); err != nil {
		return 0, fmt.Errorf("next waitlist position: %w", err)
	}
	return next, nil
}

// InsertWaitlistEntry creates an entry.
func (r *WaitlistRepository) InsertWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = now
	}
	entry.UpdatedAt = now
	const query = `INSERT INTO waitlist_entries (id, student_id, batch_id, position, status, notified, joined_at, updated_at)
VALUES (:id, :student_id, :batch_id, :position, :status, :notified, :joined_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, entry); err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

// RequeueWaitlistEntry puts a finished entry back in line at the given position.
func (r *WaitlistRepository) RequeueWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	now := time.Now().UTC()
	const query = `UPDATE waitlist_entries SET position = $2, status = 'waiting', notified = FALSE, joined_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.Position, now); err != nil {
		return fmt.Errorf("requeue waitlist entry: %w", err)
	}
	entry.Status = models.WaitlistWaiting
	entry.Notified = false
	entry.JoinedAt = now
	entry.UpdatedAt = now
	return nil
}

// SetWaitlistStatus changes the status and notified flag of an entry.
func (r *WaitlistRepository) SetWaitlistStatus(ctx context.Context, id string, status models.WaitlistStatus, notified bool) error {
	const query = `UPDATE waitlist_entries SET status = $2, notified = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, notified, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set waitlist status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteWaitlistEntry removes an entry.
func (r *WaitlistRepository) DeleteWaitlistEntry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RenumberWaitlist rewrites the positions of waiting entries of a batch to a dense 1..N
// sequence ordered by (position, joined_at).
func (r *WaitlistRepository) RenumberWaitlist(ctx context.Context, batchID string) error {
	const query = `UPDATE waitlist_entries w SET position = ranked.rn, updated_at = NOW()
FROM (
    SELECT id, ROW_NUMBER() OVER (ORDER BY position ASC, joined_at ASC) AS rn
    FROM waitlist_entries WHERE batch_id = $1 AND status = 'waiting'
) ranked
WHERE w.id = ranked.id AND w.position <> ranked.rn`
	if _, err := r.db.ExecContext(ctx, query, batchID); err != nil {
		return fmt.Errorf("renumber waitlist: %w", err)
	}
	return nil
}

// CountWaiting returns the number of waiting entries of a batch.
func (r *WaitlistRepository) CountWaiting(ctx context.Context, batchID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM waitlist_entries WHERE batch_id = $1 AND status = 'waiting'`, batchID); err != nil {
		return 0, fmt.Errorf("count waiting: %w", err)
	}
	return count, nil
}

// CountWaitingAhead returns how many waiting entries precede the given one.
func (r *WaitlistRepository) CountWaitingAhead(ctx context.Context, entry *models.WaitlistEntry) (int, error) {
	const query = `SELECT COUNT(*) FROM waitlist_entries
WHERE batch_id = $1 AND status = 'waiting' AND id <> $2
AND (position < $3 OR (position = $3 AND joined_at < $4))`
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, query, entry.BatchID, entry.ID, entry.Position, entry.JoinedAt); err != nil {
		return 0, fmt.Errorf("count waiting ahead: %w", err)
	}
	return count, nil
}

// ListWaitlist returns entries filtered by student, batch and status.
func (r *WaitlistRepository) ListWaitlist(ctx context.Context, filter models.WaitlistFilter) ([]models.WaitlistEntryDetail, int, error) {
	base := `FROM waitlist_entries w
JOIN users u ON u.id = w.student_id
JOIN batches b ON b.id = w.batch_id
JOIN courses c ON c.id = b.course_id`
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("w.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("w.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("w.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT w.id, w.student_id, w.batch_id, w.position, w.status, w.notified, w.joined_at, w.updated_at,
u.full_name AS student_name, c.code AS course_code, c.name AS course_name, b.batch_number
%s%s ORDER BY w.batch_id, w.status, w.position ASC, w.joined_at ASC LIMIT %d OFFSET %d`, base, clause, size, (page-1)*size)

	var entries []models.WaitlistEntryDetail
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list waitlist: %w", err)
	}
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count waitlist: %w", err)
	}
	return entries, total, nil
}
