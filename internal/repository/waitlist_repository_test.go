package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-admission-api/internal/models"
)

func TestWaitlistRepositoryNextWaiting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "batch_id", "position", "status", "notified", "joined_at", "updated_at"}).
		AddRow("wl-1", "stu-2", "batch-1", 1, "waiting", false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY position ASC, joined_at ASC LIMIT 1 FOR UPDATE")).
		WithArgs("batch-1").
		WillReturnRows(rows)

	entry, err := repo.NextWaiting(context.Background(), "batch-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "stu-2", entry.StudentID)
	assert.Equal(t, models.WaitlistWaiting, entry.Status)
}

func TestWaitlistRepositoryNextWaitingEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectQuery("FROM waitlist_entries").WithArgs("batch-1").WillReturnError(sql.ErrNoRows)

	entry, err := repo.NextWaiting(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestWaitlistRepositoryNextPosition(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position), 0) + 1")).
		WithArgs("batch-1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(4))

	next, err := repo.NextWaitlistPosition(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 4, next)
}

func TestWaitlistRepositoryRenumber(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ROW_NUMBER() OVER (ORDER BY position ASC, joined_at ASC)")).
		WithArgs("batch-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RenumberWaitlist(context.Background(), "batch-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitlistRepositorySetStatusMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWaitlistRepository(db)

	mock.ExpectExec("UPDATE waitlist_entries SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetWaitlistStatus(context.Background(), "wl-x", models.WaitlistEnrolled, true)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
