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

func TestEnrollmentRepositoryFindLiveCourseEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"enrollment_id", "batch_id", "batch_number", "course_name"}).
		AddRow("enr-1", "batch-2", 2, "Welding Basics")
	mock.ExpectQuery(regexp.QuoteMeta("e.status IN ('active', 'pending')")).
		WithArgs("stu-1", "course-1", "batch-1").
		WillReturnRows(rows)

	held, err := repo.FindLiveCourseEnrollment(context.Background(), "stu-1", "course-1", "batch-1")
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, 2, held.BatchNumber)
	assert.Equal(t, "Welding Basics", held.CourseName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindLiveCourseEnrollmentNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("FROM enrollments e").WillReturnError(sql.ErrNoRows)

	held, err := repo.FindLiveCourseEnrollment(context.Background(), "stu-1", "course-1", "batch-1")
	require.NoError(t, err)
	assert.Nil(t, held)
}

func TestEnrollmentRepositoryHasOpenEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("status <> 'dropped'")).
		WithArgs("stu-1", "batch-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.HasOpenEnrollment(context.Background(), "stu-1", "batch-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEnrollmentRepositoryInsertAndDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	enrollment := &models.Enrollment{StudentID: "stu-1", BatchID: "batch-1", CourseID: "course-1",
		Status: models.EnrollmentActive, Source: models.SourceDirect}
	require.NoError(t, repo.InsertEnrollment(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.WithinDuration(t, time.Now(), enrollment.EnrolledAt, time.Minute)

	require.NoError(t, repo.DeleteEnrollment(context.Background(), enrollment.ID))
	assert.ErrorIs(t, repo.DeleteEnrollment(context.Background(), "gone"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListEnrollments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "batch_id", "course_id", "status", "source", "grade", "enrolled_at", "updated_at",
		"student_name", "student_email", "course_code", "course_name", "batch_number"}).
		AddRow("enr-1", "stu-1", "batch-1", "course-1", "active", "direct", nil, now, now, "Ana", "ana@example.com", "WLD101", "Welding", 1)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.batch_id = $1 AND b.instructor_id = $2 ORDER BY e.enrolled_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("batch-1", "ins-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("batch-1", "ins-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.ListEnrollments(context.Background(), models.EnrollmentFilter{BatchID: "batch-1", InstructorID: "ins-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "WLD101", items[0].CourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
