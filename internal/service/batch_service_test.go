package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

type memoryCache struct {
	values      map[string][]byte
	gets        int
	invalidated []string
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	m.gets++
	raw, ok := m.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.values == nil {
		m.values = map[string][]byte{}
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCache) InvalidateBatch(_ context.Context, batchID string) {
	delete(m.values, availabilityKey(batchID))
	m.invalidated = append(m.invalidated, batchID)
}

func TestCreateBatch(t *testing.T) {
	db := seedCatalog()
	db.users[instructor] = models.User{ID: instructor, FullName: "Ivy", Role: models.RoleInstructor, Active: true}
	svc := NewBatchService(db, db, nil, nil, zap.NewNop())
	ctx := context.Background()
	ins := instructor

	batch, err := svc.Create(ctx, staffActor(), models.CreateBatchRequest{
		CourseID: courseAlg, BatchNumber: 3, InstructorID: &ins, Capacity: 25,
		StartDate: "2026-02-01", EndDate: "2026-05-30",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.BatchNumber)
	assert.True(t, batch.IsActive)
	assert.Equal(t, "ALG101", batch.CourseCode)
	require.NotNil(t, batch.StartDate)
	assert.Equal(t, time.February, batch.StartDate.Month())

	_, err = svc.Create(ctx, staffActor(), models.CreateBatchRequest{CourseID: courseAlg, BatchNumber: 1, Capacity: 5})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(ctx, staffActor(), models.CreateBatchRequest{CourseID: "77777777-7777-4777-8777-777777777777", BatchNumber: 1, Capacity: 5})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	notInstructor := studentA
	_, err = svc.Create(ctx, staffActor(), models.CreateBatchRequest{CourseID: courseAlg, BatchNumber: 4, Capacity: 5, InstructorID: &notInstructor})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, staffActor(), models.CreateBatchRequest{CourseID: courseAlg, BatchNumber: 5, Capacity: 5, StartDate: "2026-05-01", EndDate: "2026-04-01"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, staffActor(), models.CreateBatchRequest{CourseID: courseAlg, BatchNumber: 6, Capacity: 0})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, studentActor(studentA), models.CreateBatchRequest{CourseID: courseAlg, BatchNumber: 7, Capacity: 5})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestBatchSchedules(t *testing.T) {
	db := seedCatalog()
	svc := NewBatchService(db, db, nil, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AddSchedule(ctx, staffActor(), batchAlg1, models.CreateScheduleRequest{DayOfWeek: models.Tuesday, StartTime: "11:00", EndTime: "11:00"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.AddSchedule(ctx, staffActor(), batchAlg1, models.CreateScheduleRequest{DayOfWeek: "FUNDAY", StartTime: "09:00", EndTime: "10:00"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	slot, err := svc.AddSchedule(ctx, staffActor(), batchAlg1, models.CreateScheduleRequest{DayOfWeek: models.Tuesday, StartTime: "09:00", EndTime: "10:30", Room: " 101 "})
	require.NoError(t, err)
	assert.Equal(t, "Tuesday 09:00-10:30", slot.Span())
	assert.Equal(t, "101", slot.Room)

	batch, err := svc.Get(ctx, batchAlg1)
	require.NoError(t, err)
	assert.Len(t, batch.Schedules, 1)

	require.NoError(t, svc.RemoveSchedule(ctx, staffActor(), batchAlg1, slot.ID))
	assert.True(t, errors.Is(svc.RemoveSchedule(ctx, staffActor(), batchAlg1, slot.ID), appErrors.ErrNotFound))
}

func TestAvailabilityUsesCache(t *testing.T) {
	db := seedCatalog()
	db.addBatch(batchAlg1, courseAlg, 1, 1)
	db.addEnrollment("e-a", studentA, batchAlg1, models.EnrollmentActive)
	db.addWaiting("w-b", studentB, batchAlg1, 1)
	cache := &memoryCache{}
	svc := NewBatchService(db, db, cache, nil, zap.NewNop())
	ctx := context.Background()

	first, hit, err := svc.Availability(ctx, batchAlg1)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.BatchAvailability{BatchID: batchAlg1, Capacity: 1, Enrolled: 1, Available: 0, Waiting: 1, IsActive: true, IsFull: true}, *first)

	delete(db.waitlist, "w-b")
	second, hit, err := svc.Availability(ctx, batchAlg1)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, second.Waiting)
	assert.Equal(t, 2, cache.gets)

	_, _, err = svc.Availability(ctx, "77777777-7777-4777-8777-777777777777")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUpdateBatchCapacityGrowthPromotesWaiters(t *testing.T) {
	db := fullAlgebra()
	db.addWaiting("w-b", studentB, batchAlg1, 1)
	db.addWaiting("w-c", studentC, batchAlg1, 2)
	cache := &memoryCache{}
	svc := NewBatchService(db, db, cache, nil, zap.NewNop())
	ctx := context.Background()

	_, _, err := svc.Availability(ctx, batchAlg1)
	require.NoError(t, err)

	capacity := 3
	result, err := svc.Update(ctx, staffActor(), batchAlg1, models.UpdateBatchRequest{Capacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Batch.Capacity)
	assert.Equal(t, 3, result.Batch.EnrolledCount)
	require.Len(t, result.Promoted, 2)
	assert.Equal(t, studentB, result.Promoted[0].StudentID)
	assert.Equal(t, studentC, result.Promoted[1].StudentID)
	assert.Equal(t, models.SourceWaitlist, result.Promoted[0].Source)
	assert.Empty(t, db.waitingIn(batchAlg1))
	assert.Equal(t, 3, db.batches[batchAlg1].Capacity)
	assert.Equal(t, []string{batchAlg1}, cache.invalidated)
	assert.Contains(t, db.auditActions(), models.AuditActionBatchUpdate)
	assert.Contains(t, db.auditActions(), models.AuditActionWaitlistPromote)

	fresh, hit, err := svc.Availability(ctx, batchAlg1)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, fresh.Enrolled)
}

func TestUpdateBatchPromotesOnlyFreedSeats(t *testing.T) {
	db := fullAlgebra()
	db.addWaiting("w-b", studentB, batchAlg1, 1)
	db.addWaiting("w-c", studentC, batchAlg1, 2)
	svc := NewBatchService(db, db, nil, nil, zap.NewNop())

	capacity := 2
	result, err := svc.Update(context.Background(), staffActor(), batchAlg1, models.UpdateBatchRequest{Capacity: &capacity})
	require.NoError(t, err)
	require.Len(t, result.Promoted, 1)
	assert.Equal(t, studentB, result.Promoted[0].StudentID)
	waiting := db.waitingIn(batchAlg1)
	require.Len(t, waiting, 1)
	assert.Equal(t, studentC, waiting[0].StudentID)
	assert.Equal(t, 1, waiting[0].Position)
}

func TestUpdateBatchGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("capacity below enrolled count", func(t *testing.T) {
		db := seedCatalog()
		db.addEnrollment("e-a", studentA, batchAlg1, models.EnrollmentActive)
		db.addEnrollment("e-b", studentB, batchAlg1, models.EnrollmentPending)
		svc := NewBatchService(db, db, nil, nil, zap.NewNop())

		capacity := 1
		_, err := svc.Update(ctx, staffActor(), batchAlg1, models.UpdateBatchRequest{Capacity: &capacity})
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
		assert.Contains(t, err.Error(), "below the 2 students")
		assert.Equal(t, 2, db.batches[batchAlg1].Capacity)
		assert.Empty(t, db.audits)
	})

	t.Run("stale stored count is recomputed", func(t *testing.T) {
		db := seedCatalog()
		db.addEnrollment("e-a", studentA, batchAlg1, models.EnrollmentActive)
		b := db.batches[batchAlg1]
		b.EnrolledCount = 2
		db.batches[batchAlg1] = b
		svc := NewBatchService(db, db, nil, nil, zap.NewNop())

		capacity := 1
		result, err := svc.Update(ctx, staffActor(), batchAlg1, models.UpdateBatchRequest{Capacity: &capacity})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Batch.Capacity)
		assert.Equal(t, 1, result.Batch.EnrolledCount)
	})

	t.Run("inactive batch does not promote", func(t *testing.T) {
		db := fullAlgebra()
		db.addWaiting("w-b", studentB, batchAlg1, 1)
		svc := NewBatchService(db, db, nil, nil, zap.NewNop())

		capacity, active := 5, false
		result, err := svc.Update(ctx, staffActor(), batchAlg1, models.UpdateBatchRequest{Capacity: &capacity, IsActive: &active})
		require.NoError(t, err)
		assert.False(t, result.Batch.IsActive)
		assert.Empty(t, result.Promoted)
		assert.Len(t, db.waitingIn(batchAlg1), 1)
	})

	t.Run("students are forbidden", func(t *testing.T) {
		db := seedCatalog()
		svc := NewBatchService(db, db, nil, nil, zap.NewNop())
		capacity := 9
		_, err := svc.Update(ctx, studentActor(studentA), batchAlg1, models.UpdateBatchRequest{Capacity: &capacity})
		assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	})

	t.Run("dates out of order", func(t *testing.T) {
		db := seedCatalog()
		svc := NewBatchService(db, db, nil, nil, zap.NewNop())
		start, end := "2026-05-01", "2026-04-01"
		_, err := svc.Update(ctx, staffActor(), batchAlg1, models.UpdateBatchRequest{StartDate: &start, EndDate: &end})
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
	})

	t.Run("instructor must be an instructor", func(t *testing.T) {
		db := seedCatalog()
		svc := NewBatchService(db, db, nil, nil, zap.NewNop())
		id := studentB
		_, err := svc.Update(ctx, staffActor(), batchAlg1, models.UpdateBatchRequest{InstructorID: &id})
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
	})

	t.Run("unknown batch", func(t *testing.T) {
		db := seedCatalog()
		svc := NewBatchService(db, db, nil, nil, zap.NewNop())
		capacity := 4
		_, err := svc.Update(ctx, staffActor(), "77777777-7777-4777-8777-777777777777", models.UpdateBatchRequest{Capacity: &capacity})
		assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	})
}

func TestRosterExport(t *testing.T) {
	db := seedCatalog()
	ins := instructor
	b := db.batches[batchAlg1]
	b.InstructorID = &ins
	db.batches[batchAlg1] = b
	db.addEnrollment("e-a", studentA, batchAlg1, models.EnrollmentActive)
	db.addEnrollment("e-b", studentB, batchAlg1, models.EnrollmentDropped)
	svc := NewBatchService(db, db, nil, nil, zap.NewNop())
	ctx := context.Background()

	file, err := svc.Roster(ctx, staffActor(), batchAlg1, "")
	require.NoError(t, err)
	assert.Equal(t, "alg101-batch-1-roster.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "student_name,student_email,status,source,enrolled_at", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Ana,"+studentA+"@example.com,active,direct,"))

	pdf, err := svc.Roster(ctx, models.Actor{UserID: instructor, Role: models.RoleInstructor}, batchAlg1, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)

	_, err = svc.Roster(ctx, studentActor(studentA), batchAlg1, "csv")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Roster(ctx, staffActor(), batchAlg1, "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
