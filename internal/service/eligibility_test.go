package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-admission-api/internal/models"
)

func slot(t *testing.T, batchID string, day models.Weekday, start, end string) models.Schedule {
	t.Helper()
	s, err := models.ParseClock(start)
	require.NoError(t, err)
	e, err := models.ParseClock(end)
	require.NoError(t, err)
	return models.Schedule{BatchID: batchID, DayOfWeek: day, StartTime: s, EndTime: e}
}

func TestFindScheduleConflicts(t *testing.T) {
	requested := []models.Schedule{
		slot(t, "target", models.Monday, "09:00", "11:00"),
		slot(t, "target", models.Wednesday, "13:00", "14:00"),
	}
	held := []models.HeldSchedule{
		{Schedule: slot(t, "b-chem", models.Monday, "10:30", "12:00"), CourseCode: "CHEM201", BatchNumber: 2},
		{Schedule: slot(t, "b-art", models.Monday, "11:00", "12:00"), CourseCode: "ART100", BatchNumber: 1},
		{Schedule: slot(t, "b-bio", models.Tuesday, "09:00", "11:00"), CourseCode: "BIO110", BatchNumber: 3},
		{Schedule: slot(t, "b-eng", models.Wednesday, "12:00", "16:00"), CourseCode: "ENG150", BatchNumber: 1},
	}

	conflicts := FindScheduleConflicts(requested, held)
	require.Len(t, conflicts, 2)

	assert.Equal(t, "b-chem", conflicts[0].ExistingBatchID)
	assert.Equal(t, "Monday 09:00-11:00 overlaps with CHEM201 Batch 2 (Monday 10:30-12:00)", conflicts[0].Description)
	assert.Equal(t, models.Monday, conflicts[0].DayOfWeek)

	assert.Equal(t, "ENG150", conflicts[1].ExistingCourseCode)
	assert.Equal(t, "Wednesday 13:00-14:00 overlaps with ENG150 Batch 1 (Wednesday 12:00-16:00)", conflicts[1].Description)
}

func TestFindScheduleConflictsNone(t *testing.T) {
	requested := []models.Schedule{slot(t, "target", models.Friday, "08:00", "09:00")}
	held := []models.HeldSchedule{{Schedule: slot(t, "other", models.Friday, "09:00", "10:00"), CourseCode: "X", BatchNumber: 1}}
	assert.Empty(t, FindScheduleConflicts(requested, held))
	assert.Empty(t, FindScheduleConflicts(nil, held))
}

func TestCheckEligibilityShortCircuitsOnFirstFailure(t *testing.T) {
	db := seedCatalog()
	db.edges = append(db.edges, models.PrerequisiteEdge{CourseID: courseAlg, PrerequisiteID: courseIntro})
	db.addEnrollment("e-a", studentA, batchAlg2, models.EnrollmentActive)
	batch, err := db.FindBatch(context.Background(), batchAlg1)
	require.NoError(t, err)

	result, err := checkEligibility(context.Background(), db, studentA, batch)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, []string{"Already enrolled in Algebra (Batch 2)"}, result.Errors)
	assert.Empty(t, result.Missing)
}

func TestCheckEligibilityPoliciesOff(t *testing.T) {
	db := seedCatalog()
	c := db.courses[courseAlg]
	c.PrerequisiteEnforcement = models.PrerequisiteNone
	c.ScheduleConflictChecking = models.ConflictNone
	db.courses[courseAlg] = c
	db.edges = append(db.edges, models.PrerequisiteEdge{CourseID: courseAlg, PrerequisiteID: courseIntro})
	db.addSchedule(batchPhys1, models.Monday, "09:00", "11:00")
	db.addSchedule(batchAlg1, models.Monday, "09:00", "11:00")
	db.addEnrollment("e-a", studentA, batchPhys1, models.EnrollmentActive)
	batch, err := db.FindBatch(context.Background(), batchAlg1)
	require.NoError(t, err)

	result, err := checkEligibility(context.Background(), db, studentA, batch)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}
