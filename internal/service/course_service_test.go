package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

func newCourseFixture(db *fakeDB) *CourseService {
	return NewCourseService(db, db, nil, zap.NewNop())
}

func TestCreateCourseAppliesDefaults(t *testing.T) {
	db := seedCatalog()
	svc := newCourseFixture(db)

	course, err := svc.Create(context.Background(), staffActor(), models.CreateCourseRequest{
		Code:            " calc201 ",
		Name:            "Calculus",
		PrerequisiteIDs: []string{courseAlg, courseIntro, courseAlg},
	})
	require.NoError(t, err)
	assert.Equal(t, "CALC201", course.Code)
	assert.Equal(t, models.PrerequisiteStrict, course.PrerequisiteEnforcement)
	assert.Equal(t, models.ConflictStrict, course.ScheduleConflictChecking)
	assert.True(t, course.Active)
	require.Len(t, course.Prerequisites, 2)
	assert.Equal(t, "ALG101", course.Prerequisites[0].Code)
	assert.Equal(t, "INTRO101", course.Prerequisites[1].Code)
	assert.Equal(t, []string{models.AuditActionPrerequisitesSet}, db.auditActions())
}

func TestCreateCourseRejections(t *testing.T) {
	db := seedCatalog()
	svc := newCourseFixture(db)
	ctx := context.Background()

	_, err := svc.Create(ctx, staffActor(), models.CreateCourseRequest{Code: "alg101", Name: "Dup"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(ctx, staffActor(), models.CreateCourseRequest{Code: "NEW1", Name: "New", PrerequisiteIDs: []string{"77777777-7777-4777-8777-777777777777"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Len(t, db.courses, 3)

	_, err = svc.Create(ctx, studentActor(studentA), models.CreateCourseRequest{Code: "NEW2", Name: "New"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(ctx, staffActor(), models.CreateCourseRequest{Code: "NEW3", Name: "New", PrerequisiteEnforcement: "sometimes"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSetPrerequisitesRejectsCycles(t *testing.T) {
	db := seedCatalog()
	svc := newCourseFixture(db)
	ctx := context.Background()

	course, err := svc.SetPrerequisites(ctx, staffActor(), courseAlg, models.SetPrerequisitesRequest{PrerequisiteIDs: []string{courseIntro}})
	require.NoError(t, err)
	require.Len(t, course.Prerequisites, 1)

	_, err = svc.SetPrerequisites(ctx, staffActor(), courseIntro, models.SetPrerequisitesRequest{PrerequisiteIDs: []string{courseAlg}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPrerequisiteCycle))
	assert.Equal(t, []string{courseIntro + " -> " + courseAlg + " -> " + courseIntro}, appErrors.FromError(err).Details)

	_, err = svc.SetPrerequisites(ctx, staffActor(), courseAlg, models.SetPrerequisitesRequest{PrerequisiteIDs: []string{courseAlg}})
	assert.True(t, errors.Is(err, appErrors.ErrPrerequisiteCycle))

	assert.Equal(t, []models.PrerequisiteEdge{{CourseID: courseAlg, PrerequisiteID: courseIntro}}, db.edges)
}

func TestSetPrerequisitesReplacesAndClears(t *testing.T) {
	db := seedCatalog()
	db.edges = []models.PrerequisiteEdge{{CourseID: courseAlg, PrerequisiteID: courseIntro}}
	svc := newCourseFixture(db)
	ctx := context.Background()

	course, err := svc.SetPrerequisites(ctx, staffActor(), courseAlg, models.SetPrerequisitesRequest{PrerequisiteIDs: []string{coursePhys}})
	require.NoError(t, err)
	require.Len(t, course.Prerequisites, 1)
	assert.Equal(t, "PHYS101", course.Prerequisites[0].Code)

	course, err = svc.SetPrerequisites(ctx, staffActor(), courseAlg, models.SetPrerequisitesRequest{})
	require.NoError(t, err)
	assert.Empty(t, course.Prerequisites)
	assert.Empty(t, db.edges)

	_, err = svc.SetPrerequisites(ctx, staffActor(), "77777777-7777-4777-8777-777777777777", models.SetPrerequisitesRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestPrerequisiteCycleDetection(t *testing.T) {
	edges := []models.PrerequisiteEdge{
		{CourseID: "A", PrerequisiteID: "B"},
		{CourseID: "A", PrerequisiteID: "C"},
		{CourseID: "B", PrerequisiteID: "D"},
		{CourseID: "C", PrerequisiteID: "D"},
	}

	assert.Nil(t, prerequisiteCycle(edges, "D", []string{"E"}))
	assert.Nil(t, prerequisiteCycle(edges, "A", []string{"D"}))
	assert.Equal(t, []string{"D", "A", "B", "D"}, prerequisiteCycle(edges, "D", []string{"A"}))
	assert.Equal(t, []string{"D", "C", "D"}, prerequisiteCycle(edges, "D", []string{"C"}))
}

func TestUpdateCoursePolicies(t *testing.T) {
	db := seedCatalog()
	svc := newCourseFixture(db)
	soft := models.PrerequisiteSoft
	inactive := false

	course, err := svc.Update(context.Background(), staffActor(), courseAlg, models.UpdateCourseRequest{PrerequisiteEnforcement: &soft, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, models.PrerequisiteSoft, course.PrerequisiteEnforcement)
	assert.False(t, course.Active)
	assert.Equal(t, models.ConflictStrict, course.ScheduleConflictChecking)
	assert.Equal(t, "Algebra", course.Name)
}

func TestPrerequisiteStatus(t *testing.T) {
	db := seedCatalog()
	db.edges = []models.PrerequisiteEdge{
		{CourseID: courseAlg, PrerequisiteID: courseIntro},
		{CourseID: courseAlg, PrerequisiteID: coursePhys},
	}
	db.addEnrollment("e-phys", studentA, batchPhys1, models.EnrollmentCompleted)
	svc := newCourseFixture(db)
	ctx := context.Background()

	status, err := svc.PrerequisiteStatus(ctx, studentActor(studentA), courseAlg, "")
	require.NoError(t, err)
	assert.False(t, status.Satisfied)
	require.Len(t, status.Prerequisites, 2)
	assert.Equal(t, "INTRO101", status.Prerequisites[0].Code)
	assert.False(t, status.Prerequisites[0].Completed)
	assert.True(t, status.Prerequisites[1].Completed)

	status, err = svc.PrerequisiteStatus(ctx, staffActor(), courseIntro, studentA)
	require.NoError(t, err)
	assert.True(t, status.Satisfied)
	assert.Empty(t, status.Prerequisites)
}
