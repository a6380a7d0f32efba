package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

func driftedCatalog() *fakeDB {
	db := seedCatalog()
	db.addEnrollment("e-a", studentA, batchAlg1, models.EnrollmentActive)
	b := db.batches[batchAlg1]
	b.EnrolledCount = 5
	db.batches[batchAlg1] = b
	c := db.courses[courseAlg]
	c.EnrolledCount = 9
	db.courses[courseAlg] = c
	return db
}

func TestReconcileRunCorrectsDrift(t *testing.T) {
	db := driftedCatalog()
	inv := &recordingInvalidator{}
	svc := NewReconcileService(db, db, inv, nil, zap.NewNop(), ReconcileConfig{})

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 2, result.Courses)
	assert.Equal(t, 1, result.Adjusted)
	assert.Equal(t, 1, db.batches[batchAlg1].EnrolledCount)
	assert.Equal(t, 1, db.courses[courseAlg].EnrolledCount)
	assert.Equal(t, []string{batchAlg1}, inv.batches)
	assert.Equal(t, result.Adjusted, svc.LastResult().Adjusted)
}

func TestReconcileEnqueueRunsInBackground(t *testing.T) {
	db := driftedCatalog()
	svc := NewReconcileService(db, db, nil, nil, zap.NewNop(), ReconcileConfig{Workers: 1})

	_, err := svc.Enqueue(staffActor())
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	_, err = svc.Enqueue(studentActor(studentA))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	accepted, err := svc.Enqueue(staffActor())
	require.NoError(t, err)
	assert.True(t, accepted)

	require.Eventually(t, func() bool { return svc.LastResult() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, svc.LastResult().Adjusted)
}
