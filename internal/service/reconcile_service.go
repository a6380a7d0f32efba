package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/institute-admission-api/internal/models"
	"github.com/noah-isme/institute-admission-api/internal/repository"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
	"github.com/noah-isme/institute-admission-api/pkg/jobs"
)

const (
	reconcileJobType = "reconcile_counts"
	reconcileJobKey  = "all"
)

type batchKeyLister interface {
	ListBatchKeys(ctx context.Context) ([]repository.BatchKey, error)
}

// ReconcileConfig tunes the background reconciliation worker.
type ReconcileConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// ReconcileService recomputes every derived enrolled count from live enrollment rows.
type ReconcileService struct {
	store   admissionStore
	keys    batchKeyLister
	cache   batchInvalidator
	metrics *MetricsService
	logger  *zap.Logger
	queue   *jobs.Queue

	mu   sync.RWMutex
	last *models.ReconcileResult
}

// NewReconcileService constructs ReconcileService and its worker queue.
func NewReconcileService(store admissionStore, keys batchKeyLister, cache batchInvalidator, metrics *MetricsService, logger *zap.Logger, cfg ReconcileConfig) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = noopInvalidator{}
	}
	s := &ReconcileService{store: store, keys: keys, cache: cache, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("reconcile", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: 4,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *ReconcileService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *ReconcileService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules a reconciliation run. It reports false when a run is already pending.
func (s *ReconcileService) Enqueue(actor models.Actor) (bool, error) {
	if err := requireStaff(actor); err != nil {
		return false, err
	}
	accepted, err := s.queue.Enqueue(jobs.Job{Type: reconcileJobType, Key: reconcileJobKey, Payload: actor.UserID})
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "reconciliation worker unavailable")
	}
	return accepted, nil
}

// LastResult returns the outcome of the most recent completed run, if any.
func (s *ReconcileService) LastResult() *models.ReconcileResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	copied := *s.last
	return &copied
}

func (s *ReconcileService) handle(ctx context.Context, job jobs.Job) error {
	result, err := s.Run(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("reconciliation finished",
		zap.String("job_id", job.ID),
		zap.Int("batches", result.Batches),
		zap.Int("adjusted", result.Adjusted))
	return nil
}

// Run recomputes the counts of every batch and course. Each batch is fixed in its own
// transaction under the same locks admissions take.
func (s *ReconcileService) Run(ctx context.Context) (*models.ReconcileResult, error) {
	keys, err := s.keys.ListBatchKeys(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list batches")
	}
	result := &models.ReconcileResult{}
	courses := make(map[string]struct{})
	for _, key := range keys {
		var adjusted bool
		err := s.store.WithinTx(ctx, "reconcile", func(tx admissionTx) error {
			batch, err := tx.LockBatch(ctx, key.ID)
			if err != nil {
				return lookupError(err, "batch")
			}
			count, err := tx.RefreshEnrolledCounts(ctx, key.ID, key.CourseID)
			if err != nil {
				return appErrors.Internal(err, "failed to recount batch")
			}
			adjusted = count != batch.EnrolledCount
			return nil
		})
		if err != nil {
			return nil, keepOrWrap(err, "failed to reconcile counts")
		}
		result.Batches++
		courses[key.CourseID] = struct{}{}
		if adjusted {
			result.Adjusted++
			s.cache.InvalidateBatch(ctx, key.ID)
			s.logger.Warn("enrolled count drift corrected", zap.String("batch_id", key.ID))
		}
	}
	result.Courses = len(courses)
	result.FinishedAt = time.Now().UTC()
	s.metrics.RecordReconciled(result.Adjusted)

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
	return result, nil
}
