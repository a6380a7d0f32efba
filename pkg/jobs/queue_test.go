package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRequiresStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(Job{Type: "noop"})
	require.Error(t, err)
}

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	t.Cleanup(q.Stop)

	accepted, err := q.Enqueue(Job{Type: "reconcile", Payload: "all"})
	require.NoError(t, err)
	assert.True(t, accepted)

	select {
	case job := <-done:
		assert.Equal(t, "reconcile", job.Type)
		assert.NotEmpty(t, job.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueCoalescesPendingKeys(t *testing.T) {
	release := make(chan struct{})
	var runs int32
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&runs, 1)
		<-release
		return nil
	}, QueueConfig{BufferSize: 4})
	q.Start(context.Background())
	t.Cleanup(q.Stop)

	first, err := q.Enqueue(Job{Type: "reconcile", Key: "all"})
	require.NoError(t, err)
	second, err := q.Enqueue(Job{Type: "reconcile", Key: "all"})
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	close(release)
	require.Eventually(t, func() bool {
		accepted, err := q.Enqueue(Job{Type: "reconcile", Key: "all"})
		return err == nil && accepted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueRetriesFailures(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(context.Context, Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 5, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	t.Cleanup(q.Stop)

	_, err := q.Enqueue(Job{Type: "reconcile"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, 2*time.Second, 5*time.Millisecond)
}
