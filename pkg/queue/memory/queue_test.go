package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/node-drop/nodedrop/pkg/queue"
)

func testJob(id, executionID string) *queue.Job {
	return &queue.Job{
		ID:          id,
		ExecutionID: executionID,
		WorkflowID:  "wf-1",
		Attempt:     1,
		MaxAttempts: 3,
		EnqueuedAt:  time.Now().UTC(),
	}
}

func TestQueue_StatsStartEmpty(t *testing.T) {
	q := NewQueue()

	stats, err := q.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{}, stats)
}

func TestQueue_EnqueueDequeueComplete(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("job-1", "exec-1")))

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Waiting)

	job, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)

	stats, err = q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)
	assert.Equal(t, int64(1), stats.Active)

	require.NoError(t, q.Complete(ctx, "job-1"))

	stats, err = q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Active)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q := NewQueue()

	_, err := q.Dequeue(context.Background(), "worker-1")
	assert.ErrorIs(t, err, queue.ErrNoJob)
}

func TestQueue_FailRetriesWithBackoff(t *testing.T) {
	q := NewQueueWithPolicy(queue.Policy{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("job-1", "exec-1")))

	job, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, job, "boom"))

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Failed, "attempts remain, job should be delayed not failed")

	time.Sleep(5 * time.Millisecond)

	retried, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, 2, retried.Attempt)
	assert.Equal(t, "boom", retried.LastError)
}

func TestQueue_FailExhaustsAttempts(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	job := testJob("job-1", "exec-1")
	job.Attempt = job.MaxAttempts

	require.NoError(t, q.Enqueue(ctx, job))

	claimed, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, claimed, "boom"))

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(0), stats.Delayed)
}

func TestQueue_RemoveWaitingJob(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("job-1", "exec-1")))

	removed, err := q.Remove(ctx, "exec-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = q.Remove(ctx, "exec-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestQueue_RemoveDelayedJob(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	require.NoError(t, q.EnqueueDelayed(ctx, testJob("job-1", "exec-1"), time.Hour))

	removed, err := q.Remove(ctx, "exec-1")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestQueue_RequeueStalled(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("job-1", "exec-1")))

	_, err := q.Dequeue(ctx, "worker-1")
	require.NoError(t, err)

	// Claim is fresh; nothing to requeue.
	requeued, err := q.RequeueStalled(ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, requeued)

	// With a zero threshold the claim is immediately considered stalled.
	requeued, err = q.RequeueStalled(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	job, err := q.Dequeue(ctx, "worker-2")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
}

func TestPolicy_Backoff(t *testing.T) {
	policy := queue.Policy{BackoffBase: 5 * time.Second}

	assert.Equal(t, 5*time.Second, policy.Backoff(1))
	assert.Equal(t, 10*time.Second, policy.Backoff(2))
	assert.Equal(t, 20*time.Second, policy.Backoff(3))
}
