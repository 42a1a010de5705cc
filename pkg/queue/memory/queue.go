// Package memory provides an in-process job queue for tests and
// single-process development setups.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/node-drop/nodedrop/pkg/queue"
)

type delayedJob struct {
	job     *queue.Job
	readyAt time.Time
}

type activeJob struct {
	job       *queue.Job
	heartbeat time.Time
}

type Queue struct {
	mu        sync.Mutex
	policy    queue.Policy
	waiting   []*queue.Job
	delayed   []delayedJob
	active    map[string]*activeJob
	completed int64
	failed    int64
}

func NewQueue() *Queue {
	return NewQueueWithPolicy(queue.DefaultPolicy())
}

func NewQueueWithPolicy(policy queue.Policy) *Queue {
	return &Queue{
		policy: policy,
		active: make(map[string]*activeJob),
	}
}

func (q *Queue) Enqueue(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waiting = append(q.waiting, job)

	return nil
}

func (q *Queue) EnqueueDelayed(_ context.Context, job *queue.Job, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.delayed = append(q.delayed, delayedJob{job: job, readyAt: time.Now().Add(delay)})

	return nil
}

func (q *Queue) Dequeue(_ context.Context, _ string) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.promoteDueLocked()

	if len(q.waiting) == 0 {
		return nil, queue.ErrNoJob
	}

	job := q.waiting[0]
	q.waiting = q.waiting[1:]
	q.active[job.ID] = &activeJob{job: job, heartbeat: time.Now()}

	return job, nil
}

func (q *Queue) Complete(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.active[jobID]; !ok {
		return &queue.QueueError{Op: "Complete", JobID: jobID, Err: queue.ErrJobNotFound}
	}

	delete(q.active, jobID)
	q.completed++

	return nil
}

func (q *Queue) Fail(ctx context.Context, job *queue.Job, reason string) error {
	q.mu.Lock()
	delete(q.active, job.ID)

	if job.Attempt >= job.MaxAttempts {
		q.failed++
		q.mu.Unlock()

		return nil
	}

	q.mu.Unlock()

	retry := *job
	retry.Attempt++
	retry.LastError = reason

	return q.EnqueueDelayed(ctx, &retry, q.policy.Backoff(retry.Attempt))
}

func (q *Queue) Remove(_ context.Context, executionID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.waiting {
		if job.ExecutionID == executionID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)

			return true, nil
		}
	}

	for i, entry := range q.delayed {
		if entry.job.ExecutionID == executionID {
			q.delayed = append(q.delayed[:i], q.delayed[i+1:]...)

			return true, nil
		}
	}

	return false, nil
}

func (q *Queue) Heartbeat(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.active[jobID]
	if !ok {
		return &queue.QueueError{Op: "Heartbeat", JobID: jobID, Err: queue.ErrJobNotFound}
	}

	entry.heartbeat = time.Now()

	return nil
}

func (q *Queue) RequeueStalled(_ context.Context, threshold time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-threshold)
	requeued := 0

	for jobID, entry := range q.active {
		if entry.heartbeat.Before(cutoff) {
			delete(q.active, jobID)
			q.waiting = append(q.waiting, entry.job)
			requeued++
		}
	}

	return requeued, nil
}

func (q *Queue) GetStats(_ context.Context) (queue.Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.promoteDueLocked()

	return queue.Stats{
		Waiting:   int64(len(q.waiting)),
		Active:    int64(len(q.active)),
		Completed: q.completed,
		Failed:    q.failed,
		Delayed:   int64(len(q.delayed)),
	}, nil
}

func (q *Queue) Close(_ context.Context) error {
	return nil
}

func (q *Queue) promoteDueLocked() {
	now := time.Now()
	remaining := q.delayed[:0]

	for _, entry := range q.delayed {
		if !entry.readyAt.After(now) {
			q.waiting = append(q.waiting, entry.job)
		} else {
			remaining = append(remaining, entry)
		}
	}

	q.delayed = remaining
}
