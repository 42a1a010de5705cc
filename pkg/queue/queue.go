// Package queue defines the durable, at-least-once job queue feeding
// execution jobs to workers. The queue owns retry/backoff policy and the
// job lifecycle (waiting, delayed, active, completed, failed).
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/node-drop/nodedrop/pkg/models"
)

// Job is one queued execution attempt. A retried execution is a brand-new
// job with a fresh id carrying the resume cursor forward.
type Job struct {
	ID               string                   `json:"id"`
	ExecutionID      string                   `json:"execution_id"`
	WorkflowID       string                   `json:"workflow_id"`
	ResumeFromNodeID string                   `json:"resume_from_node_id,omitempty"`
	Context          *models.ExecutionContext `json:"context,omitempty"` // snapshot at enqueue time; workers prefer the live store copy
	Attempt          int                      `json:"attempt"`
	MaxAttempts      int                      `json:"max_attempts"`
	EnqueuedAt       time.Time                `json:"enqueued_at"`
	LastError        string                   `json:"last_error,omitempty"`
}

// Stats is a point-in-time view of the queue backend.
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

// Policy is the default job policy: bounded attempts, exponential backoff
// from a small fixed delay, and a hard wall-clock timeout per attempt.
type Policy struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
	StallThreshold time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BackoffBase:    5 * time.Second,
		AttemptTimeout: 30 * time.Minute,
		StallThreshold: 30 * time.Second,
	}
}

// Backoff returns the delay before re-enqueueing the given attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	return delay
}

var (
	// ErrNoJob indicates an empty queue on dequeue.
	ErrNoJob = errors.New("no job available")

	// ErrJobNotFound indicates the job id is unknown to the backend.
	ErrJobNotFound = errors.New("job not found")
)

// QueueError wraps queue backend errors with operation context.
type QueueError struct {
	Op    string
	JobID string
	Err   error
}

func (e *QueueError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s failed for job %s: %v", e.Op, e.JobID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

func (e *QueueError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// Queue is the job queue contract. At most one worker owns a claimed job
// at a time; stalled-job detection requeues jobs whose worker stopped
// heartbeating.
type Queue interface {
	// Enqueue appends a job to the waiting list.
	Enqueue(ctx context.Context, job *Job) error

	// EnqueueDelayed schedules a job to become waiting after the delay.
	EnqueueDelayed(ctx context.Context, job *Job, delay time.Duration) error

	// Dequeue claims the next waiting job for the worker, promoting any
	// due delayed jobs first. Returns ErrNoJob when nothing is ready.
	Dequeue(ctx context.Context, workerID string) (*Job, error)

	// Complete acknowledges a claimed job as done.
	Complete(ctx context.Context, jobID string) error

	// Fail records a failed attempt. The job is re-enqueued with backoff
	// while attempts remain; otherwise it is moved to failed.
	Fail(ctx context.Context, job *Job, reason string) error

	// Remove drops a waiting or delayed job for the execution id. Returns
	// false when no such job was queued (already claimed or unknown).
	Remove(ctx context.Context, executionID string) (bool, error)

	// Heartbeat refreshes the claim on an active job.
	Heartbeat(ctx context.Context, jobID string) error

	// RequeueStalled returns claimed jobs whose heartbeat is older than
	// the threshold to the waiting list. Returns how many were requeued.
	RequeueStalled(ctx context.Context, threshold time.Duration) (int, error)

	// GetStats returns point-in-time counts.
	GetStats(ctx context.Context) (Stats, error)

	Close(ctx context.Context) error
}
