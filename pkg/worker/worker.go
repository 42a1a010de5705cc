// Package worker consumes execution jobs from the queue and drives them
// through the DAG executor to a terminal state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/node-drop/nodedrop/pkg/eventbus"
	"github.com/node-drop/nodedrop/pkg/events"
	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/persistence"
	"github.com/node-drop/nodedrop/pkg/queue"
	"github.com/node-drop/nodedrop/pkg/statestore"
	"github.com/node-drop/nodedrop/pkg/tracer"
	"github.com/node-drop/nodedrop/pkg/workflow"
)

const defaultPollInterval = 500 * time.Millisecond

// Worker claims jobs, executes them with a per-attempt hard timeout,
// heartbeats its claims, and publishes the terminal lifecycle event. One
// worker processes one job at a time; run parallelism comes from running
// more workers.
type Worker struct {
	id           string
	queue        queue.Queue
	store        statestore.Store
	executions   persistence.ExecutionRepository
	executor     *workflow.Executor
	publisher    eventbus.EventPublisher
	policy       queue.Policy
	logger       *slog.Logger
	tracer       trace.Tracer
	pollInterval time.Duration
}

// NewWorker creates a worker with the default job policy.
func NewWorker(
	id string,
	q queue.Queue,
	store statestore.Store,
	executions persistence.ExecutionRepository,
	executor *workflow.Executor,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:           id,
		queue:        q,
		store:        store,
		executions:   executions,
		executor:     executor,
		publisher:    publisher,
		policy:       queue.DefaultPolicy(),
		logger:       logger.With("module", "worker", "worker_id", id),
		tracer:       otel.Tracer("nodedrop-worker"),
		pollInterval: defaultPollInterval,
	}
}

// Start runs the consume loop until the context is cancelled. A second
// goroutine periodically returns stalled claims of dead workers to the
// waiting list.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker started")

	go w.requeueStalledLoop(ctx)

	for {
		processed, err := w.ProcessOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			w.logger.Error("job processing failed", "error", err)
		}

		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")

			return nil
		case <-time.After(w.pollInterval):
		}
	}
}

// ProcessOnce claims and fully processes at most one job. It reports
// whether a job was claimed.
func (w *Worker) ProcessOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.Dequeue(ctx, w.id)
	if err != nil {
		if errors.Is(err, queue.ErrNoJob) {
			return false, nil
		}

		return false, fmt.Errorf("dequeue: %w", err)
	}

	w.process(ctx, job)

	return true, nil
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	logger := w.logger.With("job_id", job.ID, "execution_id", job.ExecutionID, "attempt", job.Attempt)
	logger.Info("processing job")

	attemptCtx, cancel := context.WithTimeout(ctx, w.policy.AttemptTimeout)
	defer cancel()

	var span trace.Span

	attemptCtx, span = tracer.StartSpan(attemptCtx, w.tracer, "worker.process",
		attribute.String(tracer.JobIDKey, job.ID),
		attribute.String(tracer.ExecutionIDKey, job.ExecutionID),
		attribute.String(tracer.WorkflowIDKey, job.WorkflowID),
		attribute.String(tracer.WorkerIDKey, w.id),
	)
	defer span.End()

	stopHeartbeat := w.startHeartbeat(attemptCtx, job.ID)
	defer stopHeartbeat()

	execCtx, err := w.loadContext(attemptCtx, job)
	if err != nil {
		logger.Error("no usable execution context", "error", err)
		tracer.SetError(span, err)
		w.failJob(ctx, job, err.Error(), logger)

		return
	}

	if !execCtx.IsCancelled() && !execCtx.SingleNodeMode {
		if err := w.store.UpdateStatus(attemptCtx, execCtx.ExecutionID, models.ContextStatusRunning); err != nil && !statestore.IsStateNotFound(err) {
			logger.Warn("failed to mark context running", "error", err)
		}
	}

	result, err := w.executor.Execute(attemptCtx, execCtx)
	if err != nil {
		logger.Error("execution attempt failed", "error", err)
		tracer.SetError(span, err)
		w.failJob(ctx, job, err.Error(), logger)

		return
	}

	w.finish(ctx, job, execCtx, result, logger)
}

// loadContext prefers the live store copy over the enqueue-time snapshot:
// the store carries cancel flags and resume state written after enqueue.
func (w *Worker) loadContext(ctx context.Context, job *queue.Job) (*models.ExecutionContext, error) {
	execCtx, err := w.store.GetState(ctx, job.ExecutionID)
	if err == nil {
		return execCtx, nil
	}

	if statestore.IsStateNotFound(err) && job.Context != nil && job.Context.SingleNodeMode {
		// Single node runs never persist state; the snapshot is all there is.
		return job.Context, nil
	}

	return nil, fmt.Errorf("load context for %s: %w", job.ExecutionID, err)
}

// finish applies the terminal result: record status, context status plus
// retention TTL, queue acknowledgment and the terminal event.
func (w *Worker) finish(ctx context.Context, job *queue.Job, execCtx *models.ExecutionContext, result *workflow.Result, logger *slog.Logger) {
	durationMs := time.Since(execCtx.StartTime).Milliseconds()

	switch result.Status {
	case models.ContextStatusCompleted:
		w.settle(ctx, execCtx, models.ContextStatusCompleted, models.ExecutionStatusSuccess, logger)
		w.publish(ctx, execCtx.ExecutionID, events.ExecutionCompleted{
			BaseEvent:     w.baseEvent(events.ExecutionCompletedEvent, execCtx),
			Status:        string(models.ExecutionStatusSuccess),
			DurationMs:    durationMs,
			ExecutedNodes: result.ExecutedNodes,
		})
	case models.ContextStatusFailed:
		w.settle(ctx, execCtx, models.ContextStatusFailed, models.ExecutionStatusError, logger)
		w.publish(ctx, execCtx.ExecutionID, events.ExecutionFailed{
			BaseEvent: w.baseEvent(events.ExecutionFailedEvent, execCtx),
			Error: events.ExecutionError{
				NodeID:  result.FailedNodeID,
				Message: result.FailedNodeError,
			},
			DurationMs:    durationMs,
			ExecutedNodes: result.ExecutedNodes,
			FailedNodes:   result.FailedNodes,
			SkippedNodes:  result.SkippedNodes,
		})
	case models.ContextStatusCancelled:
		w.settle(ctx, execCtx, models.ContextStatusCancelled, models.ExecutionStatusCancelled, logger)
		w.publish(ctx, execCtx.ExecutionID, events.ExecutionCancelled{
			BaseEvent:     w.baseEvent(events.ExecutionCancelledEvent, execCtx),
			DurationMs:    durationMs,
			ExecutedNodes: result.ExecutedNodes,
		})
	default:
		logger.Error("executor returned non-terminal status", "status", result.Status)
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		logger.Warn("failed to acknowledge job", "error", err)
	}

	logger.Info("job finished", "status", result.Status, "duration_ms", durationMs)
}

// settle writes the terminal context status with its retention TTL and,
// when the run kept a durable record, the record status.
func (w *Worker) settle(ctx context.Context, execCtx *models.ExecutionContext, contextStatus models.ContextStatus, recordStatus models.ExecutionStatus, logger *slog.Logger) {
	if !execCtx.SingleNodeMode {
		if err := w.store.UpdateStatus(ctx, execCtx.ExecutionID, contextStatus); err != nil && !statestore.IsStateNotFound(err) {
			logger.Warn("failed to write terminal context status", "error", err)
		}

		if err := w.store.SetCompletionTTL(ctx, execCtx.ExecutionID, statestore.DefaultCompletionTTL); err != nil && !statestore.IsStateNotFound(err) {
			logger.Warn("failed to schedule context expiry", "error", err)
		}
	}

	if !execCtx.SaveToDatabase {
		return
	}

	finishedAt := time.Now().UTC()
	if err := w.executions.UpdateExecutionStatus(ctx, execCtx.ExecutionID, recordStatus, &finishedAt); err != nil {
		logger.Error("failed to write terminal record status", "error", err)
	}
}

// failJob hands a failed attempt back to the queue. While attempts
// remain the queue re-enqueues with backoff; otherwise the run is
// settled as failed.
func (w *Worker) failJob(ctx context.Context, job *queue.Job, reason string, logger *slog.Logger) {
	if err := w.queue.Fail(ctx, job, reason); err != nil {
		logger.Error("failed to record job failure", "error", err)
	}

	if job.Attempt < job.MaxAttempts {
		logger.Info("attempt will be retried", "next_attempt", job.Attempt+1)

		return
	}

	logger.Error("attempt budget exhausted", "reason", reason)

	execCtx := job.Context
	if stored, err := w.store.GetState(ctx, job.ExecutionID); err == nil {
		execCtx = stored
	}

	if execCtx == nil {
		return
	}

	w.settle(ctx, execCtx, models.ContextStatusFailed, models.ExecutionStatusError, logger)
	w.publish(ctx, job.ExecutionID, events.ExecutionFailed{
		BaseEvent: w.baseEvent(events.ExecutionFailedEvent, execCtx),
		Error: events.ExecutionError{
			Message: reason,
		},
		DurationMs: time.Since(execCtx.StartTime).Milliseconds(),
	})
}

func (w *Worker) startHeartbeat(ctx context.Context, jobID string) func() {
	interval := w.policy.StallThreshold / 3
	if interval <= 0 {
		interval = 10 * time.Second
	}

	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := w.queue.Heartbeat(ctx, jobID); err != nil {
					w.logger.Warn("heartbeat failed", "job_id", jobID, "error", err)
				}
			}
		}
	}()

	return func() { close(done) }
}

func (w *Worker) requeueStalledLoop(ctx context.Context) {
	ticker := time.NewTicker(w.policy.StallThreshold)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requeued, err := w.queue.RequeueStalled(ctx, w.policy.StallThreshold)
			if err != nil {
				w.logger.Warn("stalled-job sweep failed", "error", err)

				continue
			}

			if requeued > 0 {
				w.logger.Info("requeued stalled jobs", "count", requeued)
			}
		}
	}
}

func (w *Worker) baseEvent(eventType events.EventType, execCtx *models.ExecutionContext) events.BaseEvent {
	base := events.NewBaseEvent(eventType, execCtx.ExecutionID, execCtx.WorkflowID)
	base.WorkerID = w.id

	return base
}

func (w *Worker) publish(ctx context.Context, executionID string, event eventbus.Event) {
	if w.publisher == nil {
		return
	}

	if err := w.publisher.Publish(ctx, executionID, event); err != nil {
		w.logger.Warn("failed to publish event",
			"execution_id", executionID,
			"event_type", event.GetType(),
			"error", err,
		)
	}
}
