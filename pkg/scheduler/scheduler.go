// Package scheduler owns the execution lifecycle on the control side:
// creating jobs, cancelling them, and retrying failed runs from their
// surviving resume state. It never executes nodes itself; workers pick
// jobs up from the queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/persistence"
	"github.com/node-drop/nodedrop/pkg/queue"
	"github.com/node-drop/nodedrop/pkg/statestore"
)

// ErrContextEvicted is returned by RetryExecution when the execution
// context has already left the state store. Resume information is gone;
// retry is refused rather than silently re-running from scratch.
var ErrContextEvicted = errors.New("execution context evicted, resume information lost")

// CreateExecutionRequest carries everything needed to enqueue a run.
type CreateExecutionRequest struct {
	WorkflowID    string
	UserID        string
	TriggerNodeID string
	TriggerData   map[string]any
	Nodes         []*models.WorkflowNode
	Connections   []*models.Connection
	Options       ExecutionOptions
}

// ExecutionOptions toggles per-run behavior.
type ExecutionOptions struct {
	SaveToDatabase bool
	WorkspaceID    string
	SingleNodeMode bool
}

// Scheduler coordinates the execution record, the state store and the job
// queue. All dependencies are injected; lifecycle of the underlying
// connections belongs to the caller.
type Scheduler struct {
	queue      queue.Queue
	store      statestore.Store
	executions persistence.ExecutionRepository
	policy     queue.Policy
	logger     *slog.Logger
}

// NewScheduler creates a scheduler with the default job policy.
func NewScheduler(
	q queue.Queue,
	store statestore.Store,
	executions persistence.ExecutionRepository,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		queue:      q,
		store:      store,
		executions: executions,
		policy:     queue.DefaultPolicy(),
		logger:     logger.With("module", "scheduler"),
	}
}

// CreateExecutionJob allocates an execution id, writes the durable record
// (when requested), writes the execution context, and enqueues the job.
// It returns as soon as the job is queued and never blocks on execution.
// Any failure after a partial write is compensated by deleting what was
// written, record first, so a failed enqueue leaves no orphaned state.
func (s *Scheduler) CreateExecutionJob(ctx context.Context, req CreateExecutionRequest) (string, error) {
	if err := models.ValidateGraph(req.Nodes, req.Connections); err != nil {
		return "", fmt.Errorf("invalid workflow graph: %w", err)
	}

	executionID := uuid.New().String()
	now := time.Now().UTC()

	execCtx := &models.ExecutionContext{
		ExecutionID:    executionID,
		WorkflowID:     req.WorkflowID,
		UserID:         req.UserID,
		WorkspaceID:    req.Options.WorkspaceID,
		TriggerNodeID:  req.TriggerNodeID,
		TriggerData:    req.TriggerData,
		Nodes:          req.Nodes,
		Connections:    req.Connections,
		NodeIDToName:   nodeNames(req.Nodes),
		Status:         models.ContextStatusPending,
		StartTime:      now,
		SaveToDatabase: req.Options.SaveToDatabase,
		SingleNodeMode: req.Options.SingleNodeMode,
	}

	recordWritten := false

	if req.Options.SaveToDatabase {
		record := &models.Execution{
			ID:          executionID,
			WorkflowID:  req.WorkflowID,
			WorkspaceID: req.Options.WorkspaceID,
			Status:      models.ExecutionStatusRunning,
			TriggerData: req.TriggerData,
			StartedAt:   now,
		}

		if err := s.executions.CreateExecution(ctx, record); err != nil {
			return "", fmt.Errorf("create execution record: %w", err)
		}

		recordWritten = true
	}

	if err := s.store.CreateState(ctx, execCtx); err != nil {
		s.compensate(ctx, executionID, recordWritten, false)

		return "", fmt.Errorf("create execution context: %w", err)
	}

	job := &queue.Job{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		WorkflowID:  req.WorkflowID,
		Context:     execCtx,
		Attempt:     1,
		MaxAttempts: s.policy.MaxAttempts,
		EnqueuedAt:  now,
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.compensate(ctx, executionID, recordWritten, true)

		return "", fmt.Errorf("enqueue execution job: %w", err)
	}

	s.logger.Info("execution job enqueued",
		"execution_id", executionID,
		"workflow_id", req.WorkflowID,
		"single_node_mode", req.Options.SingleNodeMode,
	)

	return executionID, nil
}

// CancelExecution cancels a run. A still-queued job is removed outright
// and the run ends with zero node executions. An already-claimed job
// cannot be pre-empted mid-node; the context is flagged instead and the
// worker stops at the next node boundary. Idempotent once terminal.
func (s *Scheduler) CancelExecution(ctx context.Context, executionID string) error {
	record, err := s.executions.ExecutionByID(ctx, executionID)
	if err != nil && !persistence.IsExecutionNotFound(err) {
		return fmt.Errorf("read execution record: %w", err)
	}

	if record != nil && record.IsTerminal() {
		return nil
	}

	removed, err := s.queue.Remove(ctx, executionID)
	if err != nil {
		return fmt.Errorf("remove queued job: %w", err)
	}

	if err := s.store.UpdateStatus(ctx, executionID, models.ContextStatusCancelled); err != nil && !statestore.IsStateNotFound(err) {
		return fmt.Errorf("flag execution context cancelled: %w", err)
	}

	if err := s.store.SetCompletionTTL(ctx, executionID, statestore.DefaultCompletionTTL); err != nil && !statestore.IsStateNotFound(err) {
		s.logger.Warn("failed to schedule context expiry", "execution_id", executionID, "error", err)
	}

	if record != nil {
		finishedAt := time.Now().UTC()
		if err := s.executions.UpdateExecutionStatus(ctx, executionID, models.ExecutionStatusCancelled, &finishedAt); err != nil {
			return fmt.Errorf("record cancellation: %w", err)
		}
	}

	s.logger.Info("execution cancelled",
		"execution_id", executionID,
		"removed_from_queue", removed,
	)

	return nil
}

// RetryExecution starts a fresh attempt of a failed run, carrying the
// recorded outputs forward so only unfinished work re-runs.
// The surviving context is required: a context missing from the
// store means resume information was lost and the retry fails with
// ErrContextEvicted, creating no new job. The new attempt gets its own
// execution id, record and context; the original record is not touched.
func (s *Scheduler) RetryExecution(ctx context.Context, executionID string) (string, error) {
	original, err := s.store.GetState(ctx, executionID)
	if err != nil {
		if statestore.IsStateNotFound(err) {
			return "", fmt.Errorf("retry execution %s: %w", executionID, ErrContextEvicted)
		}

		return "", fmt.Errorf("read execution context: %w", err)
	}

	newExecutionID := uuid.New().String()
	now := time.Now().UTC()

	clone := original.Clone(newExecutionID, now)

	recordWritten := false

	if clone.SaveToDatabase {
		record := &models.Execution{
			ID:          newExecutionID,
			WorkflowID:  clone.WorkflowID,
			WorkspaceID: clone.WorkspaceID,
			Status:      models.ExecutionStatusRunning,
			TriggerData: clone.TriggerData,
			StartedAt:   now,
		}

		if err := s.executions.CreateExecution(ctx, record); err != nil {
			return "", fmt.Errorf("create retry execution record: %w", err)
		}

		recordWritten = true
	}

	if err := s.store.CreateState(ctx, clone); err != nil {
		s.compensate(ctx, newExecutionID, recordWritten, false)

		return "", fmt.Errorf("create retry execution context: %w", err)
	}

	job := &queue.Job{
		ID:               uuid.New().String(),
		ExecutionID:      newExecutionID,
		WorkflowID:       clone.WorkflowID,
		ResumeFromNodeID: clone.LastCompletedNodeID,
		Context:          clone,
		Attempt:          1,
		MaxAttempts:      s.policy.MaxAttempts,
		EnqueuedAt:       now,
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.compensate(ctx, newExecutionID, recordWritten, true)

		return "", fmt.Errorf("enqueue retry job: %w", err)
	}

	s.logger.Info("execution retried",
		"execution_id", executionID,
		"new_execution_id", newExecutionID,
		"resume_from", clone.LastCompletedNodeID,
	)

	return newExecutionID, nil
}

// GetQueueStats returns point-in-time counts from the queue backend.
func (s *Scheduler) GetQueueStats(ctx context.Context) (queue.Stats, error) {
	return s.queue.GetStats(ctx)
}

// compensate unwinds partial writes after a failed enqueue: the record
// first, then the state-store entry.
func (s *Scheduler) compensate(ctx context.Context, executionID string, recordWritten, stateWritten bool) {
	if recordWritten {
		if err := s.executions.DeleteExecution(ctx, executionID); err != nil {
			s.logger.Error("failed to compensate execution record", "execution_id", executionID, "error", err)
		}
	}

	if stateWritten {
		if err := s.store.DeleteState(ctx, executionID); err != nil {
			s.logger.Error("failed to compensate execution context", "execution_id", executionID, "error", err)
		}
	}
}

func nodeNames(nodes []*models.WorkflowNode) map[string]string {
	names := make(map[string]string, len(nodes))
	for _, node := range nodes {
		names[node.ID] = node.Name
	}

	return names
}
