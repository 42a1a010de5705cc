package scheduler

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/persistence"
	"github.com/node-drop/nodedrop/pkg/persistence/file"
	queuememory "github.com/node-drop/nodedrop/pkg/queue/memory"
	storememory "github.com/node-drop/nodedrop/pkg/statestore/memory"
)

type schedulerFixture struct {
	scheduler  *Scheduler
	queue      *queuememory.Queue
	store      *storememory.Store
	executions persistence.ExecutionRepository
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	q := queuememory.NewQueue()
	store := storememory.NewStore()
	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()

	t.Cleanup(func() {
		ctx := context.Background()
		_ = q.Close(ctx)
		_ = store.Close(ctx)
	})

	return &schedulerFixture{
		scheduler:  NewScheduler(q, store, repo, slog.Default()),
		queue:      q,
		store:      store,
		executions: repo,
	}
}

func validRequest() CreateExecutionRequest {
	return CreateExecutionRequest{
		WorkflowID:    "wf-1",
		UserID:        "user-1",
		TriggerNodeID: "trigger",
		TriggerData:   map[string]any{"source": "manual"},
		Nodes: []*models.WorkflowNode{
			{ID: "trigger", Type: models.NodeTypeTriggerManual, Category: models.CategoryTypeTrigger, Name: "Trigger", Enabled: true},
			{ID: "fetch", Type: "httprequest", Category: models.CategoryTypeAction, Name: "Fetch", Enabled: true},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourcePort: "trigger:main", TargetPort: "fetch:main"},
		},
		Options: ExecutionOptions{SaveToDatabase: true},
	}
}

func TestCreateExecutionJob_EnqueuesEverything(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	executionID, err := fx.scheduler.CreateExecutionJob(ctx, validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, executionID)

	stats, err := fx.queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Waiting)
	assert.Equal(t, int64(0), stats.Active)

	execCtx, err := fx.store.GetState(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ContextStatusPending, execCtx.Status)
	assert.Equal(t, "Trigger", execCtx.NodeIDToName["trigger"])

	record, err := fx.executions.ExecutionByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, record.Status)
	assert.Nil(t, record.FinishedAt)
}

func TestCreateExecutionJob_NoRecordWithoutSaveToDatabase(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.Options.SaveToDatabase = false

	executionID, err := fx.scheduler.CreateExecutionJob(ctx, req)
	require.NoError(t, err)

	_, err = fx.executions.ExecutionByID(ctx, executionID)
	require.True(t, persistence.IsExecutionNotFound(err))
}

func TestCreateExecutionJob_RejectsInvalidGraph(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.Connections = append(req.Connections, &models.Connection{
		ID: "back", SourcePort: "fetch:success", TargetPort: "trigger:main",
	})

	_, err := fx.scheduler.CreateExecutionJob(ctx, req)
	require.Error(t, err)

	stats, err := fx.queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)
}

func TestCancelExecution_BeforePickupRemovesJob(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	executionID, err := fx.scheduler.CreateExecutionJob(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, fx.scheduler.CancelExecution(ctx, executionID))

	// No job left for a worker: zero node executions.
	stats, err := fx.queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)

	record, err := fx.executions.ExecutionByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, record.Status)
	require.NotNil(t, record.FinishedAt)

	execCtx, err := fx.store.GetState(ctx, executionID)
	require.NoError(t, err)
	assert.True(t, execCtx.IsCancelled())
}

func TestCancelExecution_ActiveJobFlagsContext(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	executionID, err := fx.scheduler.CreateExecutionJob(ctx, validRequest())
	require.NoError(t, err)

	// A worker claimed the job.
	_, err = fx.queue.Dequeue(ctx, "worker-1")
	require.NoError(t, err)

	require.NoError(t, fx.scheduler.CancelExecution(ctx, executionID))

	// The claim is untouched; the context flag is what stops the worker.
	stats, err := fx.queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Active)

	execCtx, err := fx.store.GetState(ctx, executionID)
	require.NoError(t, err)
	assert.True(t, execCtx.IsCancelled())
}

func TestCancelExecution_IdempotentOnceTerminal(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	executionID, err := fx.scheduler.CreateExecutionJob(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, fx.scheduler.CancelExecution(ctx, executionID))
	require.NoError(t, fx.scheduler.CancelExecution(ctx, executionID))
}

func TestRetryExecution_ResumesFromCursor(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	executionID, err := fx.scheduler.CreateExecutionJob(ctx, validRequest())
	require.NoError(t, err)

	// Drain the original job and simulate a failed run that got through
	// the trigger node.
	_, err = fx.queue.Dequeue(ctx, "worker-1")
	require.NoError(t, err)
	require.NoError(t, fx.store.SetNodeOutput(ctx, executionID,
		"trigger", models.SingleItem(models.PortMain, models.Item{"source": "manual"})))
	require.NoError(t, fx.store.UpdateStatus(ctx, executionID, models.ContextStatusFailed))

	newExecutionID, err := fx.scheduler.RetryExecution(ctx, executionID)
	require.NoError(t, err)
	require.NotEqual(t, executionID, newExecutionID)

	// The clone starts pending with the cursor and outputs carried over.
	clone, err := fx.store.GetState(ctx, newExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ContextStatusPending, clone.Status)
	assert.Equal(t, "trigger", clone.LastCompletedNodeID)
	require.Contains(t, clone.NodeOutputs, "trigger")

	// A fresh job carries the resume cursor.
	job, err := fx.queue.Dequeue(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, newExecutionID, job.ExecutionID)
	assert.Equal(t, "trigger", job.ResumeFromNodeID)
	assert.Equal(t, 1, job.Attempt)

	// New record; the original one is not mutated.
	newRecord, err := fx.executions.ExecutionByID(ctx, newExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, newRecord.Status)

	originalRecord, err := fx.executions.ExecutionByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, originalRecord.Status)
}

func TestRetryExecution_EvictedContextIsHardError(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	_, err := fx.scheduler.RetryExecution(ctx, "gone")
	require.ErrorIs(t, err, ErrContextEvicted)

	// No job was created.
	stats, err := fx.queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)
}

func TestGetQueueStats_EmptyQueue(t *testing.T) {
	fx := newSchedulerFixture(t)

	stats, err := fx.scheduler.GetQueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)
	assert.Equal(t, int64(0), stats.Active)
	assert.Equal(t, int64(0), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(0), stats.Delayed)
}

func TestCancelExecution_NoRecordStillFlagsContext(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.Options.SaveToDatabase = false

	executionID, err := fx.scheduler.CreateExecutionJob(ctx, req)
	require.NoError(t, err)

	require.NoError(t, fx.scheduler.CancelExecution(ctx, executionID))

	execCtx, err := fx.store.GetState(ctx, executionID)
	require.NoError(t, err)
	assert.True(t, execCtx.IsCancelled())
}
