package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/persistence"
)

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	workflow := &models.Workflow{
		ID:     "wf-1",
		Name:   "Test Workflow",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.WorkflowNode{
			{ID: "trigger", Type: models.NodeTypeTriggerManual, Category: models.CategoryTypeTrigger, Name: "Trigger", Enabled: true},
		},
	}

	require.NoError(t, p.WorkflowRepository().SaveWorkflow(ctx, workflow))

	loaded, err := p.WorkflowRepository().WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Workflow", loaded.Name)
	require.Len(t, loaded.Nodes, 1)

	all, err := p.WorkflowRepository().Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWorkflowRepository_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.WorkflowRepository().WorkflowByID(context.Background(), "ghost")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_RejectsPathTraversal(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.WorkflowRepository().WorkflowByID(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	assert.False(t, persistence.IsWorkflowNotFound(err))
}

func TestExecutionRepository_Lifecycle(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	execution := &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	require.NoError(t, p.ExecutionRepository().CreateExecution(ctx, execution))

	finished := time.Now().UTC()
	require.NoError(t, p.ExecutionRepository().UpdateExecutionStatus(ctx, "exec-1", models.ExecutionStatusSuccess, &finished))

	loaded, err := p.ExecutionRepository().ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, loaded.Status)
	require.NotNil(t, loaded.FinishedAt)
	assert.True(t, loaded.IsTerminal())
}

func TestExecutionRepository_ListByWorkflow(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"exec-1", "exec-2"} {
		require.NoError(t, p.ExecutionRepository().CreateExecution(ctx, &models.Execution{
			ID:         id,
			WorkflowID: "wf-1",
			Status:     models.ExecutionStatusRunning,
			StartedAt:  time.Now().UTC(),
		}))
	}

	require.NoError(t, p.ExecutionRepository().CreateExecution(ctx, &models.Execution{
		ID:         "exec-other",
		WorkflowID: "wf-2",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}))

	executions, err := p.ExecutionRepository().ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, executions, 2)
}

func TestExecutionRepository_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.ExecutionRepository().ExecutionByID(context.Background(), "ghost")
	assert.True(t, persistence.IsExecutionNotFound(err))

	err = p.ExecutionRepository().DeleteExecution(context.Background(), "ghost")
	assert.True(t, persistence.IsExecutionNotFound(err))
}
