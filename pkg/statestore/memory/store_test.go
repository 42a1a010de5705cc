package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/statestore"
)

func testContext(executionID string) *models.ExecutionContext {
	return &models.ExecutionContext{
		ExecutionID:   executionID,
		WorkflowID:    "wf-1",
		TriggerNodeID: "trigger",
		Status:        models.ContextStatusPending,
		StartTime:     time.Now().UTC(),
		Nodes: []*models.WorkflowNode{
			{ID: "trigger", Type: models.NodeTypeTriggerManual, Category: models.CategoryTypeTrigger, Name: "Trigger", Enabled: true},
			{ID: "a", Type: "log", Category: models.CategoryTypeAction, Name: "A", Enabled: true},
		},
	}
}

func TestStore_CreateGetDelete(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close(context.Background()) }()

	ctx := context.Background()
	require.NoError(t, store.CreateState(ctx, testContext("exec-1")))

	loaded, err := store.GetState(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", loaded.WorkflowID)
	assert.Equal(t, models.ContextStatusPending, loaded.Status)

	require.NoError(t, store.DeleteState(ctx, "exec-1"))

	_, err = store.GetState(ctx, "exec-1")
	assert.True(t, statestore.IsStateNotFound(err))
}

func TestStore_SetNodeOutputAdvancesCursor(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close(context.Background()) }()

	ctx := context.Background()
	require.NoError(t, store.CreateState(ctx, testContext("exec-1")))

	output := models.SingleItem(models.PortMain, models.Item{"ok": true})
	require.NoError(t, store.SetNodeOutput(ctx, "exec-1", "a", output))

	loaded, err := store.GetState(ctx, "exec-1")
	require.NoError(t, err)

	// Cursor and output map always move together.
	assert.Equal(t, "a", loaded.LastCompletedNodeID)
	require.Contains(t, loaded.NodeOutputs, "a")

	outputs, err := store.GetAllNodeOutputs(ctx, "exec-1")
	require.NoError(t, err)
	assert.Len(t, outputs, 1)
}

func TestStore_UpdateStatus(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close(context.Background()) }()

	ctx := context.Background()
	require.NoError(t, store.CreateState(ctx, testContext("exec-1")))
	require.NoError(t, store.UpdateStatus(ctx, "exec-1", models.ContextStatusCancelled))

	loaded, err := store.GetState(ctx, "exec-1")
	require.NoError(t, err)
	assert.True(t, loaded.IsCancelled())
}

func TestStore_CompletionTTLExpires(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close(context.Background()) }()

	ctx := context.Background()
	require.NoError(t, store.CreateState(ctx, testContext("exec-1")))
	require.NoError(t, store.SetCompletionTTL(ctx, "exec-1", 10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)

	_, err := store.GetState(ctx, "exec-1")
	assert.True(t, statestore.IsStateNotFound(err))
}

func TestStore_SetCompletionTTLMissingState(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close(context.Background()) }()

	err := store.SetCompletionTTL(context.Background(), "ghost", time.Minute)
	assert.True(t, statestore.IsStateNotFound(err))
}

func TestStore_MutatingMissingState(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close(context.Background()) }()

	err := store.UpdateStatus(context.Background(), "ghost", models.ContextStatusRunning)
	assert.True(t, statestore.IsStateNotFound(err))

	err = store.SetNodeOutput(context.Background(), "ghost", "a", nil)
	assert.True(t, statestore.IsStateNotFound(err))
}
