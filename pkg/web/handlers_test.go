package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/nodes/httprequest"
	"github.com/node-drop/nodedrop/pkg/nodes/trigger"
	"github.com/node-drop/nodedrop/pkg/persistence/file"
	queuememory "github.com/node-drop/nodedrop/pkg/queue/memory"
	"github.com/node-drop/nodedrop/pkg/registry"
	"github.com/node-drop/nodedrop/pkg/scheduler"
	storememory "github.com/node-drop/nodedrop/pkg/statestore/memory"
	"github.com/node-drop/nodedrop/pkg/web"
)

type testEnv struct {
	app   *fiber.App
	queue *queuememory.Queue
	store *storememory.Store
	sched *scheduler.Scheduler
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	q := queuememory.NewQueue()
	store := storememory.NewStore()
	t.Cleanup(func() {
		_ = q.Close(context.Background())
		_ = store.Close(context.Background())
	})

	executions := file.NewPersistence(t.TempDir()).ExecutionRepository()
	sched := scheduler.NewScheduler(q, store, executions, slog.Default())

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterNode(trigger.NewManualTriggerNodeFactory())
	reg.RegisterNode(httprequest.NewHTTPRequestNodeFactory())

	handlers := web.NewAPIHandlers(
		sched,
		executions,
		store,
		reg,
		validator.New(validator.WithRequiredStructEnabled()),
		slog.Default(),
	)

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return &testEnv{app: app, queue: q, store: store, sched: sched}
}

func validCreateRequest() web.CreateExecutionRequest {
	return web.CreateExecutionRequest{
		WorkflowID:    "wf-1",
		TriggerNodeID: "trigger",
		TriggerData:   map[string]any{"source": "api"},
		Nodes: []*models.WorkflowNode{
			{ID: "trigger", Type: "trigger:manual", Category: models.CategoryTypeTrigger, Name: "Start", Enabled: true},
			{ID: "fetch", Type: "httprequest", Category: models.CategoryTypeAction, Name: "Fetch", Enabled: true},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourcePort: "trigger:main", TargetPort: "fetch:main"},
		},
		Options: web.ExecutionOptionsRequest{SaveToDatabase: true},
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any) *http.Response {
	t.Helper()

	var body []byte

	if payload != nil {
		if raw, ok := payload.(string); ok {
			body = []byte(raw)
		} else {
			var err error

			body, err = json.Marshal(payload)
			require.NoError(t, err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

func TestAPIHandlers_CreateExecution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "successful creation",
			requestBody:    validCreateRequest(),
			expectedStatus: http.StatusCreated,
		},
		{
			name: "validation error - missing workflow id",
			requestBody: func() web.CreateExecutionRequest {
				req := validCreateRequest()
				req.WorkflowID = ""

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - no nodes",
			requestBody: func() web.CreateExecutionRequest {
				req := validCreateRequest()
				req.Nodes = nil

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "invalid graph - cycle",
			requestBody: func() web.CreateExecutionRequest {
				req := validCreateRequest()
				req.Nodes = append(req.Nodes, &models.WorkflowNode{
					ID: "loop", Type: "transform", Category: models.CategoryTypeAction, Name: "Loop", Enabled: true,
				})
				req.Connections = append(req.Connections,
					&models.Connection{ID: "c2", SourcePort: "fetch:success", TargetPort: "loop:main"},
					&models.Connection{ID: "c3", SourcePort: "loop:main", TargetPort: "fetch:main"},
				)

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)

			resp := doJSON(t, env.app, http.MethodPost, "/executions", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus != http.StatusCreated {
				_ = resp.Body.Close()

				return
			}

			created := decodeBody[web.CreateExecutionResponse](t, resp)
			assert.NotEmpty(t, created.ExecutionID)
			assert.Equal(t, "queued", created.Status)

			stats, err := env.queue.GetStats(context.Background())
			require.NoError(t, err)
			assert.EqualValues(t, 1, stats.Waiting)
		})
	}
}

func TestAPIHandlers_GetExecution(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := doJSON(t, env.app, http.MethodPost, "/executions", validCreateRequest())
	created := decodeBody[web.CreateExecutionResponse](t, resp)

	resp = doJSON(t, env.app, http.MethodGet, "/executions/"+created.ExecutionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	execution := decodeBody[web.ExecutionResponse](t, resp)
	assert.Equal(t, created.ExecutionID, execution.ExecutionID)
	assert.Equal(t, "wf-1", execution.WorkflowID)
	assert.Equal(t, string(models.ContextStatusPending), execution.Status)
	assert.Nil(t, execution.FinishedAt)
}

func TestAPIHandlers_GetExecution_RecordOnlyAfterEviction(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	resp := doJSON(t, env.app, http.MethodPost, "/executions", validCreateRequest())
	created := decodeBody[web.CreateExecutionResponse](t, resp)

	// Simulate context eviction; the durable record still answers.
	require.NoError(t, env.store.DeleteState(ctx, created.ExecutionID))

	resp = doJSON(t, env.app, http.MethodGet, "/executions/"+created.ExecutionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	execution := decodeBody[web.ExecutionResponse](t, resp)
	assert.Equal(t, string(models.ExecutionStatusRunning), execution.Status)
	assert.Empty(t, execution.LastCompletedNodeID)
}

func TestAPIHandlers_GetExecution_NotFound(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := doJSON(t, env.app, http.MethodGet, "/executions/nope", nil)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_CancelExecution(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	resp := doJSON(t, env.app, http.MethodPost, "/executions", validCreateRequest())
	created := decodeBody[web.CreateExecutionResponse](t, resp)

	resp = doJSON(t, env.app, http.MethodPost, "/executions/"+created.ExecutionID+"/cancel", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	stored, err := env.store.GetState(ctx, created.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ContextStatusCancelled, stored.Status)

	stats, err := env.queue.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.Waiting)

	// Cancelling again is a no-op, not an error.
	resp = doJSON(t, env.app, http.MethodPost, "/executions/"+created.ExecutionID+"/cancel", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestAPIHandlers_RetryExecution(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	ctx := context.Background()

	resp := doJSON(t, env.app, http.MethodPost, "/executions", validCreateRequest())
	created := decodeBody[web.CreateExecutionResponse](t, resp)

	// Drive the original to a failed terminal state with a recorded cursor.
	_, err := env.queue.Dequeue(ctx, "worker-test")
	require.NoError(t, err)
	require.NoError(t, env.store.SetNodeOutput(ctx, created.ExecutionID, "trigger",
		models.SingleItem(models.PortMain, models.Item{"ok": true})))
	require.NoError(t, env.store.UpdateStatus(ctx, created.ExecutionID, models.ContextStatusFailed))

	resp = doJSON(t, env.app, http.MethodPost, "/executions/"+created.ExecutionID+"/retry", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	retried := decodeBody[web.CreateExecutionResponse](t, resp)
	assert.NotEmpty(t, retried.ExecutionID)
	assert.NotEqual(t, created.ExecutionID, retried.ExecutionID)

	clone, err := env.store.GetState(ctx, retried.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "trigger", clone.LastCompletedNodeID)
}

func TestAPIHandlers_RetryExecution_ContextEvicted(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := doJSON(t, env.app, http.MethodPost, "/executions/evicted-exec/retry", nil)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_GetAvailableNodes(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := doJSON(t, env.app, http.MethodGet, "/nodes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	nodes := decodeBody[[]registry.NodeTypeInfo](t, resp)
	require.Len(t, nodes, 2)

	types := []string{nodes[0].Type, nodes[1].Type}
	assert.Contains(t, types, "trigger:manual")
	assert.Contains(t, types, "httprequest")

	for _, node := range nodes {
		assert.NotEmpty(t, node.Name)
		assert.NotEmpty(t, node.Schema)
	}
}

func TestAPIHandlers_GetQueueStats(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := doJSON(t, env.app, http.MethodPost, "/executions", validCreateRequest())
	_ = resp.Body.Close()

	resp = doJSON(t, env.app, http.MethodGet, "/queue/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats := decodeBody[map[string]int64](t, resp)
	assert.EqualValues(t, 1, stats["waiting"])
	assert.EqualValues(t, 0, stats["active"])
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp := doJSON(t, env.app, http.MethodGet, "/health", nil)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
