// Package web provides the HTTP handlers for the execution engine API.
package web

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/persistence"
	"github.com/node-drop/nodedrop/pkg/registry"
	"github.com/node-drop/nodedrop/pkg/scheduler"
	"github.com/node-drop/nodedrop/pkg/statestore"
)

type APIHandlers struct {
	scheduler  *scheduler.Scheduler
	executions persistence.ExecutionRepository
	store      statestore.Store
	registry   *registry.Registry
	validator  *validator.Validate
	logger     *slog.Logger
}

func NewAPIHandlers(
	sched *scheduler.Scheduler,
	executions persistence.ExecutionRepository,
	store statestore.Store,
	reg *registry.Registry,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		scheduler:  sched,
		executions: executions,
		store:      store,
		registry:   reg,
		validator:  validator,
		logger:     logger.With("module", "web"),
	}
}

// RegisterRoutes mounts the execution API on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	executions := app.Group("/executions")
	executions.Post("/", h.CreateExecution)
	executions.Get("/:id", h.GetExecution)
	executions.Post("/:id/cancel", h.CancelExecution)
	executions.Post("/:id/retry", h.RetryExecution)

	app.Get("/nodes", h.GetAvailableNodes)
	app.Get("/queue/stats", h.GetQueueStats)
	app.Get("/health", h.HealthCheck)
}

// GetAvailableNodes lists the registered node types with their config schemas.
func (h *APIHandlers) GetAvailableNodes(c fiber.Ctx) error {
	return c.JSON(h.registry.AvailableNodes())
}

func (h *APIHandlers) CreateExecution(c fiber.Ctx) error {
	var req CreateExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	executionID, err := h.scheduler.CreateExecutionJob(c.Context(), scheduler.CreateExecutionRequest{
		WorkflowID:    req.WorkflowID,
		UserID:        req.UserID,
		TriggerNodeID: req.TriggerNodeID,
		TriggerData:   req.TriggerData,
		Nodes:         req.Nodes,
		Connections:   req.Connections,
		Options: scheduler.ExecutionOptions{
			SaveToDatabase: req.Options.SaveToDatabase,
			WorkspaceID:    req.Options.WorkspaceID,
			SingleNodeMode: req.Options.SingleNodeMode,
		},
	})
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(CreateExecutionResponse{
		ExecutionID: executionID,
		Status:      "queued",
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	// The live context is authoritative while it exists; after eviction the
	// durable record is all that remains.
	execCtx, ctxErr := h.store.GetState(c.Context(), id)
	if ctxErr != nil && !statestore.IsStateNotFound(ctxErr) {
		return internalError(c, ctxErr)
	}

	record, recErr := h.executions.ExecutionByID(c.Context(), id)
	if recErr != nil && !persistence.IsExecutionNotFound(recErr) {
		return internalError(c, recErr)
	}

	if execCtx == nil && record == nil {
		return notFound(c, "execution not found")
	}

	response := ExecutionResponse{ExecutionID: id}

	if record != nil {
		response.WorkflowID = record.WorkflowID
		response.Status = string(record.Status)
		response.StartedAt = record.StartedAt
		response.FinishedAt = record.FinishedAt
	}

	if execCtx != nil {
		response.WorkflowID = execCtx.WorkflowID
		response.Status = string(execCtx.Status)
		response.LastCompletedNodeID = execCtx.LastCompletedNodeID

		if record == nil {
			response.StartedAt = execCtx.StartTime
		}
	}

	return c.JSON(response)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if err := h.scheduler.CancelExecution(c.Context(), id); err != nil {
		return handleSchedulerError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"execution_id": id,
		"status":       string(models.ContextStatusCancelled),
	})
}

func (h *APIHandlers) RetryExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	newID, err := h.scheduler.RetryExecution(c.Context(), id)
	if err != nil {
		return handleSchedulerError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(CreateExecutionResponse{
		ExecutionID: newID,
		Status:      "queued",
	})
}

func (h *APIHandlers) GetQueueStats(c fiber.Ctx) error {
	stats, err := h.scheduler.GetQueueStats(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if _, err := h.scheduler.GetQueueStats(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}
