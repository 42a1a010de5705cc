// Package persistence provides the durable storage abstraction for
// workflow definitions and execution records.
package persistence

import (
	"context"
	"time"

	"github.com/node-drop/nodedrop/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// ExecutionRepository stores one record per run attempt. Records are
// append-mostly: only status and finish time mutate, and only through
// UpdateExecutionStatus.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	UpdateExecutionStatus(ctx context.Context, id string, status models.ExecutionStatus, finishedAt *time.Time) error
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	DeleteExecution(ctx context.Context, id string) error
}
