// Package web provides HTTP request and response types for the execution API.
package web

import (
	"time"

	"github.com/node-drop/nodedrop/pkg/models"
)

// CreateExecutionRequest represents the request body for starting a run.
// The engine does not own workflow CRUD, so the caller sends the resolved
// graph inline.
type CreateExecutionRequest struct {
	WorkflowID    string                  `json:"workflow_id"     validate:"required"`
	UserID        string                  `json:"user_id,omitempty"`
	TriggerNodeID string                  `json:"trigger_node_id" validate:"required"`
	TriggerData   map[string]any          `json:"trigger_data,omitempty"`
	Nodes         []*models.WorkflowNode  `json:"nodes"           validate:"required,min=1,dive"`
	Connections   []*models.Connection    `json:"connections"     validate:"omitempty,dive"`
	Options       ExecutionOptionsRequest `json:"options"`
}

// ExecutionOptionsRequest toggles per-run behavior.
type ExecutionOptionsRequest struct {
	SaveToDatabase bool   `json:"save_to_database"`
	WorkspaceID    string `json:"workspace_id,omitempty"`
	SingleNodeMode bool   `json:"single_node_mode"`
}

// CreateExecutionResponse is returned once the job is queued.
type CreateExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// ExecutionResponse is the point-in-time view of one run, assembled from
// the live execution context when it still exists and the durable record
// otherwise.
type ExecutionResponse struct {
	ExecutionID         string     `json:"execution_id"`
	WorkflowID          string     `json:"workflow_id"`
	Status              string     `json:"status"`
	LastCompletedNodeID string     `json:"last_completed_node_id,omitempty"`
	StartedAt           time.Time  `json:"started_at"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
}
