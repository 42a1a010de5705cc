package models

import "time"

// ExecutionStatus represents the terminal-record status of one run attempt.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusSuccess   ExecutionStatus = "SUCCESS"
	ExecutionStatusError     ExecutionStatus = "ERROR"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// Execution is the durable record of one run attempt. One record per
// attempt: a retry creates a new record and never mutates the original.
type Execution struct {
	ID          string          `json:"id"          validate:"required"`
	WorkflowID  string          `json:"workflow_id" validate:"required"`
	WorkspaceID string          `json:"workspace_id,omitempty"`
	Status      ExecutionStatus `json:"status"      validate:"required"`
	TriggerData map[string]any  `json:"trigger_data,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// IsTerminal reports whether the record has reached a final status.
func (e *Execution) IsTerminal() bool {
	return e.Status == ExecutionStatusSuccess ||
		e.Status == ExecutionStatusError ||
		e.Status == ExecutionStatusCancelled
}
