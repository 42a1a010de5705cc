// Package events defines event types and structures for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/node-drop/nodedrop/pkg/models"
)

type EventType string

// Topic carries every execution event; messages are keyed by execution id
// so Kafka partitioning preserves per-execution ordering.
const Topic = "nodedrop.execution.events"

const ExecutionIDMetadataKey = "execution_id"
const EventTypeMetadataKey = "event_type"

const (
	NodeStartedEvent        EventType = "node.started"
	NodeCompletedEvent      EventType = "node.completed"
	NodeFailedEvent         EventType = "node.failed"
	ExecutionProgressEvent  EventType = "execution.progress"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionLogEvent       EventType = "execution.log"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	ExecutionID string    `json:"execution_id"`
	WorkflowID  string    `json:"workflow_id"`
	Timestamp   time.Time `json:"timestamp"`
	WorkerID    string    `json:"worker_id,omitempty"`
}

func NewBaseEvent(eventType EventType, executionID, workflowID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Timestamp:   time.Now().UTC(),
	}
}

type NodeStarted struct {
	BaseEvent

	NodeID   string `json:"node_id"`
	NodeName string `json:"node_name"`
	NodeType string `json:"node_type"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

// ActiveConnection describes an edge becoming active as a node's output
// flows to a dependent about to be dispatched. Observers animate these.
type ActiveConnection struct {
	ConnectionID string `json:"connection_id"`
	SourceNodeID string `json:"source_node_id"`
	SourcePort   string `json:"source_port"`
	TargetNodeID string `json:"target_node_id"`
	TargetPort   string `json:"target_port"`
}

type NodeCompleted struct {
	BaseEvent

	NodeID            string             `json:"node_id"`
	NodeName          string             `json:"node_name"`
	Output            models.Envelope    `json:"output,omitempty"`
	ActiveConnections []ActiveConnection `json:"active_connections,omitempty"`
	DurationMs        int64              `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeID     string `json:"node_id"`
	NodeName   string `json:"node_name"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type ExecutionProgress struct {
	BaseEvent

	CompletedNodes int `json:"completed_nodes"`
	TotalNodes     int `json:"total_nodes"`
}

func (e ExecutionProgress) GetType() EventType {
	return ExecutionProgressEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Status        string   `json:"status"`
	DurationMs    int64    `json:"duration_ms"`
	ExecutedNodes []string `json:"executed_nodes"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionFailed reports a run that reached one or more node failures.
// ExecutedNodes and FailedNodes are reported separately: independent
// branches may have completed even though the run as a whole failed.
type ExecutionFailed struct {
	BaseEvent

	Error         ExecutionError `json:"error"`
	DurationMs    int64          `json:"duration_ms"`
	ExecutedNodes []string       `json:"executed_nodes"`
	FailedNodes   []string       `json:"failed_nodes"`
	SkippedNodes  []string       `json:"skipped_nodes,omitempty"`
}

type ExecutionError struct {
	NodeID  string `json:"node_id"`
	Message string `json:"message"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	Reason        string   `json:"reason,omitempty"`
	DurationMs    int64    `json:"duration_ms"`
	ExecutedNodes []string `json:"executed_nodes"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// ExecutionLog carries a free-form diagnostic line emitted from inside a
// node execution.
type ExecutionLog struct {
	BaseEvent

	NodeID  string `json:"node_id,omitempty"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (e ExecutionLog) GetType() EventType {
	return ExecutionLogEvent
}
