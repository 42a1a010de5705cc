// Package models defines the core domain models for node-based workflow execution.
package models

// CategoryType represents the category of node.
type CategoryType string

const (
	CategoryTypeAction  CategoryType = "action"  // Regular action nodes (http, log, transform, etc.)
	CategoryTypeTrigger CategoryType = "trigger" // Trigger nodes (manual, webhook, schedule)
)

// Built-in trigger node types.
const (
	NodeTypeTriggerManual   = "trigger:manual"
	NodeTypeTriggerWebhook  = "trigger:webhook"
	NodeTypeTriggerSchedule = "trigger:schedule"
)

// WorkflowNode represents a node instance in a workflow graph.
type WorkflowNode struct {
	ID        string         `json:"id"       validate:"required"`
	Type      string         `json:"type"     validate:"required"`
	Category  CategoryType   `json:"category" validate:"required"`
	Name      string         `json:"name"     validate:"required,min=1"`
	Config    map[string]any `json:"config"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
	Enabled   bool           `json:"enabled"`
}

func (n *WorkflowNode) IsActionNode() bool {
	return n.Category == CategoryTypeAction
}

func (n *WorkflowNode) IsTriggerNode() bool {
	return n.Category == CategoryTypeTrigger
}

// Connection connects two ports directly (fully normalized).
type Connection struct {
	ID         string `json:"id"`
	SourcePort string `json:"source_port" validate:"required"` // References Port.ID: "{node_id}:{port_name}"
	TargetPort string `json:"target_port" validate:"required"` // References Port.ID: "{node_id}:{port_name}"
}

// SourceNodeID returns the node id half of the source port reference.
func (c *Connection) SourceNodeID() string {
	nodeID, _, _ := ParsePortID(c.SourcePort)

	return nodeID
}

// TargetNodeID returns the node id half of the target port reference.
func (c *Connection) TargetNodeID() string {
	nodeID, _, _ := ParsePortID(c.TargetPort)

	return nodeID
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
)
