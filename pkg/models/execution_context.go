package models

import "time"

// ContextStatus represents the lifecycle state of a store-resident
// execution context.
type ContextStatus string

const (
	ContextStatusPending   ContextStatus = "pending"
	ContextStatusRunning   ContextStatus = "running"
	ContextStatusCompleted ContextStatus = "completed"
	ContextStatusFailed    ContextStatus = "failed"
	ContextStatusCancelled ContextStatus = "cancelled"
)

// ExecutionContext is the ephemeral, store-resident record of one run: the
// graph snapshot, per-node outputs, and the resume cursor. The worker
// processing the job owns it exclusively; the scheduler only creates,
// clones, and deletes it.
//
// Invariant: LastCompletedNodeID, when set, names a node whose output is
// present in NodeOutputs. The resume protocol depends on this pairing.
type ExecutionContext struct {
	ExecutionID    string              `json:"execution_id"    validate:"required"`
	WorkflowID     string              `json:"workflow_id"     validate:"required"`
	UserID         string              `json:"user_id"`
	WorkspaceID    string              `json:"workspace_id,omitempty"`
	TriggerNodeID  string              `json:"trigger_node_id" validate:"required"`
	TriggerData    map[string]any      `json:"trigger_data,omitempty"`
	Nodes          []*WorkflowNode     `json:"nodes"           validate:"required,min=1"`
	Connections    []*Connection       `json:"connections"`
	NodeIDToName   map[string]string   `json:"node_id_to_name,omitempty"`
	Status         ContextStatus       `json:"status"`
	StartTime      time.Time           `json:"start_time"`
	SaveToDatabase bool                `json:"save_to_database"`
	SingleNodeMode bool                `json:"single_node_mode"`

	LastCompletedNodeID string              `json:"last_completed_node_id,omitempty"`
	NodeOutputs         map[string]Envelope `json:"node_outputs,omitempty"`
}

// NodeByID finds a node in the context's graph snapshot.
func (c *ExecutionContext) NodeByID(id string) (*WorkflowNode, bool) {
	for _, node := range c.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// NodeName resolves a node id to its display name, falling back to the id.
func (c *ExecutionContext) NodeName(id string) string {
	if name, ok := c.NodeIDToName[id]; ok && name != "" {
		return name
	}

	return id
}

// IsCancelled reports whether a cancel request has been recorded. The
// executor checks this at every node boundary; an in-flight node is never
// interrupted mid-call.
func (c *ExecutionContext) IsCancelled() bool {
	return c.Status == ContextStatusCancelled
}

// Clone returns a deep copy of the context keyed by a new execution id,
// carrying the resume cursor and all recorded outputs forward. Used by
// retry: the clone starts pending with a fresh start time.
func (c *ExecutionContext) Clone(newExecutionID string, startTime time.Time) *ExecutionContext {
	clone := &ExecutionContext{
		ExecutionID:         newExecutionID,
		WorkflowID:          c.WorkflowID,
		UserID:              c.UserID,
		WorkspaceID:         c.WorkspaceID,
		TriggerNodeID:       c.TriggerNodeID,
		TriggerData:         copyMap(c.TriggerData),
		Nodes:               make([]*WorkflowNode, len(c.Nodes)),
		Connections:         make([]*Connection, len(c.Connections)),
		NodeIDToName:        make(map[string]string, len(c.NodeIDToName)),
		Status:              ContextStatusPending,
		StartTime:           startTime,
		SaveToDatabase:      c.SaveToDatabase,
		SingleNodeMode:      c.SingleNodeMode,
		LastCompletedNodeID: c.LastCompletedNodeID,
		NodeOutputs:         make(map[string]Envelope, len(c.NodeOutputs)),
	}

	for i, node := range c.Nodes {
		copied := *node
		copied.Config = copyMap(node.Config)
		clone.Nodes[i] = &copied
	}

	for i, conn := range c.Connections {
		copied := *conn
		clone.Connections[i] = &copied
	}

	for id, name := range c.NodeIDToName {
		clone.NodeIDToName[id] = name
	}

	for nodeID, envelope := range c.NodeOutputs {
		clone.NodeOutputs[nodeID] = envelope.Clone()
	}

	return clone
}

func copyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}

	return dst
}
