// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/node-drop/nodedrop/pkg/models"
)

// CreateTestNode creates a test WorkflowNode with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:        uuid.New().String(),
		Type:      "log",
		Category:  models.CategoryTypeAction,
		Name:      "Test Node",
		Config:    map[string]any{"message": "test", "level": "info"},
		Enabled:   true,
		PositionX: 100,
		PositionY: 200,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithTriggerNode configures the node as a webhook trigger node.
func WithTriggerNode() func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = models.NodeTypeTriggerWebhook
		n.Category = models.CategoryTypeTrigger
		n.Config = map[string]any{
			"path":   "/webhook/test",
			"method": "POST",
		}
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Name = name
	}
}

// WithEnabled sets the node enabled status.
func WithEnabled(enabled bool) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Enabled = enabled
	}
}

// WithType sets the node type.
func WithType(nodeType string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = nodeType
	}
}

// WithID sets the node ID.
func WithID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// CreateTestConnection creates a main-to-main connection between two nodes.
func CreateTestConnection(sourceNodeID, targetNodeID string) *models.Connection {
	return &models.Connection{
		ID:         uuid.New().String(),
		SourcePort: sourceNodeID + ":" + models.PortMain,
		TargetPort: targetNodeID + ":" + models.PortMain,
	}
}

// CreateTestExecutionContext creates a pending execution context over the
// given graph, triggered by the first trigger-category node.
func CreateTestExecutionContext(nodes []*models.WorkflowNode, connections []*models.Connection) *models.ExecutionContext {
	triggerID := ""

	for _, node := range nodes {
		if node.IsTriggerNode() {
			triggerID = node.ID

			break
		}
	}

	return &models.ExecutionContext{
		ExecutionID:   uuid.New().String(),
		WorkflowID:    uuid.New().String(),
		TriggerNodeID: triggerID,
		Nodes:         nodes,
		Connections:   connections,
		Status:        models.ContextStatusPending,
		StartTime:     time.Now().UTC(),
	}
}
