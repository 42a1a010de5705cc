// Package trigger provides the trigger node implementations that start
// workflow graph executions.
package trigger

import (
	"context"
	"time"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
)

// ManualTriggerNode starts executions requested directly through the API.
type ManualTriggerNode struct {
	id string
}

// NewManualTriggerNode creates a new manual trigger node.
func NewManualTriggerNode(id string, config map[string]any) (*ManualTriggerNode, error) {
	return &ManualTriggerNode{id: id}, nil
}

// ID returns the node ID.
func (n *ManualTriggerNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *ManualTriggerNode) Type() string {
	return models.NodeTypeTriggerManual
}

// Execute emits the trigger payload as the first item of the run.
func (n *ManualTriggerNode) Execute(ctx context.Context, input models.Envelope, scope protocol.ExecutionScope) (models.Envelope, error) {
	item := models.Item{
		"triggered_at": time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range scope.TriggerData {
		item[k] = v
	}

	return models.SingleItem(models.PortMain, item), nil
}
