package trigger

import (
	"context"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
)

// ManualTriggerNodeFactory creates ManualTriggerNode instances.
type ManualTriggerNodeFactory struct{}

// NewManualTriggerNodeFactory creates a new manual trigger node factory.
func NewManualTriggerNodeFactory() protocol.NodeFactory {
	return &ManualTriggerNodeFactory{}
}

// Create creates a new ManualTriggerNode instance.
func (f *ManualTriggerNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.NodeExecutor, error) {
	return NewManualTriggerNode(id, config)
}

// ID returns the factory ID.
func (f *ManualTriggerNodeFactory) ID() string {
	return models.NodeTypeTriggerManual
}

// Name returns the factory name.
func (f *ManualTriggerNodeFactory) Name() string {
	return "Manual Trigger"
}

// Description returns the factory description.
func (f *ManualTriggerNodeFactory) Description() string {
	return "Starts workflow execution on direct request"
}

// Schema returns the JSON schema for manual trigger node configuration.
func (f *ManualTriggerNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
