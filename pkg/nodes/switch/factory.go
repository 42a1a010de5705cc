package switchnode

import (
	"context"

	"github.com/node-drop/nodedrop/pkg/protocol"
)

// SwitchNodeFactory creates SwitchNode instances.
type SwitchNodeFactory struct{}

// NewSwitchNodeFactory creates a new switch node factory.
func NewSwitchNodeFactory() protocol.NodeFactory {
	return &SwitchNodeFactory{}
}

// Create creates a new SwitchNode instance.
func (f *SwitchNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.NodeExecutor, error) {
	return NewSwitchNode(id, config)
}

// ID returns the factory ID.
func (f *SwitchNodeFactory) ID() string {
	return "switch"
}

// Name returns the factory name.
func (f *SwitchNodeFactory) Name() string {
	return "Switch"
}

// Description returns the factory description.
func (f *SwitchNodeFactory) Description() string {
	return "Routes items to different output ports based on a value expression"
}

// Schema returns the JSON schema for switch node configuration.
func (f *SwitchNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"type":        "string",
				"description": "Expression evaluated against the input envelope",
				"examples":    []string{"{{.input.status}}", "{{.trigger_data.event_type}}"},
			},
			"cases": map[string]any{
				"type":        "array",
				"description": "Case value to output port mappings",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value":       map[string]any{"type": "string"},
						"output_port": map[string]any{"type": "string"},
					},
					"required": []string{"value", "output_port"},
				},
			},
		},
		"required": []string{"value"},
	}
}
