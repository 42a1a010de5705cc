package log

import (
	"context"

	"github.com/node-drop/nodedrop/pkg/protocol"
)

// LogNodeFactory creates LogNode instances.
type LogNodeFactory struct{}

// NewLogNodeFactory creates a new log node factory.
func NewLogNodeFactory() protocol.NodeFactory {
	return &LogNodeFactory{}
}

// Create creates a new LogNode instance.
func (f *LogNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.NodeExecutor, error) {
	return NewLogNode(id, config)
}

// ID returns the factory ID.
func (f *LogNodeFactory) ID() string {
	return "log"
}

// Name returns the factory name.
func (f *LogNodeFactory) Name() string {
	return "Log"
}

// Description returns the factory description.
func (f *LogNodeFactory) Description() string {
	return "Logs a templated message and passes input through unchanged"
}

// Schema returns the JSON schema for log node configuration.
func (f *LogNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. Supports templating against the input envelope",
				"examples": []string{
					"Processing user {{.input.user_id}}",
					"Received {{ len .items }} items",
				},
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}
}
