package transform

import (
	"context"

	"github.com/node-drop/nodedrop/pkg/protocol"
)

// TransformNodeFactory creates TransformNode instances.
type TransformNodeFactory struct{}

// NewTransformNodeFactory creates a new transform node factory.
func NewTransformNodeFactory() protocol.NodeFactory {
	return &TransformNodeFactory{}
}

// Create creates a new TransformNode instance.
func (f *TransformNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.NodeExecutor, error) {
	return NewTransformNode(id, config)
}

// ID returns the factory ID.
func (f *TransformNodeFactory) ID() string {
	return "transform"
}

// Name returns the factory name.
func (f *TransformNodeFactory) Name() string {
	return "Transform"
}

// Description returns the factory description.
func (f *TransformNodeFactory) Description() string {
	return "Transforms incoming data using template expressions"
}

// Schema returns the JSON schema for transform node configuration.
func (f *TransformNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Template expression applied to the input envelope",
				"examples": []string{
					`{"user_name": "{{.input.name}}", "item_count": {{ len .items }}}`,
					"{{ .input.body }}",
				},
			},
		},
		"required": []string{"expression"},
	}
}
