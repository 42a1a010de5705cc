// Package transform provides the data transformation node for workflow graph execution.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
	"github.com/node-drop/nodedrop/pkg/template"
)

// TransformNode reshapes incoming items with a template expression.
type TransformNode struct {
	id         string
	expression string
}

// NewTransformNode creates a new data transformation node.
func NewTransformNode(id string, config map[string]any) (*TransformNode, error) {
	expression, ok := config["expression"].(string)
	if !ok {
		return nil, errors.New("missing required field 'expression'")
	}

	return &TransformNode{
		id:         id,
		expression: expression,
	}, nil
}

// ID returns the node ID.
func (n *TransformNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *TransformNode) Type() string {
	return "transform"
}

// Execute renders the expression against the input envelope. A rendered
// object becomes the output item directly; any other value is wrapped
// under the "result" key.
func (n *TransformNode) Execute(ctx context.Context, input models.Envelope, scope protocol.ExecutionScope) (models.Envelope, error) {
	result, err := template.RenderInput(n.expression, input, scope)
	if err != nil {
		return models.SingleItem(models.PortError, models.Item{
			"error":   fmt.Sprintf("transformation failed: %v", err),
			"success": false,
		}), nil
	}

	var item models.Item
	if obj, ok := result.(map[string]any); ok {
		item = models.Item(obj)
	} else {
		item = models.Item{"result": result}
	}

	return models.SingleItem(models.PortSuccess, item), nil
}
