// Package switchnode provides the multi-way switch node for workflow graph execution.
package switchnode

import (
	"context"
	"errors"
	"fmt"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
	"github.com/node-drop/nodedrop/pkg/template"
)

const OutputPortDefault = "default"

// SwitchNode routes items to different output ports based on a rendered
// value expression.
type SwitchNode struct {
	id    string
	value string
	cases map[string]string // case value -> output port
}

// NewSwitchNode creates a new switch node.
func NewSwitchNode(id string, config map[string]any) (*SwitchNode, error) {
	value, ok := config["value"].(string)
	if !ok {
		return nil, errors.New("missing required field 'value'")
	}

	cases := make(map[string]string)

	if casesConfig, ok := config["cases"].([]any); ok {
		for i, caseAny := range casesConfig {
			caseMap, ok := caseAny.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("case %d must be an object", i)
			}

			caseValue, ok := caseMap["value"].(string)
			if !ok {
				return nil, fmt.Errorf("case %d missing 'value'", i)
			}

			outputPort, ok := caseMap["output_port"].(string)
			if !ok {
				return nil, fmt.Errorf("case %d missing 'output_port'", i)
			}

			cases[caseValue] = outputPort
		}
	}

	return &SwitchNode{
		id:    id,
		value: value,
		cases: cases,
	}, nil
}

// ID returns the node ID.
func (n *SwitchNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *SwitchNode) Type() string {
	return "switch"
}

// Execute renders the value expression and forwards the input items to the
// matching case's output port, or to the default port when no case matches.
func (n *SwitchNode) Execute(ctx context.Context, input models.Envelope, scope protocol.ExecutionScope) (models.Envelope, error) {
	result, err := template.RenderInput(n.value, input, scope)
	if err != nil {
		return models.SingleItem(models.PortError, models.Item{
			"error":   fmt.Sprintf("value evaluation failed: %v", err),
			"success": false,
		}), nil
	}

	valueStr := fmt.Sprintf("%v", result)

	port := OutputPortDefault
	if outputPort, exists := n.cases[valueStr]; exists {
		port = outputPort
	}

	items := input.Port(models.PortMain)
	if len(items) == 0 {
		items = []models.Item{{"matched_value": valueStr}}
	}

	return models.Envelope{port: items}, nil
}
