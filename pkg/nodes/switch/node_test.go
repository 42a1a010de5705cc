package switchnode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
)

func newSwitch(t *testing.T) *SwitchNode {
	t.Helper()

	node, err := NewSwitchNode("sw-1", map[string]any{
		"value": "{{.input.status}}",
		"cases": []any{
			map[string]any{"value": "active", "output_port": "active"},
			map[string]any{"value": "closed", "output_port": "closed"},
		},
	})
	require.NoError(t, err)

	return node
}

func TestSwitchNode_Execute_MatchingCase(t *testing.T) {
	node := newSwitch(t)

	input := models.SingleItem(models.PortMain, models.Item{"status": "active", "id": 1})

	output, err := node.Execute(context.Background(), input, protocol.ExecutionScope{})
	require.NoError(t, err)

	assert.Equal(t, input.Port(models.PortMain), output.Port("active"))
	assert.Empty(t, output.Port("closed"))
	assert.Empty(t, output.Port(OutputPortDefault))
}

func TestSwitchNode_Execute_DefaultPort(t *testing.T) {
	node := newSwitch(t)

	input := models.SingleItem(models.PortMain, models.Item{"status": "unknown"})

	output, err := node.Execute(context.Background(), input, protocol.ExecutionScope{})
	require.NoError(t, err)

	assert.Equal(t, input.Port(models.PortMain), output.Port(OutputPortDefault))
}

func TestNewSwitchNode_InvalidCases(t *testing.T) {
	_, err := NewSwitchNode("sw-1", map[string]any{
		"value": "{{.input.status}}",
		"cases": []any{map[string]any{"value": "active"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_port")
}
