package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/node-drop/nodedrop/pkg/models"
)

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(NodeStartedEvent, "exec-1", "wf-1")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, NodeStartedEvent, base.Type)
	assert.Equal(t, "exec-1", base.ExecutionID)
	assert.Equal(t, "wf-1", base.WorkflowID)
	assert.False(t, base.Timestamp.IsZero())
}

func TestNodeCompleted_RoundTrip(t *testing.T) {
	event := NodeCompleted{
		BaseEvent: NewBaseEvent(NodeCompletedEvent, "exec-1", "wf-1"),
		NodeID:    "node-a",
		NodeName:  "Fetch",
		Output:    models.SingleItem(models.PortMain, models.Item{"status": "ok"}),
		ActiveConnections: []ActiveConnection{
			{
				ConnectionID: "c1",
				SourceNodeID: "node-a",
				SourcePort:   models.PortMain,
				TargetNodeID: "node-b",
				TargetPort:   models.PortMain,
			},
		},
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded NodeCompleted
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, event.NodeID, decoded.NodeID)
	require.Len(t, decoded.ActiveConnections, 1)
	assert.Equal(t, "node-b", decoded.ActiveConnections[0].TargetNodeID)
	assert.Equal(t, "ok", decoded.Output[models.PortMain][0]["status"])
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, NodeFailedEvent, NodeFailed{}.GetType())
	assert.Equal(t, ExecutionProgressEvent, ExecutionProgress{}.GetType())
	assert.Equal(t, ExecutionCompletedEvent, ExecutionCompleted{}.GetType())
	assert.Equal(t, ExecutionFailedEvent, ExecutionFailed{}.GetType())
	assert.Equal(t, ExecutionCancelledEvent, ExecutionCancelled{}.GetType())
	assert.Equal(t, ExecutionLogEvent, ExecutionLog{}.GetType())
}
