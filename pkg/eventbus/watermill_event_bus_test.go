package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/node-drop/nodedrop/pkg/channels/gochannel"
	"github.com/node-drop/nodedrop/pkg/events"
)

func newTestBus(t *testing.T) *WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

type eventCollector struct {
	mu     sync.Mutex
	events []any
}

func (c *eventCollector) handler(_ context.Context, event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)

	return nil
}

func (c *eventCollector) snapshot() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]any(nil), c.events...)
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("condition not met before deadline")
}

func TestWatermillEventBus_TypeHandler(t *testing.T) {
	bus := newTestBus(t)
	collector := &eventCollector{}

	require.NoError(t, bus.Handle(events.NodeStartedEvent, collector.handler))
	require.NoError(t, bus.Subscribe(context.Background()))

	event := events.NodeStarted{
		BaseEvent: events.NewBaseEvent(events.NodeStartedEvent, "exec-1", "wf-1"),
		NodeID:    "node-a",
	}
	require.NoError(t, bus.Publish(context.Background(), "exec-1", event))

	waitFor(t, func() bool { return len(collector.snapshot()) == 1 })

	received, ok := collector.snapshot()[0].(*events.NodeStarted)
	require.True(t, ok)
	assert.Equal(t, "node-a", received.NodeID)
	assert.Equal(t, "exec-1", received.ExecutionID)
}

func TestWatermillEventBus_ExecutionScopedSubscription(t *testing.T) {
	bus := newTestBus(t)

	mine := &eventCollector{}
	unsubscribe, err := bus.SubscribeExecution("exec-1", mine.handler)
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(context.Background()))

	publish := func(executionID string) {
		event := events.NodeStarted{
			BaseEvent: events.NewBaseEvent(events.NodeStartedEvent, executionID, "wf-1"),
			NodeID:    "node-a",
		}
		require.NoError(t, bus.Publish(context.Background(), executionID, event))
	}

	publish("exec-1")
	publish("exec-2")
	publish("exec-1")

	waitFor(t, func() bool { return len(mine.snapshot()) == 2 })

	for _, raw := range mine.snapshot() {
		received, ok := raw.(*events.NodeStarted)
		require.True(t, ok)
		assert.Equal(t, "exec-1", received.ExecutionID)
	}

	// After unsubscribing no further events are delivered.
	unsubscribe()
	publish("exec-1")
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, mine.snapshot(), 2)
}

func TestWatermillEventBus_OrderPreservedPerExecution(t *testing.T) {
	bus := newTestBus(t)
	collector := &eventCollector{}

	_, err := bus.SubscribeExecution("exec-1", collector.handler)
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(context.Background()))

	started := events.NodeStarted{
		BaseEvent: events.NewBaseEvent(events.NodeStartedEvent, "exec-1", "wf-1"),
		NodeID:    "node-a",
	}
	completed := events.NodeCompleted{
		BaseEvent: events.NewBaseEvent(events.NodeCompletedEvent, "exec-1", "wf-1"),
		NodeID:    "node-a",
	}

	require.NoError(t, bus.Publish(context.Background(), "exec-1", started))
	require.NoError(t, bus.Publish(context.Background(), "exec-1", completed))

	waitFor(t, func() bool { return len(collector.snapshot()) == 2 })

	received := collector.snapshot()
	_, isStarted := received[0].(*events.NodeStarted)
	_, isCompleted := received[1].(*events.NodeCompleted)
	assert.True(t, isStarted)
	assert.True(t, isCompleted)
}
