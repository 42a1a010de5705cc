// Package eventbus provides the publish/subscribe channel carrying
// execution lifecycle events between workers and observers.
package eventbus

import (
	"context"

	"github.com/node-drop/nodedrop/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

// EventHandler receives a decoded event. Handlers registered for an
// execution id see only that execution's events.
type EventHandler func(ctx context.Context, event any) error

type EventPublisher interface {
	// Publish sends an event keyed by execution id. Per-execution ordering
	// is preserved; no ordering is guaranteed across executions.
	Publish(ctx context.Context, executionID string, event Event) error
}

type EventSubscriber interface {
	// Handle registers a handler for every event of the given type,
	// regardless of execution.
	Handle(eventType events.EventType, handler EventHandler) error

	// SubscribeExecution registers a handler for all events of one
	// execution, from the point of subscription onward. There is no replay
	// buffer: a reconnecting client reconciles from the state store. The
	// returned function removes the subscription.
	SubscribeExecution(executionID string, handler EventHandler) (func(), error)

	// Subscribe starts consuming the event topic and dispatching to
	// registered handlers. It returns after the consume loop is started.
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
