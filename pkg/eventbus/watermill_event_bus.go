package eventbus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/node-drop/nodedrop/pkg/events"
)

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber

	mu            sync.RWMutex
	typeHandlers  map[events.EventType]EventHandler
	execHandlers  map[string]map[string]EventHandler // execution id -> subscription id -> handler
	subscriptionN int
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:    pub,
		subscriber:   sub,
		typeHandlers: make(map[events.EventType]EventHandler),
		execHandlers: make(map[string]map[string]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, executionID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.ExecutionIDMetadataKey, executionID)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.typeHandlers[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) SubscribeExecution(executionID string, handler EventHandler) (func(), error) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptionN++
	subscriptionID := watermill.NewShortUUID()

	if eb.execHandlers[executionID] == nil {
		eb.execHandlers[executionID] = make(map[string]EventHandler)
	}

	eb.execHandlers[executionID][subscriptionID] = handler

	unsubscribe := func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		delete(eb.execHandlers[executionID], subscriptionID)
		if len(eb.execHandlers[executionID]) == 0 {
			delete(eb.execHandlers, executionID)
		}
	}

	return unsubscribe, nil
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			event, ok := decodeEvent(msg)
			if !ok {
				msg.Nack()

				continue
			}

			executionID := msg.Metadata.Get(events.ExecutionIDMetadataKey)
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			eb.dispatch(ctx, executionID, eventType, event)
			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, executionID string, eventType events.EventType, event any) {
	eb.mu.RLock()

	typeHandler := eb.typeHandlers[eventType]

	var handlers []EventHandler
	for _, handler := range eb.execHandlers[executionID] {
		handlers = append(handlers, handler)
	}

	eb.mu.RUnlock()

	// Handler errors are not retried: delivery is at-most-once per
	// subscriber and the state store remains the source of truth.
	if typeHandler != nil {
		_ = typeHandler(ctx, event)
	}

	for _, handler := range handlers {
		_ = handler(ctx, event)
	}
}

func decodeEvent(msg *message.Message) (any, bool) {
	var event any

	switch events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey)) {
	case events.NodeStartedEvent:
		event = &events.NodeStarted{}
	case events.NodeCompletedEvent:
		event = &events.NodeCompleted{}
	case events.NodeFailedEvent:
		event = &events.NodeFailed{}
	case events.ExecutionProgressEvent:
		event = &events.ExecutionProgress{}
	case events.ExecutionCompletedEvent:
		event = &events.ExecutionCompleted{}
	case events.ExecutionFailedEvent:
		event = &events.ExecutionFailed{}
	case events.ExecutionCancelledEvent:
		event = &events.ExecutionCancelled{}
	case events.ExecutionLogEvent:
		event = &events.ExecutionLog{}
	default:
		return nil, false
	}

	if err := json.Unmarshal(msg.Payload, event); err != nil {
		return nil, false
	}

	return event, true
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
