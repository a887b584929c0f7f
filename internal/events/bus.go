package events

import (
	"sync"

	"go.uber.org/zap"
)

// Type identifies an event kind on the bus.
type Type string

const (
	OrderFilled    Type = "ORDER_FILLED"
	OrderCancelled Type = "ORDER_CANCELLED"
	StartBot       Type = "START_BOT"
	StopBot        Type = "STOP_BOT"
)

// Handler consumes a published event. A returned error is logged by the bus
// and never reaches the publisher.
type Handler func(data interface{}) error

// subscription wraps a handler with its own mutex so that one subscriber is
// never re-entered concurrently, even when events are published from
// different goroutines.
type subscription struct {
	id      int
	mu      sync.Mutex
	handler Handler
}

// Bus is a process-wide publish/subscribe channel. Publishing delivers to
// subscribers one by one, in subscription order; a failing or panicking
// handler is isolated from its siblings.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]*subscription
	nextID      int
	logger      *zap.SugaredLogger
}

// NewBus creates an empty event bus.
func NewBus(logger *zap.SugaredLogger) *Bus {
	return &Bus{
		subscribers: make(map[Type][]*subscription),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type and returns a token that
// can be passed to Unsubscribe.
func (b *Bus) Subscribe(eventType Type, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler}
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	b.logger.Debugf("Handler %d subscribed to event %s", sub.id, eventType)
	return sub.id
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(eventType Type, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			if len(b.subscribers[eventType]) == 0 {
				delete(b.subscribers, eventType)
			}
			return
		}
	}
	b.logger.Warnf("Attempted to unsubscribe unknown handler %d from event %s", id, eventType)
}

// Clear drops every subscriber for the given event type, or all subscribers
// when no type is given.
func (b *Bus) Clear(eventTypes ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(eventTypes) == 0 {
		b.subscribers = make(map[Type][]*subscription)
		return
	}
	for _, t := range eventTypes {
		delete(b.subscribers, t)
	}
}

// Publish delivers an event to every subscriber in subscription order and
// returns once all handlers have run. Handler errors and panics are logged;
// publish itself never fails. Sequential delivery keeps a fill's balance
// accounting applied before anything downstream reacts to the same event,
// which backtest reproducibility depends on.
func (b *Bus) Publish(eventType Type, data interface{}) {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subscribers[eventType]))
	copy(subs, b.subscribers[eventType])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.safeInvoke(eventType, sub, data)
	}
}

func (b *Bus) safeInvoke(eventType Type, sub *subscription, data interface{}) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("Panic in subscriber %d for event %s: %v", sub.id, eventType, r)
		}
	}()

	if err := sub.handler(data); err != nil {
		b.logger.Errorf("Error in subscriber %d for event %s: %v", sub.id, eventType, err)
	}
}
