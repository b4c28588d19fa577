package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
)

// EventType is an alias to the domain type
type EventType = events.EventType

// EventHandler is a function that handles an event.
// Using the type from ports to ensure interface compatibility.
type EventHandler = ports.EventHandler

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus manages publish-subscribe event system.
// It implements ports.EventPublisher interface.
type EventBus struct {
	handlers map[EventType][]subscription
	nextID   uint64
	mu       sync.RWMutex
}

// Ensure EventBus implements ports.EventPublisher at compile time
var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates a new EventBus instance
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe registers a handler for a specific event type
// Returns an unsubscribe function
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		subs := eb.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				// copy so a concurrent Publish keeps its snapshot intact
				next := make([]subscription, 0, len(subs)-1)
				next = append(next, subs[:i]...)
				eb.handlers[eventType] = append(next, subs[i+1:]...)
				break
			}
		}
	}
}

// Publish runs every handler for the change's event type in subscription
// order. All handlers run; the first error is returned.
func (eb *EventBus) Publish(ctx context.Context, change events.Change) error {
	eb.mu.RLock()
	subs := eb.handlers[change.Event]
	eb.mu.RUnlock()

	var first error
	for _, s := range subs {
		if err := s.handler(ctx, change); err != nil {
			if first == nil {
				first = fmt.Errorf("EventBus handler error for %s: %w", change.Event, err)
			}
			zap.L().Warn("event handler failed", zap.String("event", change.Event.String()), zap.Error(err))
		}
	}
	return first
}
