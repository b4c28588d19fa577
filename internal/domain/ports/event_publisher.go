package ports

import (
	"context"

	"github.com/nexuscrm/salescrm/internal/domain/events"
)

// EventHandler is a function that handles an event
type EventHandler func(ctx context.Context, change events.Change) error

// EventPublisher provides event publishing capabilities.
type EventPublisher interface {
	// Subscribe registers a handler for a specific event type and returns
	// a function that removes it.
	Subscribe(eventType events.EventType, handler EventHandler) func()

	// Publish dispatches an event to all registered handlers.
	Publish(ctx context.Context, change events.Change) error
}

// ChangeRelay carries changes between API instances.
type ChangeRelay interface {
	Publish(ctx context.Context, change events.Change) error
	// Run delivers relayed changes to deliver until ctx is done. ready is
	// called once the relay receives changes.
	Run(ctx context.Context, ready func(), deliver func(events.Change)) error
}
