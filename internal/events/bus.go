// Package events carries case progress between the orchestrator and its
// observers.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous; handlers must not assume ordering across types.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(CaseFinishedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case CaseStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case MeasurementRecordedEvent:
		event.Publish(b.dispatcher, e)
	case CaseFinishedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects the events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(CaseStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MeasurementRecordedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaseFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

