package events

import (
	"time"

	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous: subscribers run on the dispatcher's goroutines.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Now formats the current time the way every event Timestamp field expects.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Publish publishes an event to all subscribers.
// A nil bus drops the event, which lets components run without one in tests.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case SceneCreatedEvent:
		event.Publish(b.dispatcher, e)
	case SceneRenamedEvent:
		event.Publish(b.dispatcher, e)
	case SceneDeletedEvent:
		event.Publish(b.dispatcher, e)
	case ActiveSceneChangedEvent:
		event.Publish(b.dispatcher, e)
	case SourceAddedEvent:
		event.Publish(b.dispatcher, e)
	case SourceUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case SourceRemovedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceBindingEvent:
		event.Publish(b.dispatcher, e)
	case DeviceDiscoveryEvent:
		event.Publish(b.dispatcher, e)
	case SessionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case SessionStatsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e SourceAddedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SceneCreatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SceneRenamedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SceneDeletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ActiveSceneChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SourceAddedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SourceUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SourceRemovedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceBindingEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceDiscoveryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
