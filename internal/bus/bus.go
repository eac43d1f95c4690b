// Package bus carries in-process notifications between the viewer components.
package bus

import (
	"sync"
)

// EventType identifies an event.
type EventType string

const (
	// Payload bridge
	EventPayloadReceived  EventType = "payload.received"
	EventEmotionChanged   EventType = "emotion.changed"
	EventVisemesScheduled EventType = "visemes.scheduled"
	EventStatusChanged    EventType = "status.changed"

	// Model lifecycle
	EventModelLoaded EventType = "model.loaded"
	EventModelFailed EventType = "model.failed"

	// Payload sources
	EventSourceConnected    EventType = "source.connected"
	EventSourceDisconnected EventType = "source.disconnected"
)

// Event is a published notification.
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler receives events.
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription struct {
	eventType EventType
	id        uint64
}

type entry struct {
	id      uint64
	handler Handler
}

// EventBus is a pub/sub bus. The zero value is not usable; use New.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]entry
	nextID   uint64
}

// New creates an empty bus.
func New() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]entry),
	}
}

// Subscribe registers handler for eventType.
func (b *EventBus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], entry{id: b.nextID, handler: handler})
	return Subscription{eventType: eventType, id: b.nextID}
}

// SubscribeMultiple registers handler for several event types.
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) []Subscription {
	subs := make([]Subscription, 0, len(eventTypes))
	for _, et := range eventTypes {
		subs = append(subs, b.Subscribe(et, handler))
	}
	return subs
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *EventBus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[sub.eventType]
	for i, e := range list {
		if e.id == sub.id {
			b.handlers[sub.eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (b *EventBus) snapshot(eventType EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := b.handlers[eventType]
	out := make([]Handler, len(list))
	for i, e := range list {
		out[i] = e.handler
	}
	return out
}

// Publish delivers event to every handler on its own goroutine.
// A nil bus drops the event.
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}
	for _, h := range b.snapshot(event.Type) {
		go h(event)
	}
}

// PublishSync delivers event and waits for every handler to return.
func (b *EventBus) PublishSync(event Event) {
	if b == nil {
		return
	}
	var wg sync.WaitGroup
	for _, h := range b.snapshot(event.Type) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(h)
	}
	wg.Wait()
}

// Clear removes all handlers.
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]entry)
}
