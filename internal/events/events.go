package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types published after a mutation has been persisted.
const (
	TypeVoteCommitted  = "vote.committed"
	TypeTopicsAdded    = "topics.added"
	TypeTopicsRemoved  = "topics.removed"
	TypeBookingCreated = "booking.created"
	TypeBookingRenamed = "booking.renamed"
	TypeLayoutChanged  = "layout.changed"
	TypeStoreCleared   = "store.cleared"
	TypeFinalized      = "schedule.finalized"
)

// Event represents a lightweight domain event.
type Event struct {
	Type          string
	ParticipantID int64
	Payload       []byte
	CreatedAt     time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	any         []EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.any = append(b.any, handler)
}

// Publish notifies subscribers of the event type and returns the first handler error.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.any...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var first error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON encodes payload and publishes it under evType.
func (b *EventBus) PublishJSON(evType string, participantID int64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Publish(Event{Type: evType, ParticipantID: participantID, Payload: data})
}
