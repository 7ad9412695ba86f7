package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
)

const (
	EventBookingCreated = "booking_created"
	EventBookingDeleted = "booking_deleted"
	EventScanRejected   = "scan_rejected"
)

// BookingEventPayload describes the booking snapshot for event consumers.
type BookingEventPayload struct {
	Booking models.Reservation `json:"booking"`
	Source  string             `json:"source"`
	Total   int                `json:"total"`
	At      time.Time          `json:"at"`
}

// ScanRejectedPayload is published when a scanned code fails to decode.
type ScanRejectedPayload struct {
	Kind   string    `json:"kind"`
	Field  string    `json:"field,omitempty"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Event is a booking lifecycle notification with a JSON payload.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus is a synchronous in-process pub/sub. A failing handler does not stop
// the others; its error goes to the OnError hook.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
	all         []EventHandler
	onError     func(event *Event, err error)
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

// SubscribeAll registers a handler that sees every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// OnError sets the hook that receives handler failures.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Publish runs typed subscribers first, then catch-all ones.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON marshals payload and publishes it as eventType. A nil bus is a
// no-op.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	if b == nil {
		return nil
	}

	evt, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&evt)
	return nil
}

// NewJSONEvent builds an Event without publishing it.
func NewJSONEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
