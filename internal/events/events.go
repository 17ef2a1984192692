package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"
)

// Push-channel event types. These mirror what the backend's realtime
// layer emits when a booking changes; the dashboard service subscribes
// and feeds the reconciler.
const (
	EventBookingCreated     = "booking_created"
	EventBookingUpdated     = "booking_updated"
	EventBookingApproved    = "booking_approved"
	EventBookingRejected    = "booking_rejected"
	EventBookingCompleted   = "booking_completed"
	EventBookingRescheduled = "booking_rescheduled"
	EventBookingDeleted     = "booking_deleted"
	EventScreeningRisk      = "screening_risk"
)

// BookingEventPayload carries the full booking snapshot so consumers
// can upsert without a round trip.
type BookingEventPayload struct {
	BookingID string         `json:"booking_id"`
	Booking   models.Booking `json:"booking"`
	ChangedBy string         `json:"changed_by,omitempty"`
}

// ScreeningEventPayload flags a risk submission for staff follow-up.
type ScreeningEventPayload struct {
	StudentID  string `json:"student_id"`
	Instrument string `json:"instrument"`
	Score      int    `json:"score"`
	Severity   string `json:"severity"`
}

// DecodeBookingPayload unmarshals a booking event body.
func DecodeBookingPayload(event *Event) (BookingEventPayload, error) {
	var payload BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return BookingEventPayload{}, err
	}
	return payload, nil
}

// Event is a lightweight in-process event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub. It stands in for the portal's
// push channel: anything that would arrive over the realtime socket is
// published here by the transport layer that owns the connection.
type EventBus struct {
	subscribers map[string][]EventHandler
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

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
