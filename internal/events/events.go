package events

import (
	"encoding/json"
	"sync"
	"time"

	"roombook/internal/models"
)

const (
	EventHoldPlaced                = "hold_placed"
	EventHoldReleased              = "hold_released"
	EventAvailabilityConflict      = "availability_conflict"
	EventReservationConfirmed      = "reservation_confirmed"
	EventReservationPartialFailure = "reservation_partial_failure"
)

// HoldEventPayload describes a placed or released hold.
type HoldEventPayload struct {
	HoldID    string               `json:"hold_id"`
	UserID    string               `json:"user_id,omitempty"`
	Items     []models.BookingItem `json:"items,omitempty"`
	ExpiresAt time.Time            `json:"expires_at,omitempty"`
	Reason    string               `json:"reason,omitempty"`
}

type ConflictEventPayload struct {
	UserID    string            `json:"user_id,omitempty"`
	Conflicts []models.Conflict `json:"conflicts"`
}

// ReservationEventPayload carries the confirmed reservation as stored.
type ReservationEventPayload struct {
	Reservation models.Reservation `json:"reservation"`
}

type PartialFailurePayload struct {
	Stage              string   `json:"stage"`
	HoldID             string   `json:"hold_id"`
	ReservationID      string   `json:"reservation_id,omitempty"`
	PaymentSessionID   string   `json:"payment_session_id,omitempty"`
	CalendarEventIDs   []string `json:"calendar_event_ids,omitempty"`
	CompensationQueued bool     `json:"compensation_queued"`
	Error              string   `json:"error"`
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

type EventHandler func(event *Event) error

// EventBus is an in-process pub/sub. Handlers run synchronously on the
// publishing goroutine.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	onError     func(event *Event, err error)
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler failures; by default they are dropped.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
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

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
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
