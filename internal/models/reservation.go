package models

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	ReasonExistingBooking = "Existing booking"
	ReasonOnHold          = "On hold by another user"
	ReasonNotFound        = "Resource not found"
	ReasonSelfOverlap     = "Overlaps another item in the same request"
)

// BookingItem is a requested (resource, window, attendees) triple.
type BookingItem struct {
	ResourceID string           `json:"resource_id"`
	Window     Window           `json:"window"`
	Attendees  int              `json:"attendees"`
	AddOns     []AddOnSelection `json:"add_ons,omitempty"`
}

// Hold is a short-lived provisional claim on one or more windows.
type Hold struct {
	ID             string        `json:"id"`
	Items          []BookingItem `json:"items"`
	UserID         string        `json:"user_id,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	Quote          *MultiQuote   `json:"quote,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
}

// Expired reports whether the hold no longer blocks availability at now.
func (h *Hold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

type LineItem struct {
	ResourceID      string         `json:"resource_id"`
	Window          Window         `json:"window"`
	Attendees       int            `json:"attendees"`
	Breakdown       PriceBreakdown `json:"breakdown"`
	CalendarEventID string         `json:"calendar_event_id,omitempty"`
}

type Reservation struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Status           string     `json:"status"`
	LineItems        []LineItem `json:"line_items"`
	Total            float64    `json:"total"`
	Currency         string     `json:"currency"`
	HoldID           string     `json:"hold_id,omitempty"`
	PaymentSessionID string     `json:"payment_session_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Active reports whether the reservation blocks availability.
func (r *Reservation) Active() bool {
	return r.Status != StatusCancelled
}

type Conflict struct {
	ResourceID string `json:"resource_id"`
	Reason     string `json:"reason"`
}

type Availability struct {
	OK        bool       `json:"ok"`
	Conflicts []Conflict `json:"conflicts"`
}
