package models

import "time"

// AttemptState is a step of the booking attempt lifecycle.
type AttemptState string

const (
	AttemptQuoting              AttemptState = "quoting"
	AttemptAvailabilityChecked  AttemptState = "availability_checked"
	AttemptHeld                 AttemptState = "held"
	AttemptAwaitingConfirmation AttemptState = "awaiting_confirmation"
	AttemptConfirmed            AttemptState = "confirmed"
	AttemptAbandoned            AttemptState = "abandoned"
)

// Attempt is the in-progress booking context kept while a caller completes payment.
type Attempt struct {
	ID               string       `json:"id"`
	State            AttemptState `json:"state"`
	UserID           string       `json:"user_id,omitempty"`
	HoldID           string       `json:"hold_id,omitempty"`
	ExpiresAt        time.Time    `json:"expires_at,omitempty"`
	PaymentSessionID string       `json:"payment_session_id,omitempty"`
	ReservationID    string       `json:"reservation_id,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
