package domain

import (
	"errors"
	"fmt"
	"strings"

	"roombook/internal/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrPartialFailure      = errors.New("partial failure")
	ErrInvalidWindow       = errors.New("invalid window")
	ErrHoldNotFound        = errors.New("hold not found")
	ErrHoldExpired         = errors.New("hold expired")
	ErrResourceBusy        = errors.New("resource busy")
	ErrIdempotencyConflict = errors.New("idempotency key reused with different items")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrPaymentIncomplete   = errors.New("payment not completed")
	ErrInvalidResource     = errors.New("invalid resource")
)

// StoreError reports a failed persistence call with the operation and items involved.
type StoreError struct {
	Op    string
	Items []string
	Err   error
}

func (e *StoreError) Error() string {
	if len(e.Items) == 0 {
		return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s [%s]: %v", ErrStoreUnavailable, e.Op, strings.Join(e.Items, ","), e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

func NewStoreError(op string, items []models.BookingItem, err error) *StoreError {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ResourceID)
	}
	return &StoreError{Op: op, Items: ids, Err: err}
}

const (
	StageVerifyPayment = "verify_payment"
	StageHoldLookup    = "hold_lookup"
	StageCalendar      = "calendar"
	StagePersist       = "persist_reservation"
	StageConfirm       = "confirm_reservation"
)

// PartialFailureError is returned when payment succeeded but the reservation
// could not be completed.
type PartialFailureError struct {
	Stage              string
	HoldID             string
	ReservationID      string
	PaymentSessionID   string
	CalendarEventIDs   []string
	CompensationQueued bool
	Err                error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s at %s (hold=%s payment=%s compensation_queued=%t): %v",
		ErrPartialFailure, e.Stage, e.HoldID, e.PaymentSessionID, e.CompensationQueued, e.Err)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Err}
}

// ValidateItems rejects empty batches and non-positive windows before any side effect.
func ValidateItems(items []models.BookingItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidWindow)
	}
	for i, it := range items {
		if it.ResourceID == "" {
			return fmt.Errorf("%w: item %d has no resource id", ErrInvalidWindow, i)
		}
		if !it.Window.Valid() {
			return fmt.Errorf("%w: item %d (%s) end must be after start", ErrInvalidWindow, i, it.ResourceID)
		}
		if it.Attendees < 0 {
			return fmt.Errorf("%w: item %d (%s) has negative attendees", ErrInvalidWindow, i, it.ResourceID)
		}
	}
	return nil
}
