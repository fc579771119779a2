package models

import (
	"database/sql"
	"time"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// SyncTask is an outbox row consumed by the reconcile worker.
type SyncTask struct {
	ID          int64        `json:"id"`
	TaskType    string       `json:"task_type"`
	Reference   string       `json:"reference"`
	Payload     string       `json:"payload"`
	Status      string       `json:"status"`
	RetryCount  int          `json:"retry_count"`
	LastError   string       `json:"last_error"`
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt sql.NullTime `json:"processed_at"`
	NextRetryAt *time.Time   `json:"next_retry_at"`
}

const (
	TaskLedgerAppend   = "ledger_append"
	TaskPaymentRefund  = "payment_refund"
	TaskCalendarCancel = "calendar_cancel"
)

// RefundPayload asks the worker to refund a paid checkout session.
type RefundPayload struct {
	PaymentSessionID string `json:"payment_session_id"`
	HoldID           string `json:"hold_id"`
	Reason           string `json:"reason"`
}

type CalendarCancelPayload struct {
	CalendarID string `json:"calendar_id"`
	EventID    string `json:"event_id"`
}

type LedgerPayload struct {
	Reservation Reservation `json:"reservation"`
}
