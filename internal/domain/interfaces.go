package domain

import (
	"context"
	"time"

	"roombook/internal/models"
)

type ResourceStore interface {
	ListResources(ctx context.Context) ([]*models.Resource, error)
	GetResource(ctx context.Context, id string) (*models.Resource, error)
	UpsertResource(ctx context.Context, resource *models.Resource) error
}

type HoldStore interface {
	CreateHold(ctx context.Context, hold *models.Hold) error
	GetHold(ctx context.Context, id string) (*models.Hold, error)
	FindHoldByIdempotencyKey(ctx context.Context, key string) (*models.Hold, error)
	ListHolds(ctx context.Context) ([]*models.Hold, error)
	DeleteHold(ctx context.Context, id string) error
	DeleteExpiredHolds(ctx context.Context, before time.Time) (int64, error)
}

type ReservationStore interface {
	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	GetReservationByHold(ctx context.Context, holdID string) (*models.Reservation, error)
	ListReservations(ctx context.Context) ([]*models.Reservation, error)
	ListReservationsBetween(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id, from, to string) error
}

// Store is the document store the engine runs on.
type Store interface {
	ResourceStore
	HoldStore
	ReservationStore
	Ping(ctx context.Context) error
	Close() error
}

type SyncQueue interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Locker serializes check-and-hold sequences per resource across replicas.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

type AttemptRepository interface {
	GetAttempt(ctx context.Context, id string) (*models.Attempt, error)
	SaveAttempt(ctx context.Context, attempt *models.Attempt) error
	DeleteAttempt(ctx context.Context, id string) error
}

type ResourceCatalog interface {
	List(ctx context.Context, forceRefresh bool) []*models.Resource
	Get(ctx context.Context, id string) (*models.Resource, error)
	Save(ctx context.Context, resource *models.Resource) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// CalendarService creates events on the external resource calendar.
type CalendarService interface {
	CreateEvent(ctx context.Context, resource *models.Resource, item models.LineItem, summary string) (string, error)
	CancelEvent(ctx context.Context, calendarID, eventID string) error
}

type CheckoutSession struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, holdID string, amount float64, currency, description string) (*CheckoutSession, error)
	SessionPaid(ctx context.Context, sessionID string) (bool, error)
	RefundSession(ctx context.Context, sessionID string) error
}

type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// ReconcileQueue accepts compensation and export work for the background worker.
type ReconcileQueue interface {
	EnqueueTask(ctx context.Context, taskType, reference string, payload interface{}) error
}
