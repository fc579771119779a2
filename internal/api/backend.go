package api

import (
	"context"
	"io"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"
	"roombook/internal/service"
)

// Backend is the reservation surface both transports serve.
type Backend interface {
	Quote(ctx context.Context, req service.QuoteRequest) (*models.MultiQuote, error)
	CheckAvailability(ctx context.Context, items []models.BookingItem) (*models.Availability, error)
	CheckAndHold(ctx context.Context, req service.HoldRequest) (*service.HoldResult, error)
	Cancel(ctx context.Context, holdID string) error
	StartCheckout(ctx context.Context, holdID string) (*domain.CheckoutSession, error)
	Confirm(ctx context.Context, req service.ConfirmRequest) (*models.Reservation, error)
	GetAttempt(ctx context.Context, id string) (*models.Attempt, error)
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	ListReservations(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)
	ListResources(ctx context.Context, forceRefresh bool) []*models.Resource
	GetResource(ctx context.Context, id string) (*models.Resource, error)
	SaveResource(ctx context.Context, res *models.Resource) error
}

// Reporter streams the spreadsheet export.
type Reporter interface {
	Write(ctx context.Context, w io.Writer, from, to time.Time) error
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error
