package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"roombook/internal/availability"
	"roombook/internal/catalog"
	"roombook/internal/clock"
	"roombook/internal/config"
	"roombook/internal/database"
	"roombook/internal/events"
	"roombook/internal/models"
	"roombook/internal/pricing"
	"roombook/internal/repository"
	"roombook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var bookingDay = time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

func slot(resourceID string, fromHour, toHour int) models.BookingItem {
	return models.BookingItem{
		ResourceID: resourceID,
		Window: models.Window{
			Start: bookingDay.Add(time.Duration(fromHour) * time.Hour),
			End:   bookingDay.Add(time.Duration(toHour) * time.Hour),
		},
		Attendees: 2,
	}
}

func newTestBackend(t *testing.T) *service.ReservationService {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFixed(bookingDay.Add(7 * time.Hour))
	cat := catalog.New(db, &logger)
	require.NoError(t, cat.Provision(context.Background(), []models.Resource{
		{ID: "conf-a", Name: "Conference Room A", Capacity: 8, BaseHourlyRate: 50},
		{ID: "board-room", Name: "Board Room", Capacity: 12, BaseHourlyRate: 75},
	}))

	engine := pricing.NewEngine(config.PricingConfig{TaxRate: 0.0775, Currency: "USD"}, cat, &logger)
	coord := availability.NewCoordinator(db, db, repository.NewMemoryLocker(), clk, config.HoldsConfig{TTL: 10 * time.Minute}, &logger)
	state := service.NewStateService(repository.NewMemoryAttemptRepository(time.Hour), clk, &logger)

	return service.NewReservationService(cat, engine, coord, db, state, service.Integrations{}, events.NewEventBus(), clk, &logger)
}

func openAPI() config.APIConfig {
	return config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
}

func newTestHTTPServer(t *testing.T, cfg config.APIConfig, backend Backend, report Reporter, checks map[string]HealthCheck) *httptest.Server {
	t.Helper()
	logger := zerolog.New(io.Discard)
	srv := NewHTTPServer(cfg, backend, report, checks, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
