package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roombook/internal/config"
	"roombook/internal/metrics"
	"roombook/internal/models"
	"roombook/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// HTTPServer exposes the reservation flow as JSON over HTTP.
type HTTPServer struct {
	cfg     config.APIConfig
	backend Backend
	report  Reporter
	checks  map[string]HealthCheck
	server  *http.Server
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, backend Backend, report Reporter, checks map[string]HealthCheck, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:     cfg,
		backend: backend,
		report:  report,
		checks:  checks,
		logger:  logger,
	}
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	auth := newKeyAuth(s.cfg)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Wrap)

		r.Route("/availability", func(r chi.Router) {
			r.Post("/quote", s.handleQuote)
			r.Post("/check", s.handleCheck)
			r.Post("/hold", s.handleHold)
			r.Delete("/hold/{holdID}", s.handleReleaseHold)
		})
		r.Post("/payments/checkout", s.handleCheckout)
		r.Get("/attempts/{id}", s.handleGetAttempt)
		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", s.handleListReservations)
			r.Post("/confirm", s.handleConfirm)
			r.Get("/export", s.handleExport)
			r.Get("/{id}", s.handleGetReservation)
		})
		r.Route("/resources", func(r chi.Router) {
			r.Get("/", s.handleListResources)
			r.Get("/{id}", s.handleGetResource)
			r.Put("/{id}", s.handleSaveResource)
		})
	})
	return r
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	code := http.StatusOK
	result := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			result[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	writeJSON(w, code, map[string]any{"status": http.StatusText(code), "checks": result})
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req service.QuoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	quote, err := s.backend.Quote(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *HTTPServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []models.BookingItem `json:"items"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	availability, err := s.backend.CheckAvailability(r.Context(), req.Items)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func (s *HTTPServer) handleHold(w http.ResponseWriter, r *http.Request) {
	var req service.HoldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	result, err := s.backend.CheckAndHold(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	switch {
	case !result.OK:
		writeJSON(w, http.StatusConflict, result)
	case result.Replayed:
		writeJSON(w, http.StatusOK, result)
	default:
		writeJSON(w, http.StatusCreated, result)
	}
}

func (s *HTTPServer) handleReleaseHold(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Cancel(r.Context(), chi.URLParam(r, "holdID")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HoldID string `json:"hold_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HoldID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "hold_id is required", Code: "bad_request"})
		return
	}
	session, err := s.backend.StartCheckout(r.Context(), req.HoldID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *HTTPServer) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := s.backend.GetAttempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req service.ConfirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HoldID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "hold_id is required", Code: "bad_request"})
		return
	}
	reservation, err := s.backend.Confirm(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	reservation, err := s.backend.GetReservation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r, false)
	if !ok {
		return
	}
	list, err := s.backend.ListReservations(r.Context(), from, to)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.report == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "export is not configured", Code: "not_configured"})
		return
	}
	from, to, ok := parseRange(w, r, true)
	if !ok {
		return
	}

	name := fmt.Sprintf("reservations_%s_to_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if err := s.report.Write(r.Context(), w, from, to); err != nil {
		// Headers may already be sent; the client sees a truncated file.
		s.logger.Error().Err(err).Msg("Export failed")
		s.writeErr(w, r, err)
	}
}

func (s *HTTPServer) handleListResources(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	resources := s.backend.ListResources(r.Context(), refresh)
	if resources == nil {
		resources = []*models.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

func (s *HTTPServer) handleGetResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.backend.GetResource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleSaveResource(w http.ResponseWriter, r *http.Request) {
	var res models.Resource
	if !decodeBody(w, r, &res) {
		return
	}
	id := chi.URLParam(r, "id")
	if res.ID == "" {
		res.ID = id
	}
	if res.ID != id {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "resource id does not match path", Code: "bad_request"})
		return
	}
	if err := s.backend.SaveResource(r.Context(), &res); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code, body := errorResponse(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	writeJSON(w, code, body)
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.IncHTTP(route, strconv.Itoa(status))

		s.logger.Info().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// parseRange reads from/to as RFC 3339 or YYYY-MM-DD. Both are optional
// unless required is set.
func parseRange(w http.ResponseWriter, r *http.Request, required bool) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	from, err := parseTime(q.Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid from: " + err.Error(), Code: "bad_request"})
		return time.Time{}, time.Time{}, false
	}
	to, err := parseTime(q.Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid to: " + err.Error(), Code: "bad_request"})
		return time.Time{}, time.Time{}, false
	}
	if required && (from.IsZero() || to.IsZero()) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "from and to are required", Code: "bad_request"})
		return time.Time{}, time.Time{}, false
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "to must be after from", Code: "invalid_window"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error(), Code: "bad_request"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
