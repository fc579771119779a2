package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roombook/internal/availability"
	"roombook/internal/clock"
	"roombook/internal/config"
	"roombook/internal/domain"
	"roombook/internal/events"
	"roombook/internal/metrics"
	"roombook/internal/models"
	"roombook/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type QuoteRequest struct {
	Items        []models.BookingItem `json:"items"`
	CustomerTier string               `json:"customer_tier,omitempty"`
}

type HoldRequest struct {
	Items          []models.BookingItem `json:"items"`
	UserID         string               `json:"user_id,omitempty"`
	CustomerTier   string               `json:"customer_tier,omitempty"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// HoldResult is the caller-facing outcome of CheckAndHold. Conflicts and
// Rejected are always complete per-item lists.
type HoldResult struct {
	AttemptID string              `json:"attempt_id"`
	State     models.AttemptState `json:"state"`
	OK        bool                `json:"ok"`
	Conflicts []models.Conflict   `json:"conflicts"`
	Rejected  []models.Conflict   `json:"rejected,omitempty"`
	HoldID    string              `json:"hold_id,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	Quote     *models.MultiQuote  `json:"quote,omitempty"`
	Replayed  bool                `json:"replayed,omitempty"`
}

// ConfirmRequest converts a hold into a reservation. CalendarEventIDs is
// positional over the hold items; an empty entry asks the service to create
// the event itself.
type ConfirmRequest struct {
	HoldID           string   `json:"hold_id"`
	UserID           string   `json:"user_id,omitempty"`
	PaymentSessionID string   `json:"payment_session_id,omitempty"`
	CalendarEventIDs []string `json:"calendar_event_ids,omitempty"`
}

// Integrations groups the optional external collaborators. Nil members are
// skipped.
type Integrations struct {
	Payments domain.PaymentGateway
	Calendar domain.CalendarService
	Queue    domain.ReconcileQueue
	Alerter  domain.Alerter
}

type ReservationService struct {
	catalog     domain.ResourceCatalog
	pricer      *pricing.Engine
	coordinator *availability.Coordinator
	store       domain.Store
	state       *StateService
	ext         Integrations
	eventBus    domain.EventPublisher
	clock       clock.Clock
	logger      *zerolog.Logger
}

func NewReservationService(
	catalog domain.ResourceCatalog,
	pricer *pricing.Engine,
	coordinator *availability.Coordinator,
	store domain.Store,
	state *StateService,
	ext Integrations,
	eventBus domain.EventPublisher,
	clk clock.Clock,
	logger *zerolog.Logger,
) *ReservationService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReservationService{
		catalog:     catalog,
		pricer:      pricer,
		coordinator: coordinator,
		store:       store,
		state:       state,
		ext:         ext,
		eventBus:    eventBus,
		clock:       clk,
		logger:      logger,
	}
}

// Quote previews prices without side effects.
func (s *ReservationService) Quote(ctx context.Context, req QuoteRequest) (*models.MultiQuote, error) {
	if err := domain.ValidateItems(req.Items); err != nil {
		return nil, err
	}
	return s.pricer.MultiQuote(ctx, req.Items, req.CustomerTier), nil
}

// CheckAvailability exposes the coordinator check for read-only callers.
func (s *ReservationService) CheckAvailability(ctx context.Context, items []models.BookingItem) (*models.Availability, error) {
	return s.coordinator.CheckAvailability(ctx, items)
}

func (s *ReservationService) CheckAndHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	if err := domain.ValidateItems(req.Items); err != nil {
		return nil, err
	}

	attemptID := uuid.NewString()
	attempt := s.state.Start(ctx, attemptID, req.UserID)
	quote := s.pricer.MultiQuote(ctx, req.Items, req.CustomerTier)

	var rejected []models.Conflict
	for _, q := range quote.Items {
		if q.Error != "" {
			rejected = append(rejected, models.Conflict{ResourceID: q.ResourceID, Reason: models.ReasonNotFound})
		}
	}
	if len(rejected) > 0 {
		_ = s.state.Advance(ctx, attempt, func(a *models.Attempt) { a.Reason = "unknown resource" }, models.AttemptAbandoned)
		metrics.IncHold("rejected")
		return &HoldResult{
			AttemptID: attemptID,
			State:     attempt.State,
			Conflicts: []models.Conflict{},
			Rejected:  rejected,
			Quote:     quote,
		}, nil
	}

	res, err := s.coordinator.CheckAndHold(ctx, availability.HoldRequest{
		ID:             attemptID,
		Items:          req.Items,
		UserID:         req.UserID,
		IdempotencyKey: req.IdempotencyKey,
		Quote:          quote,
	})
	if err != nil {
		_ = s.state.Advance(ctx, attempt, func(a *models.Attempt) { a.Reason = err.Error() }, models.AttemptAbandoned)
		metrics.IncHold("error")
		if errors.Is(err, domain.ErrStoreUnavailable) {
			s.logger.Error().Err(err).Msg("Hold failed: store unavailable")
		}
		return nil, err
	}

	if !res.OK {
		s.logger.Info().
			Str("attempt_id", attemptID).
			Interface("conflicts", res.Conflicts).
			Msg("Requested windows are not available")
		_ = s.state.Advance(ctx, attempt, func(a *models.Attempt) { a.Reason = "conflict" },
			models.AttemptAvailabilityChecked, models.AttemptAbandoned)
		metrics.IncHold("conflict")
		s.publish(events.EventAvailabilityConflict, events.ConflictEventPayload{UserID: req.UserID, Conflicts: res.Conflicts})
		return &HoldResult{
			AttemptID: attemptID,
			State:     models.AttemptAbandoned,
			Conflicts: res.Conflicts,
			Quote:     quote,
		}, nil
	}

	if res.Replayed {
		// The attempt belongs to the earlier request.
		s.state.Discard(ctx, attemptID)
		prior := s.state.Load(ctx, res.Hold.ID)
		metrics.IncHold("replayed")
		return s.holdResult(prior, res.Hold, true), nil
	}

	hold := res.Hold
	_ = s.state.Advance(ctx, attempt, func(a *models.Attempt) {
		a.HoldID = hold.ID
		a.ExpiresAt = hold.ExpiresAt
	}, models.AttemptAvailabilityChecked, models.AttemptHeld)

	metrics.IncHold("placed")
	s.publish(events.EventHoldPlaced, events.HoldEventPayload{
		HoldID:    hold.ID,
		UserID:    hold.UserID,
		Items:     hold.Items,
		ExpiresAt: hold.ExpiresAt,
	})
	return s.holdResult(attempt, hold, false), nil
}

func (s *ReservationService) holdResult(attempt *models.Attempt, hold *models.Hold, replayed bool) *HoldResult {
	expires := hold.ExpiresAt
	return &HoldResult{
		AttemptID: hold.ID,
		State:     attempt.State,
		OK:        true,
		Conflicts: []models.Conflict{},
		HoldID:    hold.ID,
		ExpiresAt: &expires,
		Quote:     hold.Quote,
		Replayed:  replayed,
	}
}

// activeHold loads a hold that can still be converted.
func (s *ReservationService) activeHold(ctx context.Context, holdID string) (*models.Hold, error) {
	if holdID == "" {
		return nil, fmt.Errorf("empty hold id: %w", domain.ErrHoldNotFound)
	}
	hold, err := s.store.GetHold(ctx, holdID)
	if err != nil {
		if errors.Is(err, domain.ErrHoldNotFound) {
			return nil, err
		}
		return nil, &domain.StoreError{Op: "get_hold", Items: []string{holdID}, Err: err}
	}
	if hold.Expired(s.clock.Now()) {
		return nil, fmt.Errorf("hold %s expired at %s: %w", holdID, hold.ExpiresAt.Format(time.RFC3339), domain.ErrHoldExpired)
	}
	return hold, nil
}

// StartCheckout opens a payment session for the held quote total.
func (s *ReservationService) StartCheckout(ctx context.Context, holdID string) (*domain.CheckoutSession, error) {
	if s.ext.Payments == nil {
		return nil, errors.New("payments are not configured")
	}
	hold, err := s.activeHold(ctx, holdID)
	if err != nil {
		return nil, err
	}

	quote := hold.Quote
	if quote == nil {
		quote = s.pricer.MultiQuote(ctx, hold.Items, "")
	}

	session, err := s.ext.Payments.CreateCheckoutSession(ctx, hold.ID, quote.Total, quote.Currency, describeHold(hold))
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	attempt := s.state.Load(ctx, hold.ID)
	_ = s.state.Advance(ctx, attempt, func(a *models.Attempt) { a.PaymentSessionID = session.ID },
		models.AttemptAwaitingConfirmation)

	s.logger.Info().Str("hold_id", hold.ID).Str("session_id", session.ID).Float64("amount", session.Amount).Msg("Checkout session created")
	return session, nil
}

func describeHold(hold *models.Hold) string {
	parts := make([]string, 0, len(hold.Items))
	for _, it := range hold.Items {
		parts = append(parts, fmt.Sprintf("%s %s-%s", it.ResourceID,
			it.Window.Start.Format("2006-01-02 15:04"), it.Window.End.Format("15:04")))
	}
	return "Room booking: " + strings.Join(parts, ", ")
}

// Confirm converts a live hold into a confirmed reservation. Repeating a
// successful confirmation returns the same reservation.
func (s *ReservationService) Confirm(ctx context.Context, req ConfirmRequest) (*models.Reservation, error) {
	if req.HoldID == "" {
		return nil, fmt.Errorf("empty hold id: %w", domain.ErrHoldNotFound)
	}

	unlock, err := s.coordinator.LockHold(ctx, req.HoldID)
	if err != nil {
		metrics.IncConfirmation("busy")
		return nil, err
	}
	defer unlock()

	existing, err := s.store.GetReservationByHold(ctx, req.HoldID)
	switch {
	case err == nil && existing.Status == models.StatusConfirmed:
		return existing, nil
	case err == nil && existing.Status == models.StatusCancelled:
		return nil, fmt.Errorf("reservation %s was cancelled: %w", existing.ID, domain.ErrInvalidTransition)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, &domain.StoreError{Op: "get_reservation", Items: []string{req.HoldID}, Err: err}
	}

	hold, err := s.activeHold(ctx, req.HoldID)
	if err != nil {
		unconvertible := errors.Is(err, domain.ErrHoldExpired) || errors.Is(err, domain.ErrHoldNotFound)
		if unconvertible && s.sessionPaid(ctx, req) {
			// The customer paid for a hold that is gone: refund and alert.
			c := &confirmation{svc: s, req: req, hold: &models.Hold{ID: req.HoldID}, paid: true}
			return nil, c.fail(ctx, domain.StageHoldLookup, err)
		}
		if errors.Is(err, domain.ErrHoldExpired) {
			attempt := s.state.Load(ctx, req.HoldID)
			_ = s.state.Advance(ctx, attempt, func(a *models.Attempt) { a.Reason = "hold expired" }, models.AttemptAbandoned)
		}
		metrics.IncConfirmation("rejected")
		return nil, err
	}

	paid := false
	if req.PaymentSessionID != "" && s.ext.Payments != nil {
		ok, err := s.ext.Payments.SessionPaid(ctx, req.PaymentSessionID)
		if err != nil {
			metrics.IncConfirmation("error")
			return nil, fmt.Errorf("failed to verify payment: %w", err)
		}
		if !ok {
			metrics.IncConfirmation("unpaid")
			return nil, fmt.Errorf("session %s: %w", req.PaymentSessionID, domain.ErrPaymentIncomplete)
		}
		paid = true
	}

	c := &confirmation{svc: s, req: req, hold: hold, paid: paid}
	if existing != nil {
		// A previous confirm persisted the reservation but did not finish.
		c.reservation = existing
		return c.finish(ctx)
	}
	return c.run(ctx)
}

// sessionPaid reports whether the request carries a settled payment session.
// A verification error counts as unpaid.
func (s *ReservationService) sessionPaid(ctx context.Context, req ConfirmRequest) bool {
	if req.PaymentSessionID == "" || s.ext.Payments == nil {
		return false
	}
	paid, err := s.ext.Payments.SessionPaid(ctx, req.PaymentSessionID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("hold_id", req.HoldID).
			Str("payment_session_id", req.PaymentSessionID).
			Msg("Failed to verify payment for unconvertible hold")
		return false
	}
	return paid
}

// confirmation tracks the side effects of one Confirm call so a failure can
// report and compensate exactly what was done.
type confirmation struct {
	svc         *ReservationService
	req         ConfirmRequest
	hold        *models.Hold
	paid        bool
	created     []createdEvent
	reservation *models.Reservation
}

type createdEvent struct {
	calendarID string
	eventID    string
}

func (c *confirmation) run(ctx context.Context) (*models.Reservation, error) {
	s := c.svc
	lines, err := c.lineItems(ctx)
	if err != nil {
		return nil, c.fail(ctx, domain.StagePersist, err)
	}

	if err := c.createEvents(ctx, lines); err != nil {
		return nil, c.fail(ctx, domain.StageCalendar, err)
	}

	userID := c.req.UserID
	if userID == "" {
		userID = c.hold.UserID
	}
	currency := s.pricer.Currency()
	if c.hold.Quote != nil && c.hold.Quote.Currency != "" {
		currency = c.hold.Quote.Currency
	}

	now := s.clock.Now()
	reservation := &models.Reservation{
		ID:               uuid.NewString(),
		UserID:           userID,
		Status:           models.StatusPending,
		LineItems:        lines,
		Total:            sumTotals(lines),
		Currency:         currency,
		HoldID:           c.hold.ID,
		PaymentSessionID: c.req.PaymentSessionID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateReservation(ctx, reservation); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return c.converted(ctx, err)
		}
		return nil, c.fail(ctx, domain.StagePersist, domain.NewStoreError("create_reservation", c.hold.Items, err))
	}
	c.reservation = reservation
	return c.finish(ctx)
}

// converted handles a hold that another confirmation persisted first. The
// calendar events made by this call are cancelled. A payment is refunded
// unless the stored reservation carries the same session.
func (c *confirmation) converted(ctx context.Context, cause error) (*models.Reservation, error) {
	s := c.svc
	cur, err := s.store.GetReservationByHold(ctx, c.hold.ID)
	if err != nil {
		cur = nil
	}
	if c.paid && (cur == nil || cur.PaymentSessionID != c.req.PaymentSessionID) {
		return nil, c.fail(ctx, domain.StagePersist, cause)
	}

	cleanupCtx := context.WithoutCancel(ctx)
	for _, ev := range c.created {
		c.enqueue(cleanupCtx, models.TaskCalendarCancel, ev.eventID, models.CalendarCancelPayload{CalendarID: ev.calendarID, EventID: ev.eventID})
	}
	if cur != nil && cur.Status == models.StatusConfirmed {
		s.logger.Info().Str("hold_id", c.hold.ID).Str("reservation_id", cur.ID).Msg("Hold already converted")
		return cur, nil
	}
	metrics.IncConfirmation("rejected")
	return nil, fmt.Errorf("hold %s is being confirmed by another request: %w", c.hold.ID, cause)
}

// finish moves a pending reservation to confirmed and retires the hold.
func (c *confirmation) finish(ctx context.Context) (*models.Reservation, error) {
	s := c.svc
	r := c.reservation
	if err := s.store.UpdateReservationStatus(ctx, r.ID, models.StatusPending, models.StatusConfirmed); err != nil {
		// A concurrent confirm of the same hold may have won the transition.
		if errors.Is(err, domain.ErrInvalidTransition) {
			if cur, gerr := s.store.GetReservation(ctx, r.ID); gerr == nil && cur.Status == models.StatusConfirmed {
				return cur, nil
			}
		}
		return nil, c.fail(ctx, domain.StageConfirm, err)
	}
	r.Status = models.StatusConfirmed
	r.UpdatedAt = s.clock.Now()

	if err := s.store.DeleteHold(ctx, c.hold.ID); err != nil && !errors.Is(err, domain.ErrHoldNotFound) {
		s.logger.Warn().Err(err).Str("hold_id", c.hold.ID).Msg("Failed to delete converted hold")
	}

	attempt := s.state.Load(ctx, c.hold.ID)
	path := []models.AttemptState{models.AttemptConfirmed}
	if attempt.State == models.AttemptHeld {
		path = []models.AttemptState{models.AttemptAwaitingConfirmation, models.AttemptConfirmed}
	}
	_ = s.state.Advance(ctx, attempt, func(a *models.Attempt) {
		a.ReservationID = r.ID
		a.PaymentSessionID = r.PaymentSessionID
	}, path...)

	metrics.IncConfirmation("confirmed")
	s.logger.Info().
		Str("reservation_id", r.ID).
		Str("hold_id", c.hold.ID).
		Float64("total", r.Total).
		Msg("Reservation confirmed")
	s.publish(events.EventReservationConfirmed, events.ReservationEventPayload{Reservation: *r})
	return r, nil
}

// lineItems prices each held item, preferring the quote captured at hold time.
func (c *confirmation) lineItems(ctx context.Context) ([]models.LineItem, error) {
	s := c.svc
	lines := make([]models.LineItem, 0, len(c.hold.Items))
	for i, it := range c.hold.Items {
		li := models.LineItem{ResourceID: it.ResourceID, Window: it.Window, Attendees: it.Attendees}
		if q := c.hold.Quote; q != nil && i < len(q.Items) && q.Items[i].Error == "" {
			li.Breakdown = q.Items[i].Breakdown
		} else {
			res, err := s.catalog.Get(ctx, it.ResourceID)
			if err != nil {
				return nil, err
			}
			li.Breakdown = s.pricer.Quote(res, it, "")
		}
		if i < len(c.req.CalendarEventIDs) {
			li.CalendarEventID = c.req.CalendarEventIDs[i]
		}
		lines = append(lines, li)
	}
	return lines, nil
}

func (c *confirmation) createEvents(ctx context.Context, lines []models.LineItem) error {
	s := c.svc
	if s.ext.Calendar == nil {
		return nil
	}
	for i := range lines {
		if lines[i].CalendarEventID != "" {
			continue
		}
		res, err := s.catalog.Get(ctx, lines[i].ResourceID)
		if err != nil {
			return err
		}
		summary := fmt.Sprintf("%s (hold %s)", res.Name, c.hold.ID)
		eventID, err := s.ext.Calendar.CreateEvent(ctx, res, lines[i], summary)
		if err != nil {
			return fmt.Errorf("failed to create calendar event for %s: %w", res.ID, err)
		}
		lines[i].CalendarEventID = eventID
		c.created = append(c.created, createdEvent{calendarID: res.CalendarID, eventID: eventID})
	}
	return nil
}

// fail undoes what this call created. After a verified payment the failure is
// a PartialFailure: a refund is queued and operators are alerted.
func (c *confirmation) fail(ctx context.Context, stage string, cause error) error {
	s := c.svc
	ctx = context.WithoutCancel(ctx)

	queued := true
	for _, ev := range c.created {
		if !c.enqueue(ctx, models.TaskCalendarCancel, ev.eventID, models.CalendarCancelPayload{CalendarID: ev.calendarID, EventID: ev.eventID}) {
			queued = false
		}
	}
	if c.reservation != nil {
		if err := s.store.UpdateReservationStatus(ctx, c.reservation.ID, models.StatusPending, models.StatusCancelled); err != nil {
			s.logger.Warn().Err(err).Str("reservation_id", c.reservation.ID).Msg("Failed to cancel unconfirmed reservation")
		}
	}

	if !c.paid {
		metrics.IncConfirmation("error")
		s.logger.Error().Err(cause).Str("stage", stage).Str("hold_id", c.hold.ID).Msg("Confirmation failed")
		return fmt.Errorf("confirmation failed at %s: %w", stage, cause)
	}

	if !c.enqueue(ctx, models.TaskPaymentRefund, c.req.PaymentSessionID, models.RefundPayload{
		PaymentSessionID: c.req.PaymentSessionID,
		HoldID:           c.hold.ID,
		Reason:           stage,
	}) {
		queued = false
	}

	pf := &domain.PartialFailureError{
		Stage:              stage,
		HoldID:             c.hold.ID,
		PaymentSessionID:   c.req.PaymentSessionID,
		CompensationQueued: queued,
		Err:                cause,
	}
	if c.reservation != nil {
		pf.ReservationID = c.reservation.ID
	}
	for _, ev := range c.created {
		pf.CalendarEventIDs = append(pf.CalendarEventIDs, ev.eventID)
	}

	metrics.IncConfirmation("partial_failure")
	s.logger.Error().Err(cause).
		Str("stage", stage).
		Str("hold_id", pf.HoldID).
		Str("payment_session_id", pf.PaymentSessionID).
		Bool("compensation_queued", queued).
		Msg("Partial failure after payment")

	attempt := s.state.Load(ctx, c.hold.ID)
	_ = s.state.Advance(ctx, attempt, func(a *models.Attempt) { a.Reason = "partial failure at " + stage }, models.AttemptAbandoned)

	s.publish(events.EventReservationPartialFailure, events.PartialFailurePayload{
		Stage:              stage,
		HoldID:             pf.HoldID,
		ReservationID:      pf.ReservationID,
		PaymentSessionID:   pf.PaymentSessionID,
		CalendarEventIDs:   pf.CalendarEventIDs,
		CompensationQueued: queued,
		Error:              cause.Error(),
	})
	if s.ext.Alerter != nil {
		if err := s.ext.Alerter.Alert(ctx, pf.Error()); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to alert operators")
		}
	}
	return pf
}

func (c *confirmation) enqueue(ctx context.Context, taskType, reference string, payload interface{}) bool {
	s := c.svc
	if s.ext.Queue == nil {
		return false
	}
	if err := s.ext.Queue.EnqueueTask(ctx, taskType, reference, payload); err != nil {
		s.logger.Error().Err(err).Str("task_type", taskType).Str("reference", reference).Msg("Failed to enqueue compensation")
		return false
	}
	return true
}

func sumTotals(lines []models.LineItem) float64 {
	totals := make([]float64, 0, len(lines))
	for _, li := range lines {
		totals = append(totals, li.Breakdown.Total)
	}
	return pricing.Sum(totals...)
}

// Cancel abandons an attempt and releases its hold.
func (s *ReservationService) Cancel(ctx context.Context, holdID string) error {
	if err := s.coordinator.Release(ctx, holdID); err != nil {
		return err
	}
	attempt := s.state.Load(ctx, holdID)
	_ = s.state.Advance(ctx, attempt, func(a *models.Attempt) { a.Reason = "cancelled" }, models.AttemptAbandoned)

	s.publish(events.EventHoldReleased, events.HoldEventPayload{HoldID: holdID, Reason: "cancelled"})
	return nil
}

// SweepExpiredHolds is run by the scheduler.
func (s *ReservationService) SweepExpiredHolds(ctx context.Context) (int64, error) {
	return s.coordinator.SweepExpired(ctx)
}

func (s *ReservationService) GetAttempt(ctx context.Context, id string) (*models.Attempt, error) {
	return s.state.Get(ctx, id)
}

func (s *ReservationService) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, &domain.StoreError{Op: "get_reservation", Items: []string{id}, Err: err}
	}
	return r, nil
}

// ListReservations returns every reservation, or those starting in [from, to)
// when both bounds are set.
func (s *ReservationService) ListReservations(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	var (
		list []*models.Reservation
		err  error
	)
	if from.IsZero() || to.IsZero() {
		list, err = s.store.ListReservations(ctx)
	} else {
		list, err = s.store.ListReservationsBetween(ctx, from, to)
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "list_reservations", Err: err}
	}
	return list, nil
}

func (s *ReservationService) ListResources(ctx context.Context, forceRefresh bool) []*models.Resource {
	return s.catalog.List(ctx, forceRefresh)
}

func (s *ReservationService) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	return s.catalog.Get(ctx, id)
}

func (s *ReservationService) SaveResource(ctx context.Context, res *models.Resource) error {
	if err := config.ValidateResources([]models.Resource{*res}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidResource, err)
	}
	return s.catalog.Save(ctx, res)
}

func (s *ReservationService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}
