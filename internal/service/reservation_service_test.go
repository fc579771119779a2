package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"roombook/internal/availability"
	"roombook/internal/catalog"
	"roombook/internal/clock"
	"roombook/internal/config"
	"roombook/internal/database"
	"roombook/internal/domain"
	"roombook/internal/events"
	"roombook/internal/models"
	"roombook/internal/pricing"
	"roombook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) CreateCheckoutSession(ctx context.Context, holdID string, amount float64, currency, description string) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, holdID, amount, currency, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockPayments) SessionPaid(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPayments) RefundSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type fakeCalendar struct {
	mu      sync.Mutex
	created []string
	failOn  string
	delay   time.Duration
}

func (c *fakeCalendar) CreateEvent(_ context.Context, res *models.Resource, _ models.LineItem, _ string) (string, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if res.ID == c.failOn {
		return "", errors.New("calendar quota exceeded")
	}
	id := "evt-" + res.ID
	c.created = append(c.created, id)
	return id, nil
}

func (c *fakeCalendar) CancelEvent(context.Context, string, string) error {
	return nil
}

type queuedTask struct {
	taskType  string
	reference string
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
}

func (q *fakeQueue) EnqueueTask(_ context.Context, taskType, reference string, _ interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, queuedTask{taskType: taskType, reference: reference})
	return nil
}

type fakeAlerter struct {
	alerts []string
}

func (a *fakeAlerter) Alert(_ context.Context, text string) error {
	a.alerts = append(a.alerts, text)
	return nil
}

// failingStore injects reservation persistence failures.
type failingStore struct {
	*database.DB
	failCreate bool
	// beforeCreate runs ahead of every insert, e.g. to persist a competing
	// reservation for the same hold.
	beforeCreate func(ctx context.Context, r *models.Reservation)
}

func (s *failingStore) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if s.failCreate {
		return errors.New("disk I/O error")
	}
	if s.beforeCreate != nil {
		s.beforeCreate(ctx, r)
	}
	return s.DB.CreateReservation(ctx, r)
}

// insertWinner makes the next insert lose to a confirmed reservation of the
// same hold paid with sessionID.
func (f *fixture) insertWinner(t *testing.T, sessionID string) string {
	t.Helper()
	winnerID := "res-winner"
	f.store.beforeCreate = func(ctx context.Context, r *models.Reservation) {
		f.store.beforeCreate = nil
		winner := *r
		winner.ID = winnerID
		winner.Status = models.StatusConfirmed
		winner.PaymentSessionID = sessionID
		require.NoError(t, f.store.DB.CreateReservation(ctx, &winner))
	}
	return winnerID
}

var tuesday = time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

func slot(resourceID string, fromHour, toHour int) models.BookingItem {
	return models.BookingItem{
		ResourceID: resourceID,
		Window: models.Window{
			Start: tuesday.Add(time.Duration(fromHour) * time.Hour),
			End:   tuesday.Add(time.Duration(toHour) * time.Hour),
		},
		Attendees: 1,
	}
}

type fixture struct {
	svc      *ReservationService
	store    *failingStore
	attempts *repository.MemoryAttemptRepository
	payments *mockPayments
	calendar *fakeCalendar
	queue    *fakeQueue
	alerter  *fakeAlerter
	events   []string
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		store:    &failingStore{DB: db},
		attempts: repository.NewMemoryAttemptRepository(time.Hour),
		payments: new(mockPayments),
		calendar: &fakeCalendar{},
		queue:    &fakeQueue{},
		alerter:  &fakeAlerter{},
		now:      tuesday.Add(7 * time.Hour),
	}
	clk := clock.Func(func() time.Time { return f.now })

	cat := catalog.New(db, &logger)
	require.NoError(t, cat.Provision(context.Background(), []models.Resource{
		{ID: "conf-a", Name: "Conference Room A", Capacity: 8, BaseHourlyRate: 50, CalendarID: "cal-a"},
		{ID: "board-room", Name: "Board Room", Capacity: 12, BaseHourlyRate: 75, CalendarID: "cal-b"},
	}))

	engine := pricing.NewEngine(config.PricingConfig{TaxRate: 0.0775, Currency: "USD", AttendeeSurcharge: 5}, cat, &logger)
	coord := availability.NewCoordinator(f.store, f.store, repository.NewMemoryLocker(), clk,
		config.HoldsConfig{TTL: 10 * time.Minute}, &logger)

	bus := events.NewEventBus()
	for _, typ := range []string{
		events.EventHoldPlaced, events.EventHoldReleased, events.EventAvailabilityConflict,
		events.EventReservationConfirmed, events.EventReservationPartialFailure,
	} {
		bus.Subscribe(typ, func(e *events.Event) error {
			f.events = append(f.events, e.Type)
			return nil
		})
	}

	f.svc = NewReservationService(cat, engine, coord, f.store,
		NewStateService(f.attempts, clk, &logger),
		Integrations{Payments: f.payments, Calendar: f.calendar, Queue: f.queue, Alerter: f.alerter},
		bus, clk, &logger)
	return f
}

func (f *fixture) hold(t *testing.T, items ...models.BookingItem) *HoldResult {
	t.Helper()
	res, err := f.svc.CheckAndHold(context.Background(), HoldRequest{Items: items, UserID: "user-1"})
	require.NoError(t, err)
	require.True(t, res.OK)
	return res
}

func (f *fixture) attemptState(t *testing.T, id string) models.AttemptState {
	t.Helper()
	a, err := f.attempts.GetAttempt(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.State
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.AttemptQuoting, models.AttemptAvailabilityChecked))
	assert.True(t, CanTransition(models.AttemptAvailabilityChecked, models.AttemptAbandoned))
	assert.True(t, CanTransition(models.AttemptHeld, models.AttemptAwaitingConfirmation))
	assert.True(t, CanTransition(models.AttemptAwaitingConfirmation, models.AttemptConfirmed))

	assert.False(t, CanTransition(models.AttemptQuoting, models.AttemptHeld))
	assert.False(t, CanTransition(models.AttemptHeld, models.AttemptConfirmed))
	assert.False(t, CanTransition(models.AttemptConfirmed, models.AttemptAbandoned))
	assert.False(t, CanTransition(models.AttemptAbandoned, models.AttemptQuoting))
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Quote(ctx, QuoteRequest{Items: []models.BookingItem{slot("conf-a", 9, 11), slot("ghost", 9, 11)}})
	require.NoError(t, err)
	require.Len(t, q.Items, 2)
	assert.Equal(t, 118.53, q.Items[0].Breakdown.Total)
	assert.Equal(t, "resource not found", q.Items[1].Error)
	assert.Equal(t, 0.0, q.Items[1].Breakdown.Total)
	assert.Equal(t, 118.53, q.Total)

	_, err = f.svc.Quote(ctx, QuoteRequest{Items: []models.BookingItem{slot("conf-a", 11, 9)}})
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestCheckAndHold_Success(t *testing.T) {
	f := newFixture(t)

	res := f.hold(t, slot("conf-a", 9, 11))
	assert.Equal(t, models.AttemptHeld, res.State)
	assert.Equal(t, res.HoldID, res.AttemptID)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, f.now.Add(10*time.Minute), *res.ExpiresAt)
	assert.Equal(t, 118.53, res.Quote.Total)
	assert.Equal(t, models.AttemptHeld, f.attemptState(t, res.AttemptID))
	assert.Equal(t, []string{events.EventHoldPlaced}, f.events)
}

func TestCheckAndHold_ConflictIsAbandoned(t *testing.T) {
	f := newFixture(t)
	f.hold(t, slot("conf-a", 9, 11))

	res, err := f.svc.CheckAndHold(context.Background(), HoldRequest{
		Items: []models.BookingItem{slot("conf-a", 10, 12), slot("board-room", 10, 12)},
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, models.AttemptAbandoned, res.State)
	assert.Equal(t, []models.Conflict{{ResourceID: "conf-a", Reason: models.ReasonOnHold}}, res.Conflicts)
	assert.Empty(t, res.HoldID)
	assert.Equal(t, models.AttemptAbandoned, f.attemptState(t, res.AttemptID))
	assert.Contains(t, f.events, events.EventAvailabilityConflict)
}

func TestCheckAndHold_UnknownResourceRejected(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CheckAndHold(context.Background(), HoldRequest{
		Items: []models.BookingItem{slot("conf-a", 9, 10), slot("ghost", 9, 10)},
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, []models.Conflict{{ResourceID: "ghost", Reason: models.ReasonNotFound}}, res.Rejected)

	holds, err := f.store.ListHolds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestCheckAndHold_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := HoldRequest{Items: []models.BookingItem{slot("conf-a", 9, 11)}, IdempotencyKey: "attempt-42"}

	first, err := f.svc.CheckAndHold(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.CheckAndHold(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.OK)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.HoldID, second.HoldID)
	assert.Equal(t, models.AttemptHeld, second.State)
}

func TestStartCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	held := f.hold(t, slot("conf-a", 9, 11))

	f.payments.On("CreateCheckoutSession", mock.Anything, held.HoldID, 118.53, "USD", mock.AnythingOfType("string")).
		Return(&domain.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1", Amount: 118.53, Currency: "USD"}, nil).Once()

	session, err := f.svc.StartCheckout(ctx, held.HoldID)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, models.AttemptAwaitingConfirmation, f.attemptState(t, held.HoldID))
	f.payments.AssertExpectations(t)

	_, err = f.svc.StartCheckout(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
}

func TestConfirm_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	held := f.hold(t, slot("conf-a", 9, 11), slot("board-room", 9, 10))
	f.payments.On("SessionPaid", mock.Anything, "cs_1").Return(true, nil)

	r, err := f.svc.Confirm(ctx, ConfirmRequest{HoldID: held.HoldID, PaymentSessionID: "cs_1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, r.Status)
	assert.Equal(t, "user-1", r.UserID)
	assert.Equal(t, held.HoldID, r.HoldID)
	require.Len(t, r.LineItems, 2)
	assert.Equal(t, "evt-conf-a", r.LineItems[0].CalendarEventID)
	assert.Equal(t, "evt-board-room", r.LineItems[1].CalendarEventID)
	assert.Equal(t, held.Quote.Total, r.Total)

	stored, err := f.svc.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, stored.Status)

	_, err = f.store.GetHold(ctx, held.HoldID)
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
	assert.Equal(t, models.AttemptConfirmed, f.attemptState(t, held.HoldID))
	assert.Contains(t, f.events, events.EventReservationConfirmed)

	again, err := f.svc.Confirm(ctx, ConfirmRequest{HoldID: held.HoldID, PaymentSessionID: "cs_1"})
	require.NoError(t, err)
	assert.Equal(t, r.ID, again.ID)
	assert.Len(t, f.calendar.created, 2)

	// The converted hold is now an existing booking.
	avail, err := f.svc.CheckAvailability(ctx, []models.BookingItem{slot("conf-a", 10, 12)})
	require.NoError(t, err)
	assert.Equal(t, []models.Conflict{{ResourceID: "conf-a", Reason: models.ReasonExistingBooking}}, avail.Conflicts)
}

func TestConfirm_CallerSuppliedEventIDs(t *testing.T) {
	f := newFixture(t)
	held := f.hold(t, slot("conf-a", 9, 11))

	r, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID, CalendarEventIDs: []string{"ext-123"}})
	require.NoError(t, err)
	assert.Equal(t, "ext-123", r.LineItems[0].CalendarEventID)
	assert.Empty(t, f.calendar.created)
}

func TestConfirm_HoldErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, ConfirmRequest{HoldID: "missing"})
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)

	held := f.hold(t, slot("conf-a", 9, 11))
	f.now = f.now.Add(11 * time.Minute)
	_, err = f.svc.Confirm(ctx, ConfirmRequest{HoldID: held.HoldID})
	assert.ErrorIs(t, err, domain.ErrHoldExpired)
	assert.Equal(t, models.AttemptAbandoned, f.attemptState(t, held.HoldID))
}

func TestConfirm_PaymentIncomplete(t *testing.T) {
	f := newFixture(t)
	held := f.hold(t, slot("conf-a", 9, 11))
	f.payments.On("SessionPaid", mock.Anything, "cs_unpaid").Return(false, nil).Once()

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID, PaymentSessionID: "cs_unpaid"})
	assert.ErrorIs(t, err, domain.ErrPaymentIncomplete)
	assert.Empty(t, f.queue.tasks)
}

func TestConfirm_CalendarFailureAfterPayment(t *testing.T) {
	f := newFixture(t)
	held := f.hold(t, slot("conf-a", 9, 11), slot("board-room", 9, 10))
	f.calendar.failOn = "board-room"
	f.payments.On("SessionPaid", mock.Anything, "cs_1").Return(true, nil).Once()

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID, PaymentSessionID: "cs_1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialFailure)

	var pf *domain.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, domain.StageCalendar, pf.Stage)
	assert.Equal(t, held.HoldID, pf.HoldID)
	assert.Equal(t, "cs_1", pf.PaymentSessionID)
	assert.Equal(t, []string{"evt-conf-a"}, pf.CalendarEventIDs)
	assert.True(t, pf.CompensationQueued)

	assert.Equal(t, []queuedTask{
		{taskType: models.TaskCalendarCancel, reference: "evt-conf-a"},
		{taskType: models.TaskPaymentRefund, reference: "cs_1"},
	}, f.queue.tasks)
	require.Len(t, f.alerter.alerts, 1)
	assert.Contains(t, f.alerter.alerts[0], "partial failure")
	assert.Contains(t, f.events, events.EventReservationPartialFailure)
	assert.Equal(t, models.AttemptAbandoned, f.attemptState(t, held.HoldID))
}

func TestConfirm_PersistFailureAfterPayment(t *testing.T) {
	f := newFixture(t)
	held := f.hold(t, slot("conf-a", 9, 11))
	f.store.failCreate = true
	f.payments.On("SessionPaid", mock.Anything, "cs_1").Return(true, nil).Once()

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID, PaymentSessionID: "cs_1"})
	var pf *domain.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, domain.StagePersist, pf.Stage)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Len(t, f.queue.tasks, 2)
}

func TestConfirm_FailureWithoutPaymentIsNotPartial(t *testing.T) {
	f := newFixture(t)
	held := f.hold(t, slot("conf-a", 9, 11))
	f.calendar.failOn = "conf-a"

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrPartialFailure))
	assert.Empty(t, f.alerter.alerts)

	// The hold survives, so the caller can retry.
	f.calendar.failOn = ""
	r, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, r.Status)
}

func TestConfirm_ConcurrentSameHold(t *testing.T) {
	f := newFixture(t)
	held := f.hold(t, slot("conf-a", 9, 11))
	f.calendar.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]*models.Reservation, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, results[0].ID, results[1].ID)

	all, err := f.store.ListReservations(context.Background())
	require.NoError(t, err)
	active := 0
	for _, r := range all {
		if r.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)
	assert.Len(t, f.calendar.created, 1)
}

// A reservation persisted for the hold by a competing request is returned and
// this call's calendar events are withdrawn.
func TestConfirm_HoldAlreadyConverted(t *testing.T) {
	f := newFixture(t)
	held := f.hold(t, slot("conf-a", 9, 11))
	winnerID := f.insertWinner(t, "")

	r, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID})
	require.NoError(t, err)
	assert.Equal(t, winnerID, r.ID)
	assert.Equal(t, []queuedTask{{taskType: models.TaskCalendarCancel, reference: "evt-conf-a"}}, f.queue.tasks)
	assert.Empty(t, f.alerter.alerts)
}

func TestConfirm_HoldConvertedWithOtherPayment(t *testing.T) {
	f := newFixture(t)
	held := f.hold(t, slot("conf-a", 9, 11))
	f.insertWinner(t, "cs_other")
	f.payments.On("SessionPaid", mock.Anything, "cs_1").Return(true, nil).Once()

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID, PaymentSessionID: "cs_1"})
	var pf *domain.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, domain.StagePersist, pf.Stage)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, []queuedTask{
		{taskType: models.TaskCalendarCancel, reference: "evt-conf-a"},
		{taskType: models.TaskPaymentRefund, reference: "cs_1"},
	}, f.queue.tasks)
	assert.Len(t, f.alerter.alerts, 1)
}

func TestConfirm_PaidAfterHoldExpired(t *testing.T) {
	f := newFixture(t)
	held := f.hold(t, slot("conf-a", 9, 11))
	f.now = f.now.Add(11 * time.Minute)
	f.payments.On("SessionPaid", mock.Anything, "cs_1").Return(true, nil).Once()

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: held.HoldID, PaymentSessionID: "cs_1"})
	assert.ErrorIs(t, err, domain.ErrHoldExpired)

	var pf *domain.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, domain.StageHoldLookup, pf.Stage)
	assert.Equal(t, held.HoldID, pf.HoldID)
	assert.True(t, pf.CompensationQueued)
	assert.Equal(t, []queuedTask{{taskType: models.TaskPaymentRefund, reference: "cs_1"}}, f.queue.tasks)
	require.Len(t, f.alerter.alerts, 1)
	assert.Contains(t, f.alerter.alerts[0], "cs_1")
	assert.Contains(t, f.events, events.EventReservationPartialFailure)
	assert.Equal(t, models.AttemptAbandoned, f.attemptState(t, held.HoldID))
	assert.Empty(t, f.calendar.created)
}

func TestConfirm_PaidForMissingHold(t *testing.T) {
	f := newFixture(t)
	f.payments.On("SessionPaid", mock.Anything, "cs_2").Return(true, nil).Once()
	f.payments.On("SessionPaid", mock.Anything, "cs_unpaid").Return(false, nil).Once()

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: "missing", PaymentSessionID: "cs_2"})
	assert.ErrorIs(t, err, domain.ErrPartialFailure)
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
	assert.Equal(t, []queuedTask{{taskType: models.TaskPaymentRefund, reference: "cs_2"}}, f.queue.tasks)

	// Nothing was paid, so nothing is refunded.
	_, err = f.svc.Confirm(context.Background(), ConfirmRequest{HoldID: "missing", PaymentSessionID: "cs_unpaid"})
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
	assert.False(t, errors.Is(err, domain.ErrPartialFailure))
	assert.Len(t, f.queue.tasks, 1)
	assert.Len(t, f.alerter.alerts, 1)
}

func TestNewReservationService_NilLogger(t *testing.T) {
	f := newFixture(t)
	svc := NewReservationService(f.svc.catalog, f.svc.pricer, f.svc.coordinator, f.store, f.svc.state,
		Integrations{}, nil, nil, nil)

	_, err := svc.Confirm(context.Background(), ConfirmRequest{HoldID: "missing"})
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	held := f.hold(t, slot("conf-a", 9, 11))

	require.NoError(t, f.svc.Cancel(ctx, held.HoldID))
	assert.Equal(t, models.AttemptAbandoned, f.attemptState(t, held.HoldID))
	assert.Contains(t, f.events, events.EventHoldReleased)
	assert.ErrorIs(t, f.svc.Cancel(ctx, held.HoldID), domain.ErrHoldNotFound)

	// The slot is free again.
	f.hold(t, slot("conf-a", 9, 11))
}

func TestListReservationsAndResources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	held := f.hold(t, slot("conf-a", 9, 11))
	_, err := f.svc.Confirm(ctx, ConfirmRequest{HoldID: held.HoldID})
	require.NoError(t, err)

	all, err := f.svc.ListReservations(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	none, err := f.svc.ListReservations(ctx, tuesday.AddDate(0, 0, 1), tuesday.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Len(t, f.svc.ListResources(ctx, false), 2)
	err = f.svc.SaveResource(ctx, &models.Resource{ID: "bad", Capacity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidResource)
}
