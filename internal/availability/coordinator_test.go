package availability

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"roombook/internal/clock"
	"roombook/internal/config"
	"roombook/internal/database"
	"roombook/internal/domain"
	"roombook/internal/models"
	"roombook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func item(resourceID string, from, to time.Time) models.BookingItem {
	return models.BookingItem{ResourceID: resourceID, Window: models.Window{Start: from, End: to}, Attendees: 1}
}

type fixture struct {
	db     *database.DB
	locker *repository.MemoryLocker
	coord  *Coordinator
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "availability.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{db: db, locker: repository.NewMemoryLocker(), now: at(8, 0)}
	cfg := config.HoldsConfig{TTL: 10 * time.Minute, LockTTL: time.Second, LockWait: 100 * time.Millisecond}
	f.coord = NewCoordinator(db, db, f.locker, clock.Func(func() time.Time { return f.now }), cfg, &logger)
	return f
}

func (f *fixture) reserve(t *testing.T, status string, items ...models.BookingItem) {
	t.Helper()
	r := &models.Reservation{ID: "res-" + status + items[0].Window.Start.Format("1504"), Status: status, CreatedAt: f.now, UpdatedAt: f.now}
	for _, it := range items {
		r.LineItems = append(r.LineItems, models.LineItem{ResourceID: it.ResourceID, Window: it.Window, Attendees: it.Attendees})
	}
	require.NoError(t, f.db.CreateReservation(context.Background(), r))
}

func TestOverlaps(t *testing.T) {
	w := func(a, b int) models.Window { return models.Window{Start: at(a, 0), End: at(b, 0)} }

	assert.True(t, Overlaps(w(9, 11), w(10, 12)))
	assert.True(t, Overlaps(w(9, 12), w(10, 11)))
	assert.False(t, Overlaps(w(9, 10), w(10, 11)), "touching windows do not overlap")
	assert.False(t, Overlaps(w(10, 11), w(9, 10)))
	assert.False(t, Overlaps(w(9, 10), w(12, 13)))
}

// An item inside an existing confirmed reservation yields one "Existing booking".
func TestCheckAvailability_ContainedInReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reserve(t, models.StatusConfirmed, item("conf-a", at(9, 0), at(12, 0)))

	avail, err := f.coord.CheckAvailability(ctx, []models.BookingItem{item("conf-a", at(10, 0), at(11, 0))})
	require.NoError(t, err)
	assert.False(t, avail.OK)
	require.Len(t, avail.Conflicts, 1)
	assert.Equal(t, models.Conflict{ResourceID: "conf-a", Reason: models.ReasonExistingBooking}, avail.Conflicts[0])
}

func TestCheckAvailability_IgnoresCancelledAndOtherResources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reserve(t, models.StatusCancelled, item("conf-a", at(9, 0), at(12, 0)))
	f.reserve(t, models.StatusConfirmed, item("board-room", at(9, 30), at(12, 0)))

	avail, err := f.coord.CheckAvailability(ctx, []models.BookingItem{item("conf-a", at(10, 0), at(11, 0))})
	require.NoError(t, err)
	assert.True(t, avail.OK)
	assert.Empty(t, avail.Conflicts)
}

func TestCheckAvailability_PendingReservationBlocks(t *testing.T) {
	f := newFixture(t)
	f.reserve(t, models.StatusPending, item("conf-a", at(9, 0), at(10, 0)))

	avail, err := f.coord.CheckAvailability(context.Background(), []models.BookingItem{item("conf-a", at(9, 30), at(10, 30))})
	require.NoError(t, err)
	assert.False(t, avail.OK)
}

func TestCheckAvailability_OneConflictPerDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reserve(t, models.StatusConfirmed,
		item("conf-a", at(9, 0), at(10, 0)),
		item("conf-a", at(10, 0), at(11, 0)),
	)
	_, err := f.coord.HoldRooms(ctx, []models.BookingItem{item("conf-a", at(10, 30), at(12, 0))}, nil)
	require.NoError(t, err)

	avail, err := f.coord.CheckAvailability(ctx, []models.BookingItem{
		item("conf-a", at(9, 30), at(10, 45)),
		item("board-room", at(9, 0), at(10, 0)),
	})
	require.NoError(t, err)
	assert.False(t, avail.OK)
	assert.Equal(t, []models.Conflict{
		{ResourceID: "conf-a", Reason: models.ReasonExistingBooking},
		{ResourceID: "conf-a", Reason: models.ReasonOnHold},
	}, avail.Conflicts)
}

// Two holds on disjoint windows do not see each other.
func TestHoldRooms_DisjointWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	morning := []models.BookingItem{item("conf-a", at(9, 0), at(10, 0))}
	noon := []models.BookingItem{item("conf-a", at(10, 0), at(11, 0))}

	h1, err := f.coord.HoldRooms(ctx, morning, nil)
	require.NoError(t, err)
	h2, err := f.coord.HoldRooms(ctx, noon, nil)
	require.NoError(t, err)
	assert.NotEqual(t, h1.ID, h2.ID)
	assert.Equal(t, f.now.Add(10*time.Minute), h1.ExpiresAt)

	stored, err := f.db.ListHolds(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

// A hold that expired in the past never conflicts, even before a sweep.
func TestCheckAvailability_ExpiredHoldIsInert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := []models.BookingItem{item("conf-a", at(9, 0), at(10, 0))}

	past := f.now.Add(-time.Minute)
	hold, err := f.coord.HoldRooms(ctx, items, &past)
	require.NoError(t, err)
	assert.Equal(t, past, hold.ExpiresAt)

	avail, err := f.coord.CheckAvailability(ctx, items)
	require.NoError(t, err)
	assert.True(t, avail.OK)
}

func TestCheckAvailability_HoldExpiresLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := []models.BookingItem{item("conf-a", at(9, 0), at(10, 0))}

	_, err := f.coord.HoldRooms(ctx, items, nil)
	require.NoError(t, err)

	avail, err := f.coord.CheckAvailability(ctx, items)
	require.NoError(t, err)
	assert.False(t, avail.OK)

	f.now = f.now.Add(10 * time.Minute)
	avail, err = f.coord.CheckAvailability(ctx, items)
	require.NoError(t, err)
	assert.True(t, avail.OK, "hold expiring exactly now no longer blocks")
}

func TestCheckAvailability_InvalidWindow(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.CheckAvailability(context.Background(), []models.BookingItem{item("conf-a", at(10, 0), at(10, 0))})
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = f.coord.HoldRooms(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}

// Sequential check-and-hold never produces overlapping holds.
func TestCheckAndHold_Sequential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	requests := [][2]int{{9, 11}, {10, 12}, {11, 12}, {8, 9}, {8, 10}, {12, 14}, {13, 15}}
	var placed []models.Window
	for _, r := range requests {
		res, err := f.coord.CheckAndHold(ctx, HoldRequest{Items: []models.BookingItem{item("conf-a", at(r[0], 0), at(r[1], 0))}})
		require.NoError(t, err)
		if res.OK {
			placed = append(placed, res.Hold.Items[0].Window)
		} else {
			assert.NotEmpty(t, res.Conflicts)
			assert.Nil(t, res.Hold)
		}
	}

	require.Len(t, placed, 4)
	for i := range placed {
		for j := i + 1; j < len(placed); j++ {
			assert.False(t, Overlaps(placed[i], placed[j]), "holds %d and %d overlap", i, j)
		}
	}
}

// Items of one request are checked against each other as well as the active set.
func TestCheckAndHold_OverlappingItemsInOneRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coord.CheckAndHold(ctx, HoldRequest{Items: []models.BookingItem{
		item("conf-a", at(9, 0), at(11, 0)),
		item("conf-a", at(10, 0), at(12, 0)),
	}})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Nil(t, res.Hold)
	assert.Equal(t, []models.Conflict{{ResourceID: "conf-a", Reason: models.ReasonSelfOverlap}}, res.Conflicts)

	stored, err := f.db.ListHolds(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Back-to-back windows and the same window on another room are fine.
	res, err = f.coord.CheckAndHold(ctx, HoldRequest{Items: []models.BookingItem{
		item("conf-a", at(9, 0), at(10, 0)),
		item("conf-a", at(10, 0), at(11, 0)),
		item("conf-b", at(9, 0), at(10, 0)),
	}})
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.NotNil(t, res.Hold)
}

func TestNewCoordinator_NilLogger(t *testing.T) {
	f := newFixture(t)
	coord := NewCoordinator(f.db, f.db, f.locker, nil, config.HoldsConfig{}, nil)

	hold, err := coord.HoldRooms(context.Background(), []models.BookingItem{item("conf-a", at(9, 0), at(10, 0))}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, hold.ID)
}

func TestCheckAndHold_Concurrent(t *testing.T) {
	f := newFixture(t)
	f.coord.cfg.LockWait = 5 * time.Second
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	won, lost := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.coord.CheckAndHold(ctx, HoldRequest{Items: []models.BookingItem{item("conf-a", at(9, 0), at(10, 0))}})
			mu.Lock()
			defer mu.Unlock()
			if assert.NoError(t, err) {
				if res.OK {
					won++
				} else {
					lost++
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, 9, lost)
}

func TestCheckAndHold_ResourceBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.locker.Acquire(ctx, "conf-a", time.Minute)
	require.NoError(t, err)

	_, err = f.coord.CheckAndHold(ctx, HoldRequest{Items: []models.BookingItem{
		item("board-room", at(9, 0), at(10, 0)),
		item("conf-a", at(9, 0), at(10, 0)),
	}})
	assert.ErrorIs(t, err, domain.ErrResourceBusy)

	// The lock taken on board-room before failing was released.
	token, err := f.locker.Acquire(ctx, "board-room", time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestCheckAndHold_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := []models.BookingItem{item("conf-a", at(9, 0), at(10, 0))}

	first, err := f.coord.CheckAndHold(ctx, HoldRequest{Items: items, UserID: "u1", IdempotencyKey: "k1"})
	require.NoError(t, err)
	require.True(t, first.OK)

	again, err := f.coord.CheckAndHold(ctx, HoldRequest{Items: items, UserID: "u1", IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.True(t, again.OK)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Hold.ID, again.Hold.ID)

	_, err = f.coord.CheckAndHold(ctx, HoldRequest{
		Items:          []models.BookingItem{item("conf-a", at(11, 0), at(12, 0))},
		IdempotencyKey: "k1",
	})
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	// Once the hold lapses the key starts a fresh attempt.
	f.now = f.now.Add(11 * time.Minute)
	fresh, err := f.coord.CheckAndHold(ctx, HoldRequest{Items: items, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.True(t, fresh.OK)
	assert.False(t, fresh.Replayed)
	assert.NotEqual(t, first.Hold.ID, fresh.Hold.ID)
}

func TestReleaseAndSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := []models.BookingItem{item("conf-a", at(9, 0), at(10, 0))}

	hold, err := f.coord.HoldRooms(ctx, items, nil)
	require.NoError(t, err)
	require.NoError(t, f.coord.Release(ctx, hold.ID))
	assert.ErrorIs(t, f.coord.Release(ctx, hold.ID), domain.ErrHoldNotFound)

	past := f.now.Add(-time.Second)
	_, err = f.coord.HoldRooms(ctx, items, &past)
	require.NoError(t, err)
	_, err = f.coord.HoldRooms(ctx, items, nil)
	require.NoError(t, err)

	n, err := f.coord.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

type brokenStore struct {
	domain.HoldStore
	domain.ReservationStore
}

var errDown = errors.New("connection refused")

func (brokenStore) ListReservations(context.Context) ([]*models.Reservation, error) {
	return nil, errDown
}

func (brokenStore) CreateHold(context.Context, *models.Hold) error {
	return errDown
}

func TestStoreErrorsPropagate(t *testing.T) {
	logger := zerolog.New(io.Discard)
	store := brokenStore{}
	coord := NewCoordinator(store, store, repository.NewMemoryLocker(), clock.NewFixed(base), config.HoldsConfig{}, &logger)
	items := []models.BookingItem{item("conf-a", at(9, 0), at(10, 0))}

	_, err := coord.CheckAvailability(context.Background(), items)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "check_availability", storeErr.Op)
	assert.Equal(t, []string{"conf-a"}, storeErr.Items)

	_, err = coord.HoldRooms(context.Background(), items, nil)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errDown)
}
