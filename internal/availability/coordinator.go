package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"roombook/internal/clock"
	"roombook/internal/config"
	"roombook/internal/domain"
	"roombook/internal/metrics"
	"roombook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const lockRetryInterval = 25 * time.Millisecond

// HoldRequest is the input of the atomic check-and-hold.
type HoldRequest struct {
	// ID is used as the hold id when set.
	ID             string
	Items          []models.BookingItem
	UserID         string
	IdempotencyKey string
	ExpiresAt      *time.Time
	Quote          *models.MultiQuote
}

type HoldResult struct {
	OK        bool
	Conflicts []models.Conflict
	Hold      *models.Hold
	// Replayed is set when an earlier hold with the same idempotency key was returned.
	Replayed bool
}

// Coordinator answers availability questions over the active set (non-cancelled
// reservations plus unexpired holds) and places holds.
type Coordinator struct {
	holds        domain.HoldStore
	reservations domain.ReservationStore
	locker       domain.Locker
	clock        clock.Clock
	cfg          config.HoldsConfig
	logger       *zerolog.Logger
}

func NewCoordinator(
	holds domain.HoldStore,
	reservations domain.ReservationStore,
	locker domain.Locker,
	clk clock.Clock,
	cfg config.HoldsConfig,
	logger *zerolog.Logger,
) *Coordinator {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 2 * time.Second
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Coordinator{
		holds:        holds,
		reservations: reservations,
		locker:       locker,
		clock:        clk,
		cfg:          cfg,
		logger:       logger,
	}
}

// Overlaps is the half-open interval test used for every conflict decision.
func Overlaps(a, b models.Window) bool {
	return a.Overlaps(b)
}

// activeDoc is one reservation or hold, reduced to its windows on a single resource.
type activeDoc struct {
	reason  string
	windows []models.Window
}

func (d activeDoc) overlaps(w models.Window) bool {
	for _, existing := range d.windows {
		if Overlaps(w, existing) {
			return true
		}
	}
	return false
}

// CheckAvailability scans the complete active set. Each existing reservation
// or hold yields at most one conflict per requested item.
func (c *Coordinator) CheckAvailability(ctx context.Context, items []models.BookingItem) (*models.Availability, error) {
	if err := domain.ValidateItems(items); err != nil {
		return nil, err
	}
	return c.check(ctx, items)
}

func (c *Coordinator) check(ctx context.Context, items []models.BookingItem) (*models.Availability, error) {
	index, err := c.activeIndex(ctx, items)
	if err != nil {
		return nil, err
	}

	result := &models.Availability{Conflicts: []models.Conflict{}}
	for i, item := range items {
		for _, earlier := range items[:i] {
			if earlier.ResourceID == item.ResourceID && Overlaps(earlier.Window, item.Window) {
				result.Conflicts = append(result.Conflicts, models.Conflict{ResourceID: item.ResourceID, Reason: models.ReasonSelfOverlap})
				metrics.IncConflict(models.ReasonSelfOverlap)
				break
			}
		}
		for _, doc := range index[item.ResourceID] {
			if !doc.overlaps(item.Window) {
				continue
			}
			result.Conflicts = append(result.Conflicts, models.Conflict{ResourceID: item.ResourceID, Reason: doc.reason})
			metrics.IncConflict(doc.reason)
		}
	}
	result.OK = len(result.Conflicts) == 0
	return result, nil
}

// activeIndex groups the active set by resource id. Only resources present in
// items are indexed.
func (c *Coordinator) activeIndex(ctx context.Context, items []models.BookingItem) (map[string][]activeDoc, error) {
	wanted := make(map[string]bool, len(items))
	for _, it := range items {
		wanted[it.ResourceID] = true
	}

	reservations, err := c.reservations.ListReservations(ctx)
	if err != nil {
		return nil, domain.NewStoreError("check_availability", items, err)
	}
	holds, err := c.holds.ListHolds(ctx)
	if err != nil {
		return nil, domain.NewStoreError("check_availability", items, err)
	}

	index := make(map[string][]activeDoc)
	add := func(reason string, entries []models.BookingItem) {
		byResource := make(map[string][]models.Window)
		var order []string
		for _, e := range entries {
			if !wanted[e.ResourceID] {
				continue
			}
			if _, seen := byResource[e.ResourceID]; !seen {
				order = append(order, e.ResourceID)
			}
			byResource[e.ResourceID] = append(byResource[e.ResourceID], e.Window)
		}
		for _, id := range order {
			index[id] = append(index[id], activeDoc{reason: reason, windows: byResource[id]})
		}
	}

	for _, r := range reservations {
		if !r.Active() {
			continue
		}
		entries := make([]models.BookingItem, 0, len(r.LineItems))
		for _, li := range r.LineItems {
			entries = append(entries, models.BookingItem{ResourceID: li.ResourceID, Window: li.Window})
		}
		add(models.ReasonExistingBooking, entries)
	}

	// Lazy expiry: an expired hold is inert whether or not it was swept.
	now := c.clock.Now()
	for _, h := range holds {
		if h.Expired(now) {
			continue
		}
		add(models.ReasonOnHold, h.Items)
	}
	return index, nil
}

// HoldRooms writes a hold without checking availability. expiresAt defaults to
// now plus the hold TTL; an explicit value is stored as given.
func (c *Coordinator) HoldRooms(ctx context.Context, items []models.BookingItem, expiresAt *time.Time) (*models.Hold, error) {
	if err := domain.ValidateItems(items); err != nil {
		return nil, err
	}
	return c.createHold(ctx, HoldRequest{Items: items, ExpiresAt: expiresAt})
}

func (c *Coordinator) createHold(ctx context.Context, req HoldRequest) (*models.Hold, error) {
	now := c.clock.Now()
	expires := now.Add(c.cfg.TTL)
	if req.ExpiresAt != nil {
		expires = *req.ExpiresAt
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	hold := &models.Hold{
		ID:             id,
		Items:          req.Items,
		UserID:         req.UserID,
		IdempotencyKey: req.IdempotencyKey,
		Quote:          req.Quote,
		CreatedAt:      now,
		ExpiresAt:      expires,
	}
	if err := c.holds.CreateHold(ctx, hold); err != nil {
		return nil, domain.NewStoreError("hold_rooms", req.Items, err)
	}

	c.logger.Debug().
		Str("hold_id", hold.ID).
		Int("items", len(hold.Items)).
		Time("expires_at", hold.ExpiresAt).
		Msg("Hold placed")
	return hold, nil
}

// CheckAndHold runs check and hold while owning every involved resource lock,
// so two callers cannot both pass the check for the same slot.
func (c *Coordinator) CheckAndHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	if err := domain.ValidateItems(req.Items); err != nil {
		return nil, err
	}

	release, err := c.lockResources(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	defer release()

	if req.IdempotencyKey != "" {
		existing, err := c.replay(ctx, req)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &HoldResult{OK: true, Conflicts: []models.Conflict{}, Hold: existing, Replayed: true}, nil
		}
	}

	avail, err := c.check(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if !avail.OK {
		return &HoldResult{OK: false, Conflicts: avail.Conflicts}, nil
	}

	hold, err := c.createHold(ctx, req)
	if err != nil {
		return nil, err
	}
	return &HoldResult{OK: true, Conflicts: avail.Conflicts, Hold: hold}, nil
}

// replay returns the unexpired hold previously placed under the request's
// idempotency key.
func (c *Coordinator) replay(ctx context.Context, req HoldRequest) (*models.Hold, error) {
	existing, err := c.holds.FindHoldByIdempotencyKey(ctx, req.IdempotencyKey)
	if errors.Is(err, domain.ErrHoldNotFound) || errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStoreError("find_hold", req.Items, err)
	}
	if existing == nil || existing.Expired(c.clock.Now()) {
		return nil, nil
	}
	if !sameItems(existing.Items, req.Items) {
		return nil, fmt.Errorf("key %s: %w", req.IdempotencyKey, domain.ErrIdempotencyConflict)
	}
	return existing, nil
}

func sameItems(a, b []models.BookingItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ResourceID != b[i].ResourceID ||
			!a[i].Window.Start.Equal(b[i].Window.Start) ||
			!a[i].Window.End.Equal(b[i].Window.End) ||
			a[i].Attendees != b[i].Attendees {
			return false
		}
	}
	return true
}

// lockResources acquires one lease per distinct resource in sorted order and
// returns a function releasing all of them.
func (c *Coordinator) lockResources(ctx context.Context, items []models.BookingItem) (func(), error) {
	seen := make(map[string]bool, len(items))
	keys := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it.ResourceID] {
			seen[it.ResourceID] = true
			keys = append(keys, it.ResourceID)
		}
	}
	sort.Strings(keys)

	type held struct{ key, token string }
	acquired := make([]held, 0, len(keys))
	releaseAll := func() {
		releaseCtx := context.WithoutCancel(ctx)
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := c.locker.Release(releaseCtx, acquired[i].key, acquired[i].token); err != nil {
				c.logger.Warn().Err(err).Str("resource_id", acquired[i].key).Msg("Failed to release resource lock")
			}
		}
	}

	start := time.Now()
	deadline := start.Add(c.cfg.LockWait)
	for _, key := range keys {
		token, err := c.acquire(ctx, key, deadline)
		if err != nil {
			releaseAll()
			return nil, err
		}
		acquired = append(acquired, held{key: key, token: token})
	}
	metrics.ObserveLockWait(time.Since(start).Seconds())
	return releaseAll, nil
}

// LockHold takes the lease serialising confirmations of one hold. The returned
// function releases it.
func (c *Coordinator) LockHold(ctx context.Context, holdID string) (func(), error) {
	key := "hold:" + holdID
	token, err := c.acquire(ctx, key, time.Now().Add(c.cfg.LockWait))
	if err != nil {
		return nil, err
	}
	return func() {
		if err := c.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			c.logger.Warn().Err(err).Str("hold_id", holdID).Msg("Failed to release hold lock")
		}
	}, nil
}

func (c *Coordinator) acquire(ctx context.Context, key string, deadline time.Time) (string, error) {
	for {
		token, err := c.locker.Acquire(ctx, key, c.cfg.LockTTL)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, domain.ErrResourceBusy) {
			return "", fmt.Errorf("failed to lock resource %s: %w", key, err)
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("resource %s: %w", key, domain.ErrResourceBusy)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// Release deletes a hold ahead of its expiry.
func (c *Coordinator) Release(ctx context.Context, holdID string) error {
	if err := c.holds.DeleteHold(ctx, holdID); err != nil {
		if errors.Is(err, domain.ErrHoldNotFound) {
			return err
		}
		return &domain.StoreError{Op: "release_hold", Items: []string{holdID}, Err: err}
	}
	return nil
}

// SweepExpired removes holds that have already expired. Correctness does not
// depend on it.
func (c *Coordinator) SweepExpired(ctx context.Context) (int64, error) {
	n, err := c.holds.DeleteExpiredHolds(ctx, c.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired holds: %w", err)
	}
	if n > 0 {
		metrics.AddSweptHolds(n)
		c.logger.Info().Int64("count", n).Msg("Expired holds swept")
	}
	return n, nil
}
