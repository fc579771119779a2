package catalog

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"roombook/internal/database"
	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	mu        sync.Mutex
	resources map[string]*models.Resource
	err       error
	lists     int
}

func newFlakyStore(resources ...*models.Resource) *flakyStore {
	s := &flakyStore{resources: make(map[string]*models.Resource)}
	for _, r := range resources {
		s.resources[r.ID] = r
	}
	return s
}

func (s *flakyStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *flakyStore) ListResources(context.Context) ([]*models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*models.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, r)
	}
	return out, nil
}

func (s *flakyStore) GetResource(_ context.Context, id string) (*models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.resources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (s *flakyStore) UpsertResource(_ context.Context, r *models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.resources[r.ID] = r
	return nil
}

func nopLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func ids(resources []*models.Resource) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.ID)
	}
	return out
}

func TestList_EmptyStoreServesSeed(t *testing.T) {
	c := New(newFlakyStore(), nopLogger())

	got := c.List(context.Background(), false)
	assert.ElementsMatch(t, []string{"huddle-room", "conf-a", "board-room", "training-hall"}, ids(got))

	res, err := c.Get(context.Background(), "conf-a")
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.BaseHourlyRate)
}

func TestSeed_CoversCapacityTiers(t *testing.T) {
	var small, medium, large bool
	for _, r := range Seed() {
		switch {
		case r.Capacity <= 4:
			small = true
		case r.Capacity <= 10:
			medium = true
		default:
			large = true
		}
	}
	assert.True(t, small && medium && large)
}

func TestList_CachesUntilInvalidated(t *testing.T) {
	store := newFlakyStore(&models.Resource{ID: "r1", Name: "One", Capacity: 4, BaseHourlyRate: 40})
	c := New(store, nopLogger())
	ctx := context.Background()

	c.List(ctx, false)
	c.List(ctx, false)
	assert.Equal(t, 1, store.lists)

	c.List(ctx, true)
	assert.Equal(t, 2, store.lists)

	require.NoError(t, c.Save(ctx, &models.Resource{ID: "r2", Name: "Two", Capacity: 6, BaseHourlyRate: 60}))
	got := c.List(ctx, false)
	assert.Equal(t, 3, store.lists)
	assert.ElementsMatch(t, []string{"r1", "r2"}, ids(got))
}

func TestList_StoreDownServesSnapshot(t *testing.T) {
	store := newFlakyStore(&models.Resource{ID: "r1", Name: "One", Capacity: 4, BaseHourlyRate: 40})
	c := New(store, nopLogger())
	ctx := context.Background()

	c.List(ctx, false)
	store.setErr(errors.New("connection refused"))

	got := c.List(ctx, true)
	assert.Equal(t, []string{"r1"}, ids(got))

	res, err := c.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "One", res.Name)
}

func TestList_StoreDownWithoutSnapshotServesSeed(t *testing.T) {
	store := newFlakyStore()
	store.setErr(errors.New("connection refused"))
	c := New(store, nopLogger())

	got := c.List(context.Background(), false)
	assert.Len(t, got, len(Seed()))
}

func TestGet_NotFound(t *testing.T) {
	c := New(newFlakyStore(&models.Resource{ID: "r1"}), nopLogger())

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSave_Failure(t *testing.T) {
	store := newFlakyStore()
	store.setErr(errors.New("disk full"))
	c := New(store, nopLogger())

	err := c.Save(context.Background(), &models.Resource{ID: "r1"})
	assert.Error(t, err)
}

func TestRedisMirror(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	warm := New(newFlakyStore(&models.Resource{ID: "r1", Name: "One"}), nopLogger(), WithRedisMirror(client, time.Minute))
	warm.List(ctx, false)
	assert.True(t, mr.Exists(mirrorKey))

	// A cold replica whose store is down picks up the shared snapshot.
	down := newFlakyStore()
	down.setErr(errors.New("connection refused"))
	cold := New(down, nopLogger(), WithRedisMirror(client, time.Minute))
	assert.Equal(t, []string{"r1"}, ids(cold.List(ctx, false)))

	warm.Invalidate(ctx)
	assert.False(t, mr.Exists(mirrorKey))
}

func TestProvision_SQLite(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "catalog.db"), nopLogger())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	c := New(db, nopLogger())
	require.NoError(t, c.Provision(ctx, []models.Resource{
		{ID: "studio", Name: "Studio", Capacity: 6, BaseHourlyRate: 45},
		{ID: "loft", Name: "Loft", Capacity: 14, BaseHourlyRate: 80, Disabled: true},
	}))

	assert.Equal(t, []string{"studio"}, ids(c.List(ctx, false)))

	res, err := c.Get(ctx, "loft")
	require.NoError(t, err)
	assert.True(t, res.Disabled)
}
