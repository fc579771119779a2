package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"roombook/internal/domain"
	"roombook/internal/metrics"
	"roombook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const mirrorKey = "catalog:resources"

// Catalog is the read-mostly registry of bookable resources. Reads never fail:
// an unreachable store degrades to the last snapshot, the Redis mirror and
// finally the seed set.
type Catalog struct {
	store     domain.ResourceStore
	mirror    *redis.Client
	mirrorTTL time.Duration
	logger    *zerolog.Logger

	mu       sync.RWMutex
	snapshot []*models.Resource
	byID     map[string]*models.Resource
	valid    bool
}

type Option func(*Catalog)

// WithRedisMirror shares the warm snapshot between API replicas.
func WithRedisMirror(client *redis.Client, ttl time.Duration) Option {
	return func(c *Catalog) {
		c.mirror = client
		c.mirrorTTL = ttl
	}
}

func New(store domain.ResourceStore, logger *zerolog.Logger, opts ...Option) *Catalog {
	c := &Catalog{store: store, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provision upserts the given resources, typically from the startup seed file.
func (c *Catalog) Provision(ctx context.Context, resources []models.Resource) error {
	for i := range resources {
		res := resources[i]
		if err := c.Save(ctx, &res); err != nil {
			return fmt.Errorf("failed to provision resource %s: %w", res.ID, err)
		}
	}
	return nil
}

func (c *Catalog) List(ctx context.Context, forceRefresh bool) []*models.Resource {
	if !forceRefresh {
		c.mu.RLock()
		if c.valid {
			out := append([]*models.Resource(nil), c.snapshot...)
			c.mu.RUnlock()
			return out
		}
		c.mu.RUnlock()
	}

	resources, err := c.store.ListResources(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Resource store unreachable, serving fallback catalog")
		return c.fallback(ctx)
	}
	if len(resources) == 0 {
		c.logger.Info().Msg("Resource catalog is empty, serving seed set")
		metrics.IncCatalogFallback("seed")
		resources = Seed()
	}

	c.replace(resources)
	c.writeMirror(ctx, resources)
	return append([]*models.Resource(nil), resources...)
}

func (c *Catalog) Get(ctx context.Context, id string) (*models.Resource, error) {
	c.mu.RLock()
	if c.valid {
		if res, ok := c.byID[id]; ok {
			c.mu.RUnlock()
			return res, nil
		}
	}
	c.mu.RUnlock()

	res, err := c.store.GetResource(ctx, id)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		c.logger.Warn().Err(err).Str("resource_id", id).Msg("Resource lookup failed, using fallback catalog")
	}

	// Seeded resources are served from the fallback list, not the store.
	for _, r := range c.List(ctx, false) {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("resource %s: %w", id, domain.ErrNotFound)
}

func (c *Catalog) Save(ctx context.Context, resource *models.Resource) error {
	now := time.Now()
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	resource.UpdatedAt = now

	if err := c.store.UpsertResource(ctx, resource); err != nil {
		return fmt.Errorf("failed to save resource: %w", err)
	}
	c.Invalidate(ctx)
	return nil
}

// Invalidate drops the local snapshot and the shared mirror.
func (c *Catalog) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()

	if c.mirror != nil {
		if err := c.mirror.Del(ctx, mirrorKey).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to invalidate catalog mirror")
		}
	}
}

func (c *Catalog) fallback(ctx context.Context) []*models.Resource {
	c.mu.RLock()
	snapshot := c.snapshot
	c.mu.RUnlock()
	if len(snapshot) > 0 {
		metrics.IncCatalogFallback("snapshot")
		return append([]*models.Resource(nil), snapshot...)
	}

	if mirrored := c.readMirror(ctx); len(mirrored) > 0 {
		metrics.IncCatalogFallback("mirror")
		c.replace(mirrored)
		return append([]*models.Resource(nil), mirrored...)
	}

	metrics.IncCatalogFallback("seed")
	return Seed()
}

// replace installs a snapshot. The snapshot stays available as a fallback
// even after invalidation.
func (c *Catalog) replace(resources []*models.Resource) {
	byID := make(map[string]*models.Resource, len(resources))
	for _, r := range resources {
		byID[r.ID] = r
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = resources
	c.byID = byID
	c.valid = true
}

func (c *Catalog) writeMirror(ctx context.Context, resources []*models.Resource) {
	if c.mirror == nil {
		return
	}
	data, err := json.Marshal(resources)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to marshal catalog mirror")
		return
	}
	if err := c.mirror.Set(ctx, mirrorKey, data, c.mirrorTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write catalog mirror")
	}
}

func (c *Catalog) readMirror(ctx context.Context) []*models.Resource {
	if c.mirror == nil {
		return nil
	}
	data, err := c.mirror.Get(ctx, mirrorKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("Failed to read catalog mirror")
		}
		return nil
	}
	var resources []*models.Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		c.logger.Warn().Err(err).Msg("Corrupt catalog mirror")
		return nil
	}
	return resources
}
