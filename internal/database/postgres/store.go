package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS resources (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        active BOOLEAN NOT NULL DEFAULT TRUE,
        doc JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS holds (
        id TEXT PRIMARY KEY,
        idempotency_key TEXT NOT NULL DEFAULT '',
        expires_at TIMESTAMPTZ NOT NULL,
        doc JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS reservations (
        id TEXT PRIMARY KEY,
        hold_id TEXT NOT NULL DEFAULT '',
        user_id TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        first_start TIMESTAMPTZ NOT NULL,
        doc JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS sync_queue (
        id BIGSERIAL PRIMARY KEY,
        task_type TEXT NOT NULL,
        reference TEXT NOT NULL,
        payload TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'pending',
        retry_count INTEGER NOT NULL DEFAULT 0,
        last_error TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL,
        processed_at TIMESTAMPTZ,
        next_retry_at TIMESTAMPTZ
    )`,
	`CREATE INDEX IF NOT EXISTS idx_holds_expires_at ON holds(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_holds_idempotency_key ON holds(idempotency_key)`,
	`DROP INDEX IF EXISTS idx_reservations_hold_id`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_hold_id_unique ON reservations(hold_id) WHERE hold_id <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_first_start ON reservations(first_start)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
}

const uniqueViolation = "23505"

// Store is the PostgreSQL flavour of the document store.
type Store struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

func New(ctx context.Context, dsn string, maxConns int, logger *zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	for _, q := range schema {
		if _, err := pool.Exec(ctx, q); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	logger.Info().Msg("Postgres store initialized")
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ListResources(ctx context.Context) ([]*models.Resource, error) {
	out, err := queryDocs[models.Resource](ctx, s.pool, `SELECT doc FROM resources WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return out, nil
}

func (s *Store) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	res, err := scanDoc[models.Resource](s.pool.QueryRow(ctx, `SELECT doc FROM resources WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resource %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

func (s *Store) UpsertResource(ctx context.Context, res *models.Resource) error {
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	doc, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode resource: %w", err)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO resources (id, name, active, doc, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active,
            doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		res.ID, res.Name, !res.Disabled, doc, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert resource: %w", err)
	}
	return nil
}

func (s *Store) CreateHold(ctx context.Context, hold *models.Hold) error {
	doc, err := json.Marshal(hold)
	if err != nil {
		return fmt.Errorf("failed to encode hold: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO holds (id, idempotency_key, expires_at, doc, created_at) VALUES ($1, $2, $3, $4, $5)`,
		hold.ID, hold.IdempotencyKey, hold.ExpiresAt, doc, hold.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}
	return nil
}

func (s *Store) GetHold(ctx context.Context, id string) (*models.Hold, error) {
	hold, err := scanDoc[models.Hold](s.pool.QueryRow(ctx, `SELECT doc FROM holds WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("hold %s: %w", id, domain.ErrHoldNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	return hold, nil
}

func (s *Store) FindHoldByIdempotencyKey(ctx context.Context, key string) (*models.Hold, error) {
	if key == "" {
		return nil, fmt.Errorf("empty idempotency key: %w", domain.ErrHoldNotFound)
	}
	hold, err := scanDoc[models.Hold](s.pool.QueryRow(ctx,
		`SELECT doc FROM holds WHERE idempotency_key = $1 ORDER BY created_at DESC LIMIT 1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("hold with key %s: %w", key, domain.ErrHoldNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find hold by idempotency key: %w", err)
	}
	return hold, nil
}

func (s *Store) ListHolds(ctx context.Context) ([]*models.Hold, error) {
	out, err := queryDocs[models.Hold](ctx, s.pool, `SELECT doc FROM holds ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list holds: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteHold(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM holds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("hold %s: %w", id, domain.ErrHoldNotFound)
	}
	return nil
}

func (s *Store) DeleteExpiredHolds(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM holds WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired holds: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CreateReservation(ctx context.Context, r *models.Reservation) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reservation: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO reservations (id, hold_id, user_id, status, first_start, doc, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.HoldID, r.UserID, r.Status, firstStart(r), doc, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("reservation for hold %s: %w", r.HoldID, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := scanDoc[models.Reservation](s.pool.QueryRow(ctx, `SELECT doc FROM reservations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

func (s *Store) GetReservationByHold(ctx context.Context, holdID string) (*models.Reservation, error) {
	r, err := scanDoc[models.Reservation](s.pool.QueryRow(ctx,
		`SELECT doc FROM reservations WHERE hold_id = $1 ORDER BY created_at DESC LIMIT 1`, holdID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reservation for hold %s: %w", holdID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation by hold: %w", err)
	}
	return r, nil
}

func (s *Store) ListReservations(ctx context.Context) ([]*models.Reservation, error) {
	out, err := queryDocs[models.Reservation](ctx, s.pool, `SELECT doc FROM reservations ORDER BY first_start`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return out, nil
}

func (s *Store) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	out, err := queryDocs[models.Reservation](ctx, s.pool,
		`SELECT doc FROM reservations WHERE first_start >= $1 AND first_start < $2 ORDER BY first_start`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations in range: %w", err)
	}
	return out, nil
}

// UpdateReservationStatus is a compare-and-set on status.
func (s *Store) UpdateReservationStatus(ctx context.Context, id, from, to string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE reservations
        SET status = $1,
            updated_at = now(),
            doc = jsonb_set(jsonb_set(doc, '{status}', to_jsonb($1::text)), '{updated_at}', to_jsonb(now()))
        WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.GetReservation(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("reservation %s is not %s: %w", id, from, domain.ErrInvalidTransition)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanDoc[T any](row pgx.Row) (*T, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}

func queryDocs[T any](ctx context.Context, q querier, sql string, args ...any) ([]*T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		doc, err := scanDoc[T](rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func firstStart(r *models.Reservation) time.Time {
	var first time.Time
	for _, li := range r.LineItems {
		if first.IsZero() || li.Window.Start.Before(first) {
			first = li.Window.Start
		}
	}
	return first
}
