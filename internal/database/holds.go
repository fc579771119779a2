package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"
)

func (db *DB) CreateHold(ctx context.Context, hold *models.Hold) error {
	doc, err := json.Marshal(hold)
	if err != nil {
		return fmt.Errorf("failed to encode hold: %w", err)
	}

	query := `INSERT INTO holds (id, idempotency_key, expires_at, doc, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query,
		hold.ID, hold.IdempotencyKey, hold.ExpiresAt.UnixMilli(), string(doc), hold.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}
	return nil
}

func (db *DB) GetHold(ctx context.Context, id string) (*models.Hold, error) {
	hold, err := scanDoc[models.Hold](db.QueryRowContext(ctx, `SELECT doc FROM holds WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hold %s: %w", id, domain.ErrHoldNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	return hold, nil
}

// FindHoldByIdempotencyKey returns the most recent hold created with key.
func (db *DB) FindHoldByIdempotencyKey(ctx context.Context, key string) (*models.Hold, error) {
	if key == "" {
		return nil, fmt.Errorf("empty idempotency key: %w", domain.ErrHoldNotFound)
	}
	row := db.QueryRowContext(ctx,
		`SELECT doc FROM holds WHERE idempotency_key = ? ORDER BY created_at DESC LIMIT 1`, key)
	hold, err := scanDoc[models.Hold](row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hold with key %s: %w", key, domain.ErrHoldNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find hold by idempotency key: %w", err)
	}
	return hold, nil
}

// ListHolds returns every stored hold, expired ones included; readers apply
// expiry themselves.
func (db *DB) ListHolds(ctx context.Context) ([]*models.Hold, error) {
	holds, err := queryDocs[models.Hold](ctx, db, `SELECT doc FROM holds ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list holds: %w", err)
	}
	return holds, nil
}

func (db *DB) DeleteHold(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM holds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete hold: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("hold %s: %w", id, domain.ErrHoldNotFound)
	}
	return nil
}

func (db *DB) DeleteExpiredHolds(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM holds WHERE expires_at <= ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired holds: %w", err)
	}
	return res.RowsAffected()
}
