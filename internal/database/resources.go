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

func (db *DB) ListResources(ctx context.Context) ([]*models.Resource, error) {
	resources, err := queryDocs[models.Resource](ctx, db,
		`SELECT doc FROM resources WHERE active = 1 ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}

func (db *DB) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	res, err := scanDoc[models.Resource](db.QueryRowContext(ctx, `SELECT doc FROM resources WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resource %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

// UpsertResource creates or replaces a resource document.
func (db *DB) UpsertResource(ctx context.Context, res *models.Resource) error {
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	doc, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode resource: %w", err)
	}

	query := `INSERT INTO resources (id, name, active, doc, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET name = excluded.name, active = excluded.active,
                  doc = excluded.doc, updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query, res.ID, res.Name, !res.Disabled, string(doc), res.CreatedAt, res.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert resource: %w", err)
	}
	return nil
}
