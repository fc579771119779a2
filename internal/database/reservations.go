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

func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reservation: %w", err)
	}

	query := `INSERT INTO reservations (id, hold_id, user_id, status, first_start, doc, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query,
		r.ID, r.HoldID, r.UserID, r.Status, firstStart(r).UnixMilli(), string(doc), r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("reservation for hold %s: %w", r.HoldID, domain.ErrConflict)
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := scanDoc[models.Reservation](db.QueryRowContext(ctx, `SELECT doc FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

func (db *DB) GetReservationByHold(ctx context.Context, holdID string) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT doc FROM reservations WHERE hold_id = ? ORDER BY created_at DESC LIMIT 1`, holdID)
	r, err := scanDoc[models.Reservation](row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation for hold %s: %w", holdID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation by hold: %w", err)
	}
	return r, nil
}

func (db *DB) ListReservations(ctx context.Context) ([]*models.Reservation, error) {
	out, err := queryDocs[models.Reservation](ctx, db, `SELECT doc FROM reservations ORDER BY first_start`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return out, nil
}

// ListReservationsBetween returns reservations whose first line item starts in [from, to).
func (db *DB) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]*models.Reservation, error) {
	out, err := queryDocs[models.Reservation](ctx, db,
		`SELECT doc FROM reservations WHERE first_start >= ? AND first_start < ? ORDER BY first_start`,
		from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations in range: %w", err)
	}
	return out, nil
}

// UpdateReservationStatus moves a reservation from one status to another.
// It fails with ErrConcurrentModification when the stored status is not from.
func (db *DB) UpdateReservationStatus(ctx context.Context, id, from, to string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	r, err := scanDoc[models.Reservation](tx.QueryRowContext(ctx, `SELECT doc FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load reservation: %w", err)
	}

	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reservation: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, doc = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, string(doc), r.UpdatedAt, id, from)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConcurrentModification
	}

	return tx.Commit()
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
