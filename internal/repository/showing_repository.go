// Package repository contains data access logic for showings. A Showing
// represents a scheduled screening of a movie on a screen. Besides plain
// CRUD it owns the general-admission counter, which is guarded by the same
// kind of conditional single-row UPDATE used for seat maps.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ShowingRepo manages persistence for showings.
type ShowingRepo struct {
	db *sql.DB
}

// NewShowingRepo constructs a ShowingRepo with the given DB handle.
func NewShowingRepo(db *sql.DB) *ShowingRepo {
	return &ShowingRepo{db: db}
}

const showingCols = `id, movie_id, theatre_id, screen_id, starts_at, ends_at, base_price_cents,
       is_active, status, ga_capacity, ga_reserved, created_at, updated_at`

func scanShowing(row interface{ Scan(...interface{}) error }, s *model.Showing) error {
	var status string
	if err := row.Scan(
		&s.ID, &s.MovieID, &s.TheatreID, &s.ScreenID, &s.StartsAt, &s.EndsAt, &s.BasePriceCents,
		&s.IsActive, &status, &s.GACapacity, &s.GAReserved, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return err
	}
	s.Status = model.ShowingStatus(status)
	return nil
}

// GetByID retrieves a showing by its ID.  It returns ErrNotFound if
// there is no matching row.
func (r *ShowingRepo) GetByID(ctx context.Context, id uint64) (*model.Showing, error) {
	var s model.Showing
	err := scanShowing(r.db.QueryRowContext(ctx, `SELECT `+showingCols+` FROM showings WHERE id = ?`, id), &s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a new showing and assigns the generated ID back to the
// struct.  Status defaults to SCHEDULED when empty.
func (r *ShowingRepo) Create(ctx context.Context, s *model.Showing) error {
	if s.Status == "" {
		s.Status = model.ShowingScheduled
	}
	const q = `INSERT INTO showings (movie_id, theatre_id, screen_id, starts_at, ends_at, base_price_cents, is_active, status, ga_capacity)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		s.MovieID, s.TheatreID, s.ScreenID, s.StartsAt.UTC(), s.EndsAt.UTC(),
		s.BasePriceCents, s.IsActive, string(s.Status), s.GACapacity,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// Overlaps reports whether another showing on the same screen intersects
// [start, end).  excludeID lets an update ignore the row being edited.
func (r *ShowingRepo) Overlaps(ctx context.Context, screenID, excludeID uint64, start, end time.Time) (bool, error) {
	const q = `SELECT COUNT(*) FROM showings
	           WHERE screen_id = ? AND id <> ? AND status <> 'CANCELLED'
	             AND NOT (ends_at <= ? OR starts_at >= ?)`
	var n int
	if err := r.db.QueryRowContext(ctx, q, screenID, excludeID, start.UTC(), end.UTC()).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountReservations returns how many reservations, in any state, reference the showing.
func (r *ShowingRepo) CountReservations(ctx context.Context, id uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE showing_id = ?`, id).Scan(&n)
	return n, err
}

// Delete removes a showing row.  Seat maps must already be gone; the
// caller cascades their back-references first.  ErrNotFound when no row matched.
func (r *ShowingRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM showings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveCapacity takes n general-admission places if and only if they fit.
// The predicate and the increment run as one atomic row update, so
// concurrent callers can never push ga_reserved past ga_capacity.
func (r *ShowingRepo) ReserveCapacity(ctx context.Context, id uint64, n uint32) (bool, error) {
	const q = `UPDATE showings SET ga_reserved = ga_reserved + ?
	           WHERE id = ? AND ga_reserved + ? <= ga_capacity`
	res, err := r.db.ExecContext(ctx, q, n, id, n)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReleaseCapacity returns n general-admission places.  The counter never
// goes below zero.
func (r *ShowingRepo) ReleaseCapacity(ctx context.Context, id uint64, n uint32) error {
	const q = `UPDATE showings SET ga_reserved = IF(ga_reserved >= ?, ga_reserved - ?, 0) WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, n, n, id)
	return err
}
