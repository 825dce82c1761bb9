// Package repository contains data access logic separated from HTTP handlers.
// This file covers the read side of the catalog (movies, theatres and
// screens).  Catalog CRUD lives elsewhere; the booking core only needs to
// resolve these rows when it snapshots a showing or checks ownership.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// CatalogRepo encapsulates lookups of movies, theatres and screens.  It
// depends on a sql.DB connection which should be configured elsewhere.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo with the provided DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// GetMovie fetches a movie by ID.  ErrNotFound if missing.
func (r *CatalogRepo) GetMovie(ctx context.Context, id uint64) (*model.Movie, error) {
	const q = `SELECT id, title, duration_minutes, rating, created_at, updated_at FROM movies WHERE id = ?`
	var m model.Movie
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&m.ID, &m.Title, &m.DurationMinutes, &m.Rating, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// GetTheatre fetches a theatre by ID regardless of owner.  Callers compare
// OwnerID themselves when they need to enforce ownership.
func (r *CatalogRepo) GetTheatre(ctx context.Context, id uint64) (*model.Theatre, error) {
	const q = `SELECT id, owner_id, name, address, timezone, created_at, updated_at FROM theatres WHERE id = ?`
	var t model.Theatre
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.OwnerID, &t.Name, &t.Address, &t.Timezone, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// GetScreen fetches a screen by ID.
func (r *CatalogRepo) GetScreen(ctx context.Context, id uint64) (*model.Screen, error) {
	const q = `SELECT id, theatre_id, name, format, is_active, created_at, updated_at FROM screens WHERE id = ?`
	var s model.Screen
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.TheatreID, &s.Name, &s.Format, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}
