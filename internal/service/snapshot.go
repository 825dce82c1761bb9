package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// CatalogReader resolves the read-only catalog rows a snapshot is built from.
type CatalogReader interface {
	GetMovie(ctx context.Context, id uint64) (*model.Movie, error)
	GetTheatre(ctx context.Context, id uint64) (*model.Theatre, error)
	GetScreen(ctx context.Context, id uint64) (*model.Screen, error)
}

// ShowingReader loads a showing by id.
type ShowingReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Showing, error)
}

// SnapshotFactory freezes the catalog state of a booking.  It has no side
// effects and is safe for concurrent use.
type SnapshotFactory struct {
	showings ShowingReader
	catalog  CatalogReader
	validate *validator.Validate
	now      func() time.Time
}

// NewSnapshotFactory wires a factory to its catalog collaborators.
func NewSnapshotFactory(showings ShowingReader, catalog CatalogReader) *SnapshotFactory {
	return &SnapshotFactory{
		showings: showings,
		catalog:  catalog,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// CreateSnapshot reads the showing with its movie, theatre and screen and
// copies the fields kept on a reservation.  entries are the locked seat-map
// rows (with their seats populated); general admission passes none.
//
// A missing showing, movie, theatre, screen or seat yields SourceNotFound.
// Catalog rows that fail the snapshot schema yield InconsistentSourceData.
func (f *SnapshotFactory) CreateSnapshot(ctx context.Context, showingID uint64, entries []model.SeatMapEntry) (*model.ReservationSnapshot, error) {
	showing, err := f.showings.GetByID(ctx, showingID)
	if err != nil {
		return nil, lookupErr("showing", err)
	}
	movie, err := f.catalog.GetMovie(ctx, showing.MovieID)
	if err != nil {
		return nil, lookupErr("movie", err)
	}
	theatre, err := f.catalog.GetTheatre(ctx, showing.TheatreID)
	if err != nil {
		return nil, lookupErr("theatre", err)
	}
	screen, err := f.catalog.GetScreen(ctx, showing.ScreenID)
	if err != nil {
		return nil, lookupErr("screen", err)
	}

	snap := &model.ReservationSnapshot{
		StartsAt: showing.StartsAt.UTC(),
		EndsAt:   showing.EndsAt.UTC(),
		TakenAt:  f.now().UTC(),
	}
	if err := copier.Copy(&snap.Movie, movie); err != nil {
		return nil, apperr.Internal("copy movie", err)
	}
	if err := copier.Copy(&snap.Theatre, theatre); err != nil {
		return nil, apperr.Internal("copy theatre", err)
	}
	if err := copier.Copy(&snap.Screen, screen); err != nil {
		return nil, apperr.Internal("copy screen", err)
	}
	for _, e := range entries {
		if e.Seat == nil {
			return nil, apperr.SourceNotFound(fmt.Sprintf("seat for seat map %d", e.ID))
		}
		var s model.SeatSnapshot
		if err := copier.Copy(&s, e.Seat); err != nil {
			return nil, apperr.Internal("copy seat", err)
		}
		s.Label = e.Seat.Label()
		s.PriceCents = e.EffectivePriceCents()
		snap.Seats = append(snap.Seats, s)
	}

	if err := f.validate.Struct(snap); err != nil {
		log.Printf("booking: snapshot of showing %d failed validation: %v", showingID, err)
		return nil, apperr.InconsistentSourceData(err)
	}
	return snap, nil
}

func lookupErr(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.SourceNotFound(what)
	}
	return apperr.Internal("load "+what, err)
}
