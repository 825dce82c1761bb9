package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// ShowingWriter is the showing persistence used by ShowingService.
type ShowingWriter interface {
	ShowingReader
	Create(ctx context.Context, s *model.Showing) error
	Delete(ctx context.Context, id uint64) error
	Overlaps(ctx context.Context, screenID, excludeID uint64, start, end time.Time) (bool, error)
	CountReservations(ctx context.Context, id uint64) (int, error)
}

// SeatMapWriter creates and removes a showing's seat map.
type SeatMapWriter interface {
	CreateBulk(ctx context.Context, entries []model.SeatMapEntry) error
	ListByShowing(ctx context.Context, showingID uint64) ([]model.SeatMapEntry, error)
	DeleteByShowing(ctx context.Context, showingID uint64) ([]uint64, error)
}

// SeatLister resolves seats by id.
type SeatLister interface {
	ListByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error)
}

// ShowingService owns the seat-map lifecycle: one entry per seat of the
// screen is created with the showing and removed with it.
type ShowingService struct {
	showings  ShowingWriter
	seatMaps  SeatMapWriter
	seats     SeatLister
	catalog   CatalogReader
	integrity *IntegrityMaintainer
}

// NewShowingService wires a ShowingService.
func NewShowingService(showings ShowingWriter, seatMaps SeatMapWriter, seats SeatLister, catalog CatalogReader, integrity *IntegrityMaintainer) *ShowingService {
	return &ShowingService{showings: showings, seatMaps: seatMaps, seats: seats, catalog: catalog, integrity: integrity}
}

// CreateShowingInput describes a new showing.
type CreateShowingInput struct {
	MovieID        uint64
	TheatreID      uint64
	ScreenID       uint64
	StartsAt       time.Time
	EndsAt         time.Time
	BasePriceCents int64
	GACapacity     uint32
}

// Create inserts the showing, lists it on its movie, theatre and screen,
// and builds its seat map from the screen's seats.  Inactive seats start
// UNAVAILABLE; the rest start AVAILABLE at base price times the seat-type
// multiplier.
func (s *ShowingService) Create(ctx context.Context, ownerID uint64, in CreateShowingInput) (*model.Showing, []model.SeatMapEntry, error) {
	if !in.EndsAt.After(in.StartsAt) {
		return nil, nil, apperr.Validation("ends_at must be after starts_at")
	}
	if in.BasePriceCents < 0 {
		return nil, nil, apperr.Validation("base_price_cents must not be negative")
	}
	if _, err := s.catalog.GetMovie(ctx, in.MovieID); err != nil {
		return nil, nil, lookupErr("movie", err)
	}
	if err := s.checkTheatreOwner(ctx, in.TheatreID, ownerID); err != nil {
		return nil, nil, err
	}
	screen, err := s.catalog.GetScreen(ctx, in.ScreenID)
	if err != nil {
		return nil, nil, lookupErr("screen", err)
	}
	if screen.TheatreID != in.TheatreID {
		return nil, nil, apperr.Validation("screen does not belong to the theatre")
	}
	overlap, err := s.showings.Overlaps(ctx, in.ScreenID, 0, in.StartsAt, in.EndsAt)
	if err != nil {
		return nil, nil, apperr.Internal("check overlapping showings", err)
	}
	if overlap {
		return nil, nil, apperr.Conflict("screen already has a showing in that time range")
	}

	showing := &model.Showing{
		MovieID:        in.MovieID,
		TheatreID:      in.TheatreID,
		ScreenID:       in.ScreenID,
		StartsAt:       in.StartsAt.UTC(),
		EndsAt:         in.EndsAt.UTC(),
		BasePriceCents: in.BasePriceCents,
		IsActive:       true,
		Status:         model.ShowingScheduled,
		GACapacity:     in.GACapacity,
	}
	if err := s.showings.Create(ctx, showing); err != nil {
		return nil, nil, apperr.Internal("create showing", err)
	}
	created, err := s.attach(ctx, showing)
	if err != nil {
		s.discard(ctx, showing.ID)
		return nil, nil, err
	}
	return showing, created, nil
}

// attach lists a freshly inserted showing on its parents and builds its
// seat map.
func (s *ShowingService) attach(ctx context.Context, showing *model.Showing) ([]model.SeatMapEntry, error) {
	ref := model.Ref(model.KindShowing, showing.ID)
	if err := s.integrity.OnCreate(ctx, ref,
		model.Ref(model.KindMovie, showing.MovieID),
		model.Ref(model.KindTheatre, showing.TheatreID),
		model.Ref(model.KindScreen, showing.ScreenID),
	); err != nil {
		return nil, err
	}

	seatIDs, err := s.integrity.Children(ctx, model.Ref(model.KindScreen, showing.ScreenID), model.KindSeat)
	if err != nil {
		return nil, err
	}
	seats, err := s.seats.ListByIDs(ctx, seatIDs)
	if err != nil {
		return nil, apperr.Internal("load screen seats", err)
	}
	entries := make([]model.SeatMapEntry, 0, len(seats))
	for _, seat := range seats {
		status := model.SeatAvailable
		if !seat.IsActive {
			status = model.SeatUnavailable
		}
		entries = append(entries, model.SeatMapEntry{
			ShowingID:       showing.ID,
			SeatID:          seat.ID,
			BasePriceCents:  showing.BasePriceCents,
			PriceMultiplier: model.PriceMultiplierFor(seat.SeatType),
			Status:          status,
		})
	}
	if err := s.seatMaps.CreateBulk(ctx, entries); err != nil {
		return nil, apperr.Internal("create seat map", err)
	}
	created, err := s.seatMaps.ListByShowing(ctx, showing.ID)
	if err != nil {
		return nil, apperr.Internal("read seat map", err)
	}
	children := make([]Child, 0, len(created))
	for _, e := range created {
		children = append(children, Child{Ref: model.Ref(model.KindSeatMap, e.ID), Parents: []model.EntityRef{ref}})
	}
	if err := s.integrity.OnCreateMany(ctx, children); err != nil {
		return nil, err
	}
	return created, nil
}

// discard undoes a half-built showing so it is never left bookable without
// a complete seat map.  Failures are logged; the create error is what the
// caller sees.
func (s *ShowingService) discard(ctx context.Context, showingID uint64) {
	ctx = context.WithoutCancel(ctx)
	ids, err := s.seatMaps.DeleteByShowing(ctx, showingID)
	if err != nil {
		log.Printf("catalog: discard showing %d: delete seat map: %v", showingID, err)
	}
	refs := make([]model.EntityRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, model.Ref(model.KindSeatMap, id))
	}
	if err := s.integrity.OnDeleteMany(ctx, refs); err != nil {
		log.Printf("catalog: discard showing %d: unlist seat maps: %v", showingID, err)
	}
	if err := s.showings.Delete(ctx, showingID); err != nil {
		log.Printf("catalog: discard showing %d: %v", showingID, err)
	}
	if err := s.integrity.OnDelete(ctx, model.Ref(model.KindShowing, showingID)); err != nil {
		log.Printf("catalog: discard showing %d: unlist showing: %v", showingID, err)
	}
}

// Delete removes a showing and its seat map.  A showing that has ever been
// booked cannot be deleted; reservations are never deleted either.
func (s *ShowingService) Delete(ctx context.Context, ownerID, showingID uint64) error {
	showing, err := s.showings.GetByID(ctx, showingID)
	if err != nil {
		return lookupErr("showing", err)
	}
	if err := s.checkTheatreOwner(ctx, showing.TheatreID, ownerID); err != nil {
		return err
	}
	n, err := s.showings.CountReservations(ctx, showingID)
	if err != nil {
		return apperr.Internal("count reservations", err)
	}
	if n > 0 {
		return apperr.Conflict("showing has reservations")
	}

	ids, err := s.seatMaps.DeleteByShowing(ctx, showingID)
	if err != nil {
		return apperr.Internal("delete seat map", err)
	}
	refs := make([]model.EntityRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, model.Ref(model.KindSeatMap, id))
	}
	if err := s.integrity.OnDeleteMany(ctx, refs); err != nil {
		return err
	}
	if err := s.showings.Delete(ctx, showingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.SourceNotFound("showing")
		}
		return apperr.Internal("delete showing", err)
	}
	return s.integrity.OnDelete(ctx, model.Ref(model.KindShowing, showingID))
}

func (s *ShowingService) checkTheatreOwner(ctx context.Context, theatreID, ownerID uint64) error {
	return checkTheatreOwner(ctx, s.catalog, theatreID, ownerID)
}

func checkTheatreOwner(ctx context.Context, catalog CatalogReader, theatreID, ownerID uint64) error {
	theatre, err := catalog.GetTheatre(ctx, theatreID)
	if err != nil {
		return lookupErr("theatre", err)
	}
	if theatre.OwnerID != ownerID {
		return apperr.Forbidden("theatre belongs to another owner")
	}
	return nil
}
