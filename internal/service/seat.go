package service

import (
	"context"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// SeatStore is the seat persistence used by SeatService.
type SeatStore interface {
	Create(ctx context.Context, s *model.Seat) error
	GetByID(ctx context.Context, id uint64) (*model.Seat, error)
	Update(ctx context.Context, s *model.Seat) error
	Delete(ctx context.Context, id uint64) error
}

// SeatService writes seats and keeps their theatre and screen listings in step.
type SeatService struct {
	seats     SeatStore
	catalog   CatalogReader
	integrity *IntegrityMaintainer
}

// NewSeatService wires a SeatService.
func NewSeatService(seats SeatStore, catalog CatalogReader, integrity *IntegrityMaintainer) *SeatService {
	return &SeatService{seats: seats, catalog: catalog, integrity: integrity}
}

// SeatPatch carries the optional fields of a seat update.
type SeatPatch struct {
	ScreenID   *uint64
	RowLabel   *string
	SeatNumber *uint32
	SeatType   *string
	IsActive   *bool
}

func validSeatType(t string) bool {
	return t == model.SeatTypeStandard || t == model.SeatTypeVIP || t == model.SeatTypeAccessible
}

func seatParents(seat *model.Seat) []model.EntityRef {
	return []model.EntityRef{
		model.Ref(model.KindTheatre, seat.TheatreID),
		model.Ref(model.KindScreen, seat.ScreenID),
	}
}

// screenOf resolves a screen the owner controls.
func (s *SeatService) screenOf(ctx context.Context, ownerID, screenID uint64) (*model.Screen, error) {
	screen, err := s.catalog.GetScreen(ctx, screenID)
	if err != nil {
		return nil, lookupErr("screen", err)
	}
	if err := checkTheatreOwner(ctx, s.catalog, screen.TheatreID, ownerID); err != nil {
		return nil, err
	}
	return screen, nil
}

// Create inserts a seat on one of the owner's screens.  The seat row is
// written first; the cascade runs only once it exists.
func (s *SeatService) Create(ctx context.Context, ownerID uint64, seat *model.Seat) error {
	if seat.RowLabel == "" || seat.SeatNumber == 0 {
		return apperr.Validation("row_label and seat_number are required")
	}
	if seat.SeatType == "" {
		seat.SeatType = model.SeatTypeStandard
	}
	if !validSeatType(seat.SeatType) {
		return apperr.Validation("seat_type must be STANDARD, VIP or ACCESSIBLE")
	}
	screen, err := s.screenOf(ctx, ownerID, seat.ScreenID)
	if err != nil {
		return err
	}
	seat.TheatreID = screen.TheatreID
	if err := s.seats.Create(ctx, seat); err != nil {
		return apperr.Internal("create seat", err)
	}
	return s.integrity.OnCreate(ctx, model.Ref(model.KindSeat, seat.ID), seatParents(seat)...)
}

// Move applies a patch.  Moving a seat to another screen re-parents it.
func (s *SeatService) Move(ctx context.Context, ownerID, seatID uint64, p SeatPatch) (*model.Seat, error) {
	seat, err := s.load(ctx, ownerID, seatID)
	if err != nil {
		return nil, err
	}
	oldParents := seatParents(seat)

	if p.ScreenID != nil && *p.ScreenID != seat.ScreenID {
		screen, err := s.screenOf(ctx, ownerID, *p.ScreenID)
		if err != nil {
			return nil, err
		}
		seat.ScreenID, seat.TheatreID = screen.ID, screen.TheatreID
	}
	if p.RowLabel != nil {
		if *p.RowLabel == "" {
			return nil, apperr.Validation("row_label must not be empty")
		}
		seat.RowLabel = *p.RowLabel
	}
	if p.SeatNumber != nil {
		if *p.SeatNumber == 0 {
			return nil, apperr.Validation("seat_number must be positive")
		}
		seat.SeatNumber = *p.SeatNumber
	}
	if p.SeatType != nil {
		if !validSeatType(*p.SeatType) {
			return nil, apperr.Validation("seat_type must be STANDARD, VIP or ACCESSIBLE")
		}
		seat.SeatType = *p.SeatType
	}
	if p.IsActive != nil {
		seat.IsActive = *p.IsActive
	}

	if err := s.seats.Update(ctx, seat); err != nil {
		return nil, apperr.Internal("update seat", err)
	}
	if err := s.integrity.OnReparent(ctx, model.Ref(model.KindSeat, seat.ID), oldParents, seatParents(seat)); err != nil {
		return nil, err
	}
	return seat, nil
}

// Delete removes a seat and drops it from its theatre and screen.
func (s *SeatService) Delete(ctx context.Context, ownerID, seatID uint64) error {
	if _, err := s.load(ctx, ownerID, seatID); err != nil {
		return err
	}
	if err := s.seats.Delete(ctx, seatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.SourceNotFound("seat")
		}
		return apperr.Internal("delete seat", err)
	}
	return s.integrity.OnDelete(ctx, model.Ref(model.KindSeat, seatID))
}

func (s *SeatService) load(ctx context.Context, ownerID, seatID uint64) (*model.Seat, error) {
	seat, err := s.seats.GetByID(ctx, seatID)
	if err != nil {
		return nil, lookupErr("seat", err)
	}
	if err := checkTheatreOwner(ctx, s.catalog, seat.TheatreID, ownerID); err != nil {
		return nil, err
	}
	return seat, nil
}
