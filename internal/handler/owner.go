package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// ShowingAPI creates and removes showings with their seat maps.
type ShowingAPI interface {
	Create(ctx context.Context, ownerID uint64, in service.CreateShowingInput) (*model.Showing, []model.SeatMapEntry, error)
	Delete(ctx context.Context, ownerID, showingID uint64) error
}

// SeatAPI writes seats on the owner's screens.
type SeatAPI interface {
	Create(ctx context.Context, ownerID uint64, seat *model.Seat) error
	Move(ctx context.Context, ownerID, seatID uint64, p service.SeatPatch) (*model.Seat, error)
	Delete(ctx context.Context, ownerID, seatID uint64) error
}

// ShowingReservations lists a showing's bookings for its theatre owner.
type ShowingReservations interface {
	ListByShowingForOwner(ctx context.Context, showingID, ownerID uint64) ([]model.Reservation, error)
}

// OwnerHandler bundles the services theatre owners use.  Routes are guarded
// by RequireRole(OWNER); ownership of the theatre is checked per call.
type OwnerHandler struct {
	Showings     ShowingAPI
	Seats        SeatAPI
	Reservations ShowingReservations
}

// NewOwnerHandler constructs a new OwnerHandler and panics if any dependency is nil.
func NewOwnerHandler(showings ShowingAPI, seats SeatAPI, reservations ShowingReservations) *OwnerHandler {
	if showings == nil || seats == nil || reservations == nil {
		panic("nil service passed to NewOwnerHandler")
	}
	return &OwnerHandler{Showings: showings, Seats: seats, Reservations: reservations}
}

type createShowingRequest struct {
	MovieID        uint64    `json:"movie_id" validate:"required,gt=0"`
	TheatreID      uint64    `json:"theatre_id" validate:"required,gt=0"`
	ScreenID       uint64    `json:"screen_id" validate:"required,gt=0"`
	StartsAt       time.Time `json:"starts_at" validate:"required"`
	EndsAt         time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	BasePriceCents int64     `json:"base_price_cents" validate:"gte=0"`
	GACapacity     uint32    `json:"ga_capacity"`
}

// CreateShowing handles POST /v1/showings.  The response carries the
// showing and the seat map built for it.
func (h *OwnerHandler) CreateShowing(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body createShowingRequest
	if err := bindAndValidate(c, &body); err != nil {
		return respondError(c, err)
	}
	var in service.CreateShowingInput
	if err := copier.Copy(&in, &body); err != nil {
		return respondError(c, apperr.Internal("map showing request", err))
	}
	showing, seatMap, err := h.Showings.Create(c.Request().Context(), ownerID, in)
	if err != nil {
		return respondError(c, err)
	}
	if seatMap == nil {
		seatMap = []model.SeatMapEntry{}
	}
	return c.JSON(http.StatusCreated, echo.Map{"showing": showing, "seat_map": seatMap})
}

// DeleteShowing handles DELETE /v1/showings/:id.  A showing with
// reservations answers 409.
func (h *OwnerHandler) DeleteShowing(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Showings.Delete(c.Request().Context(), ownerID, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListShowingReservations handles GET /v1/showings/:id/reservations.
func (h *OwnerHandler) ListShowingReservations(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	items, err := h.Reservations.ListByShowingForOwner(c.Request().Context(), id, ownerID)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

type createSeatRequest struct {
	ScreenID   uint64 `json:"screen_id" validate:"required,gt=0"`
	RowLabel   string `json:"row_label" validate:"required,max=8"`
	SeatNumber uint32 `json:"seat_number" validate:"required,gt=0"`
	SeatType   string `json:"seat_type" validate:"omitempty,oneof=STANDARD VIP ACCESSIBLE"`
	IsActive   *bool  `json:"is_active"`
}

// CreateSeat handles POST /v1/seats.
func (h *OwnerHandler) CreateSeat(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body createSeatRequest
	if err := bindAndValidate(c, &body); err != nil {
		return respondError(c, err)
	}
	seat := &model.Seat{
		ScreenID:   body.ScreenID,
		RowLabel:   strings.ToUpper(strings.TrimSpace(body.RowLabel)),
		SeatNumber: body.SeatNumber,
		SeatType:   strings.ToUpper(body.SeatType),
		IsActive:   body.IsActive == nil || *body.IsActive,
	}
	if err := h.Seats.Create(c.Request().Context(), ownerID, seat); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, seat)
}

type updateSeatRequest struct {
	ScreenID   *uint64 `json:"screen_id" validate:"omitempty,gt=0"`
	RowLabel   *string `json:"row_label" validate:"omitempty,min=1,max=8"`
	SeatNumber *uint32 `json:"seat_number" validate:"omitempty,gt=0"`
	SeatType   *string `json:"seat_type" validate:"omitempty,oneof=STANDARD VIP ACCESSIBLE"`
	IsActive   *bool   `json:"is_active"`
}

// UpdateSeat handles PATCH and PUT /v1/seats/:id.  Moving a seat to another
// screen updates the listings of both screens.
func (h *OwnerHandler) UpdateSeat(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var body updateSeatRequest
	if err := bindAndValidate(c, &body); err != nil {
		return respondError(c, err)
	}
	var patch service.SeatPatch
	if err := copier.Copy(&patch, &body); err != nil {
		return respondError(c, apperr.Internal("map seat request", err))
	}
	if patch.RowLabel != nil {
		label := strings.ToUpper(strings.TrimSpace(*patch.RowLabel))
		patch.RowLabel = &label
	}
	seat, err := h.Seats.Move(c.Request().Context(), ownerID, id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, seat)
}

// DeleteSeat handles DELETE /v1/seats/:id.
func (h *OwnerHandler) DeleteSeat(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Seats.Delete(c.Request().Context(), ownerID, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
