package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/redisx"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// ReservationAPI is the reservation lifecycle as seen by HTTP callers.
type ReservationAPI interface {
	Create(ctx context.Context, in service.CreateReservationInput) (*model.Reservation, error)
	Get(ctx context.Context, id, userID uint64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	Checkout(ctx context.Context, id, userID uint64) (*model.Reservation, error)
	Cancel(ctx context.Context, id, userID uint64) (*model.Reservation, error)
}

// IdempotencyStore remembers which reservation an Idempotency-Key produced.
type IdempotencyStore interface {
	Claim(ctx context.Context, userID uint64, key string) (uint64, bool, error)
	Complete(ctx context.Context, userID uint64, key string, reservationID uint64) error
	Abort(ctx context.Context, userID uint64, key string) error
}

// HeaderIdempotencyKey lets clients retry POST /v1/reservations safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// CustomerHandler serves the customer's reservation routes.  All methods
// assume JWTAuth already ran.
type CustomerHandler struct {
	Reservations ReservationAPI
	Idempotency  IdempotencyStore // optional
}

// NewCustomerHandler panics if reservations is nil.  idem may be nil, in
// which case Idempotency-Key headers are ignored.
func NewCustomerHandler(reservations ReservationAPI, idem IdempotencyStore) *CustomerHandler {
	if reservations == nil {
		panic("nil reservation service passed to NewCustomerHandler")
	}
	return &CustomerHandler{Reservations: reservations, Idempotency: idem}
}

type createReservationRequest struct {
	ShowingID   uint64   `json:"showing_id" validate:"required,gt=0"`
	Type        string   `json:"type" validate:"required,oneof=GENERAL_ADMISSION RESERVED_SEATS"`
	SeatMapIDs  []uint64 `json:"seat_map_ids" validate:"omitempty,max=50,dive,gt=0"`
	TicketCount uint32   `json:"ticket_count" validate:"omitempty,max=50"`
	Notes       *string  `json:"notes" validate:"omitempty,max=500"`
}

// CreateReservation handles POST /v1/reservations.  With an
// Idempotency-Key header a retried request returns the reservation the
// first attempt created (200) instead of booking again; a retry that races
// the first attempt gets 409.
func (h *CustomerHandler) CreateReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body createReservationRequest
	if err := bindAndValidate(c, &body); err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()

	key := strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
	if key != "" && h.Idempotency != nil {
		if len(key) > 128 {
			return respondError(c, apperr.Validation("Idempotency-Key must be at most 128 characters"))
		}
		existing, claimed, err := h.Idempotency.Claim(ctx, userID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			return respondError(c, apperr.Conflict("a request with this Idempotency-Key is in progress"))
		case err != nil:
			// Redis is down: book without replay protection.
			c.Logger().Warnf("idempotency claim: %v", err)
			key = ""
		case !claimed:
			res, err := h.Reservations.Get(ctx, existing, userID)
			if err != nil {
				return respondError(c, err)
			}
			c.Response().Header().Set("Idempotent-Replayed", "true")
			return c.JSON(http.StatusOK, res)
		}
	}

	res, err := h.Reservations.Create(ctx, service.CreateReservationInput{
		UserID:      userID,
		ShowingID:   body.ShowingID,
		Type:        model.ReservationType(body.Type),
		SeatMapIDs:  body.SeatMapIDs,
		TicketCount: body.TicketCount,
		Notes:       body.Notes,
	})
	if key != "" && h.Idempotency != nil {
		bg := context.WithoutCancel(ctx)
		if err != nil {
			_ = h.Idempotency.Abort(bg, userID, key)
		} else if cerr := h.Idempotency.Complete(bg, userID, key, res.ID); cerr != nil {
			c.Logger().Warnf("idempotency complete: %v", cerr)
		}
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// GetReservation handles GET /v1/reservations/:id.
func (h *CustomerHandler) GetReservation(c echo.Context) error {
	return h.byID(c, h.Reservations.Get)
}

// ListMyReservations handles GET /v1/my-reservations.
func (h *CustomerHandler) ListMyReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	items, err := h.Reservations.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Checkout handles POST /v1/reservations/:id/checkout.
func (h *CustomerHandler) Checkout(c echo.Context) error {
	return h.byID(c, h.Reservations.Checkout)
}

// CancelReservation handles POST /v1/reservations/:id/cancel and its DELETE
// alias.  Cancelling twice returns the same cancelled reservation.
func (h *CustomerHandler) CancelReservation(c echo.Context) error {
	return h.byID(c, h.Reservations.Cancel)
}

func (h *CustomerHandler) byID(c echo.Context, op func(ctx context.Context, id, userID uint64) (*model.Reservation, error)) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	res, err := op(c.Request().Context(), id, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
