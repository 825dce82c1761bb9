package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// SeatMapReader lists a showing's seat map joined with its seats.
type SeatMapReader interface {
	ListByShowing(ctx context.Context, showingID uint64) ([]model.SeatMapEntry, error)
}

// PublicHandler serves unauthenticated reads.  Responses carry only what a
// customer needs to pick seats.
type PublicHandler struct {
	Showings service.ShowingReader
	SeatMaps SeatMapReader
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(showings service.ShowingReader, seatMaps SeatMapReader) *PublicHandler {
	if showings == nil || seatMaps == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{Showings: showings, SeatMaps: seatMaps}
}

// PublicSeat is one seat of a public seat map.
type PublicSeat struct {
	SeatMapID  uint64              `json:"seat_map_id"`
	Label      string              `json:"label"`
	RowLabel   string              `json:"row_label"`
	SeatNumber uint32              `json:"seat_number"`
	SeatType   string              `json:"seat_type"`
	Status     model.SeatMapStatus `json:"status"`
	PriceCents int64               `json:"price_cents"`
}

// PublicSeatMap is the response of GET /v1/showings/:id/seat-map.
type PublicSeatMap struct {
	ShowingID   uint64       `json:"showing_id"`
	StartsAt    time.Time    `json:"starts_at"`
	Bookable    bool         `json:"bookable"`
	GACapacity  uint32       `json:"ga_capacity"`
	GAAvailable uint32       `json:"ga_available"`
	SeatsTotal  int          `json:"seats_total"`
	SeatsFree   int          `json:"seats_free"`
	Seats       []PublicSeat `json:"seats"`
}

// GetSeatMap handles GET /v1/showings/:id/seat-map.  Lock tokens never
// leave the server.
func (h *PublicHandler) GetSeatMap(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	showing, err := h.Showings.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, apperr.SourceNotFound("showing"))
	}
	if err != nil {
		return respondError(c, apperr.Internal("load showing", err))
	}
	entries, err := h.SeatMaps.ListByShowing(ctx, id)
	if err != nil {
		return respondError(c, apperr.Internal("load seat map", err))
	}
	return c.JSON(http.StatusOK, buildPublicSeatMap(showing, entries))
}

func buildPublicSeatMap(showing *model.Showing, entries []model.SeatMapEntry) PublicSeatMap {
	out := PublicSeatMap{
		ShowingID:  showing.ID,
		StartsAt:   showing.StartsAt,
		Bookable:   showing.Bookable(),
		GACapacity: showing.GACapacity,
		SeatsTotal: len(entries),
		Seats:      make([]PublicSeat, 0, len(entries)),
	}
	if showing.GACapacity > showing.GAReserved {
		out.GAAvailable = showing.GACapacity - showing.GAReserved
	}
	for _, e := range entries {
		ps := PublicSeat{
			SeatMapID:  e.ID,
			Status:     e.Status,
			PriceCents: e.EffectivePriceCents(),
		}
		if e.Seat != nil {
			ps.Label = e.Seat.Label()
			ps.RowLabel = e.Seat.RowLabel
			ps.SeatNumber = e.Seat.SeatNumber
			ps.SeatType = e.Seat.SeatType
		}
		if e.Status == model.SeatAvailable {
			out.SeatsFree++
		}
		out.Seats = append(out.Seats, ps)
	}
	return out
}
