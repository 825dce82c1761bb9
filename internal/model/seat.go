package model

import (
	"strconv"
	"time"
)

// Seat types accepted by the catalog.
const (
	SeatTypeStandard   = "STANDARD"
	SeatTypeVIP        = "VIP"
	SeatTypeAccessible = "ACCESSIBLE"
)

// Seat describes a physical seat on a screen.  Seats are
// uniquely identified by their screen, row label and seat number.
// The seat_type indicates whether the seat is standard, VIP or
// accessible for disabled patrons.
//
// Fields:
//
//	ID         – primary key identifier.
//	TheatreID  – theatre the seat belongs to.
//	ScreenID   – screen to which this seat belongs.
//	RowLabel   – letter or string designating the row.
//	SeatNumber – number of the seat within the row.
//	SeatType   – type of seat (STANDARD, VIP, ACCESSIBLE).
//	IsActive   – whether the seat is active.
//	CreatedAt  – creation timestamp.
//	UpdatedAt  – last update timestamp.
type Seat struct {
	ID         uint64    `json:"id"`          // seats.id
	TheatreID  uint64    `json:"theatre_id"`  // seats.theatre_id
	ScreenID   uint64    `json:"screen_id"`   // seats.screen_id
	RowLabel   string    `json:"row_label"`   // seats.row_label
	SeatNumber uint32    `json:"seat_number"` // seats.seat_number
	SeatType   string    `json:"seat_type"`   // seats.seat_type
	IsActive   bool      `json:"is_active"`   // seats.is_active
	CreatedAt  time.Time `json:"created_at"`  // seats.created_at
	UpdatedAt  time.Time `json:"updated_at"`  // seats.updated_at
}

// Label renders the seat as it is printed on a ticket, e.g. "C12".
func (s Seat) Label() string {
	return s.RowLabel + strconv.FormatUint(uint64(s.SeatNumber), 10)
}
