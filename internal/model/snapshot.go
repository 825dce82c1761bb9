package model

import "time"

// MovieSnapshot is the part of a movie kept on a reservation.
type MovieSnapshot struct {
	Title           string `json:"title" validate:"required,max=255"`
	DurationMinutes uint32 `json:"duration_minutes" validate:"required,min=1,max=1000"`
	Rating          string `json:"rating,omitempty" validate:"max=16"`
}

// TheatreSnapshot is the part of a theatre kept on a reservation.
type TheatreSnapshot struct {
	Name     string `json:"name" validate:"required,max=255"`
	Address  string `json:"address" validate:"required,max=512"`
	Timezone string `json:"timezone" validate:"required,timezone"`
}

// ScreenSnapshot is the part of a screen kept on a reservation.
type ScreenSnapshot struct {
	Name   string `json:"name" validate:"required,max=128"`
	Format string `json:"format,omitempty" validate:"max=32"`
}

// SeatSnapshot is one booked seat as printed on the ticket.
type SeatSnapshot struct {
	RowLabel   string `json:"row_label" validate:"required,max=8"`
	SeatNumber uint32 `json:"seat_number" validate:"required,min=1"`
	Label      string `json:"label" validate:"required"`
	SeatType   string `json:"seat_type" validate:"required,oneof=STANDARD VIP ACCESSIBLE"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
}

// ReservationSnapshot is embedded by value in a reservation. It carries no
// catalog identifiers so later catalog edits cannot reach it.
type ReservationSnapshot struct {
	Movie    MovieSnapshot   `json:"movie" validate:"required"`
	Theatre  TheatreSnapshot `json:"theatre" validate:"required"`
	Screen   ScreenSnapshot  `json:"screen" validate:"required"`
	Seats    []SeatSnapshot  `json:"seats,omitempty" validate:"dive"`
	StartsAt time.Time       `json:"starts_at" validate:"required"`
	EndsAt   time.Time       `json:"ends_at" validate:"required,gtfield=StartsAt"`
	TakenAt  time.Time       `json:"taken_at" validate:"required"`
}
