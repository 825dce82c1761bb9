package model

import "time"

// ShowingStatus is the catalog lifecycle of a showing.
type ShowingStatus string

const (
	ShowingScheduled ShowingStatus = "SCHEDULED"
	ShowingRunning   ShowingStatus = "RUNNING"
	ShowingCompleted ShowingStatus = "COMPLETED"
	ShowingCancelled ShowingStatus = "CANCELLED"
	ShowingSoldOut   ShowingStatus = "SOLD_OUT"
)

// Showing represents a scheduled screening of a movie on a particular
// screen.  It is owned by the catalog; the booking core reads it and only
// writes the general-admission counter.
//
// Fields:
//
//	ID             – primary key identifier.
//	MovieID        – movie being screened.
//	TheatreID      – venue.
//	ScreenID       – auditorium where the showing takes place.
//	StartsAt       – when the showing begins.
//	EndsAt         – when the showing ends (must be after StartsAt).
//	BasePriceCents – default ticket price in cents.
//	IsActive       – catalog flag; inactive showings cannot be booked.
//	Status         – SCHEDULED, RUNNING, COMPLETED, CANCELLED or SOLD_OUT.
//	GACapacity     – general-admission places on sale (0 disables GA).
//	GAReserved     – general-admission places currently held or sold.
type Showing struct {
	ID             uint64        `json:"id"`               // showings.id
	MovieID        uint64        `json:"movie_id"`         // showings.movie_id
	TheatreID      uint64        `json:"theatre_id"`       // showings.theatre_id
	ScreenID       uint64        `json:"screen_id"`        // showings.screen_id
	StartsAt       time.Time     `json:"starts_at"`        // showings.starts_at
	EndsAt         time.Time     `json:"ends_at"`          // showings.ends_at
	BasePriceCents int64         `json:"base_price_cents"` // showings.base_price_cents
	IsActive       bool          `json:"is_active"`        // showings.is_active
	Status         ShowingStatus `json:"status"`           // showings.status
	GACapacity     uint32        `json:"ga_capacity"`      // showings.ga_capacity
	GAReserved     uint32        `json:"ga_reserved"`      // showings.ga_reserved
	CreatedAt      time.Time     `json:"created_at"`       // showings.created_at
	UpdatedAt      time.Time     `json:"updated_at"`       // showings.updated_at
}

// Bookable reports whether new reservations may be taken for the showing.
func (s Showing) Bookable() bool {
	if !s.IsActive {
		return false
	}
	return s.Status == ShowingScheduled || s.Status == ShowingRunning
}
