package model

import (
	"encoding/json"
	"time"
)

// ReservationType distinguishes seated bookings from general admission.
type ReservationType string

const (
	GeneralAdmission ReservationType = "GENERAL_ADMISSION"
	ReservedSeats    ReservationType = "RESERVED_SEATS"
)

// Valid reports whether t is a known reservation type.
func (t ReservationType) Valid() bool {
	return t == GeneralAdmission || t == ReservedSeats
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationPaid      ReservationStatus = "PAID"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

var reservationTransitions = map[ReservationStatus]map[ReservationStatus]bool{
	ReservationReserved: {ReservationPaid: true, ReservationCancelled: true},
	ReservationPaid:     {ReservationCancelled: true},
}

// CanTransitionReservation reports whether a reservation may move between
// the two states. CANCELLED is terminal.
func CanTransitionReservation(from, to ReservationStatus) bool {
	return reservationTransitions[from][to]
}

// Reservation records a user's booking for a specific showing.
// Seated reservations reference the seat-map entries they hold; general
// admission reservations hold a share of the showing's capacity instead.
//
// Fields:
//
//	ID             – primary key identifier.
//	UserID         – user who made the reservation.
//	ShowingID      – showing being reserved.
//	Type           – GENERAL_ADMISSION or RESERVED_SEATS.
//	SeatMapIDs     – selected seat-map entries (empty for general admission).
//	TicketCount    – number of tickets.
//	PricePaidCents – total price in cents, fixed at creation.
//	Currency       – ISO currency code.
//	Status         – RESERVED, PAID or CANCELLED.
//	LockToken      – token stamped on the held seat-map entries.
//	Snapshot       – frozen catalog data, written once at creation.
//	Notes          – optional free text.
//	DateReserved   – creation time.
//	ExpiresAt      – end of the hold; checkout after this fails.
//	DateCancelled  – set when the reservation is cancelled.
type Reservation struct {
	ID             uint64            `json:"id"`                       // reservations.id
	UserID         uint64            `json:"user_id"`                  // reservations.user_id
	ShowingID      uint64            `json:"showing_id"`               // reservations.showing_id
	Type           ReservationType   `json:"type"`                     // reservations.type
	SeatMapIDs     []uint64          `json:"seat_map_ids,omitempty"`   // reservation_seat_maps.seat_map_id
	TicketCount    uint32            `json:"ticket_count"`             // reservations.ticket_count
	PricePaidCents int64             `json:"price_paid_cents"`         // reservations.price_paid_cents
	Currency       string            `json:"currency"`                 // reservations.currency
	Status         ReservationStatus `json:"status"`                   // reservations.status
	LockToken      string            `json:"-"`                        // reservations.lock_token
	Snapshot       json.RawMessage   `json:"snapshot"`                 // reservations.snapshot
	Notes          *string           `json:"notes,omitempty"`          // reservations.notes (nullable)
	DateReserved   time.Time         `json:"date_reserved"`            // reservations.date_reserved
	ExpiresAt      time.Time         `json:"expires_at"`               // reservations.expires_at
	DateCancelled  *time.Time        `json:"date_cancelled,omitempty"` // reservations.date_cancelled (nullable)
}

// Expired reports whether the hold has lapsed at the given instant.
func (r Reservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
