package model

import (
	"math"
	"time"
)

// SeatMapStatus is the availability state of one seat for one showing.
type SeatMapStatus string

const (
	SeatUnavailable SeatMapStatus = "UNAVAILABLE"
	SeatAvailable   SeatMapStatus = "AVAILABLE"
	SeatPending     SeatMapStatus = "PENDING"
	SeatReserved    SeatMapStatus = "RESERVED"
	SeatSold        SeatMapStatus = "SOLD"
)

// seatTransitions lists, for every state, the states it may move into.
// Expiry is not modelled here; a seat only leaves PENDING or RESERVED when
// the reservation lifecycle releases or sells it.
var seatTransitions = map[SeatMapStatus]map[SeatMapStatus]bool{
	SeatUnavailable: {SeatAvailable: true},
	SeatAvailable:   {SeatPending: true, SeatUnavailable: true},
	SeatPending:     {SeatAvailable: true, SeatReserved: true, SeatSold: true},
	SeatReserved:    {SeatSold: true, SeatAvailable: true},
	SeatSold:        {SeatAvailable: true},
}

// Valid reports whether s is one of the known seat-map states.
func (s SeatMapStatus) Valid() bool {
	_, ok := seatTransitions[s]
	return ok
}

// CanTransition reports whether a seat-map entry may move from one state to another.
func CanTransition(from, to SeatMapStatus) bool {
	return seatTransitions[from][to]
}

// Sources returns every state that is allowed to move into to, in a stable
// order. The locking service builds its conditional-update predicates from
// this list so that no write can bypass the transition table.
func Sources(to SeatMapStatus) []SeatMapStatus {
	order := []SeatMapStatus{SeatUnavailable, SeatAvailable, SeatPending, SeatReserved, SeatSold}
	out := make([]SeatMapStatus, 0, len(order))
	for _, from := range order {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// SeatMapEntry is the bookable unit: one row per (showing, seat) pair.
// Prices are fixed when the showing is created.
//
// Fields:
//
//	ID                 – seat_maps.id
//	ShowingID          – showing the entry belongs to (owner, cascade-deleted with it).
//	SeatID             – physical seat.
//	BasePriceCents     – showing base price copied at creation.
//	PriceMultiplier    – seat-type multiplier applied to the base price.
//	OverridePriceCents – optional fixed price that wins over base × multiplier.
//	Status             – current SeatMapStatus.
//	LockToken          – token of the booking attempt currently holding the seat.
type SeatMapEntry struct {
	ID                 uint64        `json:"id"`
	ShowingID          uint64        `json:"showing_id"`
	SeatID             uint64        `json:"seat_id"`
	BasePriceCents     int64         `json:"base_price_cents"`
	PriceMultiplier    float64       `json:"price_multiplier"`
	OverridePriceCents *int64        `json:"override_price_cents,omitempty"`
	Status             SeatMapStatus `json:"status"`
	LockToken          string        `json:"-"`
	UpdatedAt          time.Time     `json:"updated_at"`

	// Seat is populated on read-back after a successful lock so the
	// snapshot factory does not need a second round trip per seat.
	Seat *Seat `json:"seat,omitempty"`
}

// EffectivePriceCents returns the price charged for this entry: the override
// when present, otherwise the base price scaled by the multiplier and rounded
// to the nearest cent.
func (e SeatMapEntry) EffectivePriceCents() int64 {
	if e.OverridePriceCents != nil {
		return *e.OverridePriceCents
	}
	m := e.PriceMultiplier
	if m <= 0 {
		m = 1
	}
	return int64(math.Round(float64(e.BasePriceCents) * m))
}

// PriceMultiplierFor returns the default multiplier for a seat type.
func PriceMultiplierFor(seatType string) float64 {
	switch seatType {
	case SeatTypeVIP:
		return 1.5
	default:
		return 1.0
	}
}
