// Package queue defines message payloads exchanged over the message broker
// and the publishers and consumer that move them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types.  They travel as the AMQP message Type and the
// Kafka message header "event_type"; every type shares the one AMQP queue.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationPaid      = "reservation.paid"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after every committed reservation
// transition.  It carries enough information for downstream consumers to
// log, notify or trigger analytics without querying the primary database.
type ReservationEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	EventVersion   int       `json:"event_version"`
	OccurredAt     time.Time `json:"occurred_at"`
	ReservationID  uint64    `json:"reservation_id"`
	UserID         uint64    `json:"user_id"`
	ShowingID      uint64    `json:"showing_id"`
	Type           string    `json:"reservation_type"`
	Status         string    `json:"status"`
	TicketCount    uint32    `json:"ticket_count"`
	PricePaidCents int64     `json:"price_paid_cents"`
	Currency       string    `json:"currency"`
	MovieTitle     string    `json:"movie_title,omitempty"`
	TheatreName    string    `json:"theatre_name,omitempty"`
	SeatLabels     []string  `json:"seats,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

// NewEvent returns an event with a fresh id stamped at the given time.
func NewEvent(eventType string, at time.Time) ReservationEvent {
	return ReservationEvent{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   at.UTC(),
	}
}
