package redisx

import "time"

const (
	// Idempotent create: idem:reservation:create:{user_id}:{key} -> reservation_id
	KeyIdemReservationCreate = "idem:reservation:create:%d:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// TTLInFlight bounds how long a claimed but unfinished key blocks retries.
	TTLInFlight = 30 * time.Second
)
