// Package redisx holds the Redis-backed helpers of the booking API.
package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned by Claim when another request holding the same
// key has not finished yet.
var ErrInFlight = errors.New("idempotency key in flight")

// inFlight marks a claimed key whose reservation does not exist yet.
const inFlight = "0"

// KV is the subset of redis.Cmdable the idempotency store uses.
type KV interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Idempotency maps client-supplied Idempotency-Key headers to the
// reservation they created, scoped per user.
type Idempotency struct {
	rdb KV
}

// NewIdempotency returns a store over rdb.
func NewIdempotency(rdb KV) *Idempotency {
	return &Idempotency{rdb: rdb}
}

func createKey(userID uint64, key string) string {
	return fmt.Sprintf(KeyIdemReservationCreate, userID, key)
}

// Claim reserves key for a new request.  When the key already completed it
// returns the reservation id it produced and claimed=false.  When the key is
// held by a request still running it returns ErrInFlight.
func (s *Idempotency) Claim(ctx context.Context, userID uint64, key string) (existing uint64, claimed bool, err error) {
	k := createKey(userID, key)
	ok, err := s.rdb.SetNX(ctx, k, inFlight, TTLInFlight).Result()
	if err != nil {
		return 0, false, err
	}
	if ok {
		return 0, true, nil
	}
	v, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; let the caller retry.
		return 0, false, ErrInFlight
	}
	if err != nil {
		return 0, false, err
	}
	if v == inFlight {
		return 0, false, ErrInFlight
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency value %q: %w", v, err)
	}
	return id, false, nil
}

// Complete records the reservation a claimed key produced.
func (s *Idempotency) Complete(ctx context.Context, userID uint64, key string, reservationID uint64) error {
	return s.rdb.Set(ctx, createKey(userID, key), strconv.FormatUint(reservationID, 10), TTLIdempotency).Err()
}

// Abort frees a claimed key after a failed request so the client can retry.
func (s *Idempotency) Abort(ctx context.Context, userID uint64, key string) error {
	return s.rdb.Del(ctx, createKey(userID, key)).Err()
}
