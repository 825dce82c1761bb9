package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// SeatMapStore is the persistence the locker needs: one conditional bulk
// status write with a modified count, and a multi-row read.
type SeatMapStore interface {
	UpdateStatus(ctx context.Context, u repository.StatusUpdate) (int64, error)
	ListByIDs(ctx context.Context, ids []uint64) ([]model.SeatMapEntry, error)
}

// Lock is the outcome of a successful LockSeats call.  Token identifies the
// hold; every later transition of the same seats must present it.
type Lock struct {
	Token   string
	Entries []model.SeatMapEntry
}

// SeatLocker is the only writer of seat-map status.  Every method issues a
// single conditional UPDATE whose predicates come from the status machine.
type SeatLocker struct {
	store    SeatMapStore
	newToken func() (string, error)
}

// NewSeatLocker returns a SeatLocker backed by store.
func NewSeatLocker(store SeatMapStore) *SeatLocker {
	return &SeatLocker{store: store, newToken: func() (string, error) { return randomToken(16) }}
}

// randomToken generates a random hexadecimal string of length n*2 bytes.
// 16 bytes fill the CHAR(32) lock_token column.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// uniqueIDs drops duplicates and zero IDs, keeping first-seen order.
func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// LockSeats moves every requested entry from AVAILABLE to PENDING or none
// of them.  The write stamps a fresh token; when fewer rows matched than
// were requested, the rows carrying that token are put back to AVAILABLE
// and a SeatAlreadyReserved error is returned.  An empty request returns
// a zero Lock without touching the store.
func (l *SeatLocker) LockSeats(ctx context.Context, ids []uint64) (Lock, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return Lock{}, nil
	}
	token, err := l.newToken()
	if err != nil {
		return Lock{}, apperr.Internal("generate lock token", err)
	}

	n, err := l.store.UpdateStatus(ctx, repository.StatusUpdate{
		IDs:      ids,
		From:     model.Sources(model.SeatPending),
		To:       model.SeatPending,
		SetToken: token,
	})
	if err != nil {
		// The write may have partially applied before the error surfaced.
		l.revert(ctx, token, ids)
		return Lock{}, apperr.Internal("lock seats", err)
	}
	if n < int64(len(ids)) {
		l.revert(ctx, token, ids)
		return Lock{}, apperr.SeatAlreadyReserved(l.unavailable(ctx, ids))
	}

	entries, err := l.store.ListByIDs(ctx, ids)
	if err != nil {
		l.revert(ctx, token, ids)
		return Lock{}, apperr.Internal("read locked seats", err)
	}
	for _, e := range entries {
		if e.Status != model.SeatPending || e.LockToken != token {
			l.revert(ctx, token, ids)
			return Lock{}, apperr.Internal("read locked seats",
				fmt.Errorf("seat map %d is %s after lock", e.ID, e.Status))
		}
	}
	return Lock{Token: token, Entries: entries}, nil
}

// revert undoes this caller's partial lock.  Only rows stamped with token
// match, so seats locked by a concurrent winner are never touched.
func (l *SeatLocker) revert(ctx context.Context, token string, ids []uint64) {
	n, err := l.store.UpdateStatus(context.WithoutCancel(ctx), repository.StatusUpdate{
		IDs:        ids,
		From:       []model.SeatMapStatus{model.SeatPending},
		To:         model.SeatAvailable,
		MatchToken: token,
	})
	if err != nil {
		log.Printf("booking: revert of partial lock %s failed for seat maps %v: %v", token, ids, err)
		return
	}
	if n > 0 {
		log.Printf("booking: reverted %d seat map(s) after lock conflict", n)
	}
}

// unavailable reports which requested entries are not AVAILABLE right now.
// It is informational; a failed read yields nil.
func (l *SeatLocker) unavailable(ctx context.Context, ids []uint64) []uint64 {
	entries, err := l.store.ListByIDs(ctx, ids)
	if err != nil {
		return nil
	}
	var out []uint64
	for _, e := range entries {
		if e.Status != model.SeatAvailable {
			out = append(out, e.ID)
		}
	}
	return out
}

// Promote moves held seats from PENDING to RESERVED once the reservation
// that holds them has been persisted.
func (l *SeatLocker) Promote(ctx context.Context, token string, ids []uint64) (int64, error) {
	return l.transition(ctx, token, ids, model.SeatReserved, token)
}

// Sell moves held seats to SOLD.  It returns how many rows moved; a
// shortfall means some of them were released concurrently.
func (l *SeatLocker) Sell(ctx context.Context, token string, ids []uint64) (int64, error) {
	return l.transition(ctx, token, ids, model.SeatSold, token)
}

// ReleaseSeats returns held seats to AVAILABLE and clears their token.  It
// is idempotent: entries that are already AVAILABLE, or now held under a
// different token, do not match and are left alone.
func (l *SeatLocker) ReleaseSeats(ctx context.Context, token string, ids []uint64) (int64, error) {
	return l.transition(ctx, token, ids, model.SeatAvailable, "")
}

func (l *SeatLocker) transition(ctx context.Context, token string, ids []uint64, to model.SeatMapStatus, setToken string) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	if token == "" {
		return 0, apperr.Internal("seat transition", fmt.Errorf("missing lock token for %s", to))
	}
	var from []model.SeatMapStatus
	for _, s := range model.Sources(to) {
		// UNAVAILABLE rows never carry a token; keep them out of the predicate.
		if s != model.SeatUnavailable {
			from = append(from, s)
		}
	}
	n, err := l.store.UpdateStatus(ctx, repository.StatusUpdate{
		IDs:        ids,
		From:       from,
		To:         to,
		MatchToken: token,
		SetToken:   setToken,
	})
	if err != nil {
		return 0, apperr.Internal("update seat status", err)
	}
	return n, nil
}
