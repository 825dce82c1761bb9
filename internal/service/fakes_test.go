package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// fakeDB is an in-memory store.  Each method holds the mutex for its whole
// body, which gives every statement the per-row atomicity MySQL provides.
type fakeDB struct {
	mu sync.Mutex

	movies   map[uint64]model.Movie
	theatres map[uint64]model.Theatre
	screens  map[uint64]model.Screen
	seats    map[uint64]model.Seat
	showings map[uint64]model.Showing
	seatMaps map[uint64]model.SeatMapEntry
	resv     map[uint64]model.Reservation
	backrefs []model.BackRef

	nextID     uint64
	seatWrites int64

	failReservationCreate error
	failPush              error
	failRelease           error
	failSeatMapCreate     error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		movies:   map[uint64]model.Movie{},
		theatres: map[uint64]model.Theatre{},
		screens:  map[uint64]model.Screen{},
		seats:    map[uint64]model.Seat{},
		showings: map[uint64]model.Showing{},
		seatMaps: map[uint64]model.SeatMapEntry{},
		resv:     map[uint64]model.Reservation{},
		nextID:   1000,
	}
}

func (db *fakeDB) id() uint64 {
	db.nextID++
	return db.nextID
}

func (db *fakeDB) seatMap(id uint64) model.SeatMapEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.seatMaps[id]
}

func (db *fakeDB) writes() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.seatWrites
}

// ---- seat maps ----

type fakeSeatMaps struct{ *fakeDB }

func (f fakeSeatMaps) UpdateStatus(_ context.Context, u repository.StatusUpdate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.To == model.SeatAvailable && f.failRelease != nil {
		return 0, f.failRelease
	}
	var n int64
	for _, id := range u.IDs {
		e, ok := f.seatMaps[id]
		if !ok {
			continue
		}
		match := false
		for _, s := range u.From {
			if e.Status == s {
				match = true
			}
		}
		if !match || (u.MatchToken != "" && e.LockToken != u.MatchToken) {
			continue
		}
		e.Status = u.To
		e.LockToken = u.SetToken
		f.seatMaps[id] = e
		n++
	}
	f.seatWrites += n
	return n, nil
}

func (f fakeSeatMaps) withSeat(e model.SeatMapEntry) (model.SeatMapEntry, bool) {
	seat, ok := f.seats[e.SeatID]
	if !ok {
		return e, false
	}
	e.Seat = &seat
	return e, true
}

func (f fakeSeatMaps) ListByIDs(_ context.Context, ids []uint64) ([]model.SeatMapEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SeatMapEntry
	for _, id := range ids {
		if e, ok := f.seatMaps[id]; ok {
			if e, ok := f.withSeat(e); ok {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeSeatMaps) ListByShowing(_ context.Context, showingID uint64) ([]model.SeatMapEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SeatMapEntry
	for _, e := range f.seatMaps {
		if e.ShowingID == showingID {
			if e, ok := f.withSeat(e); ok {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeSeatMaps) CreateBulk(_ context.Context, entries []model.SeatMapEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range entries {
		if i > 0 && f.failSeatMapCreate != nil {
			return f.failSeatMapCreate
		}
		for _, existing := range f.seatMaps {
			if existing.ShowingID == e.ShowingID && existing.SeatID == e.SeatID {
				return errors.New("duplicate (showing_id, seat_id)")
			}
		}
		e.ID = f.id()
		f.seatMaps[e.ID] = e
	}
	return nil
}

func (f fakeSeatMaps) DeleteByShowing(_ context.Context, showingID uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint64
	for id, e := range f.seatMaps {
		if e.ShowingID == showingID {
			ids = append(ids, id)
			delete(f.seatMaps, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ---- showings ----

type fakeShowings struct{ *fakeDB }

func (f fakeShowings) GetByID(_ context.Context, id uint64) (*model.Showing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.showings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f fakeShowings) ReserveCapacity(_ context.Context, id uint64, n uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.showings[id]
	if !ok || s.GAReserved+n > s.GACapacity {
		return false, nil
	}
	s.GAReserved += n
	f.showings[id] = s
	return true, nil
}

func (f fakeShowings) ReleaseCapacity(_ context.Context, id uint64, n uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.showings[id]
	if s.GAReserved >= n {
		s.GAReserved -= n
	} else {
		s.GAReserved = 0
	}
	f.showings[id] = s
	return nil
}

func (f fakeShowings) Create(_ context.Context, s *model.Showing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = f.id()
	f.showings[s.ID] = *s
	return nil
}

func (f fakeShowings) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.showings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.showings, id)
	return nil
}

func (f fakeShowings) Overlaps(_ context.Context, screenID, excludeID uint64, start, end time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.showings {
		if s.ScreenID == screenID && s.ID != excludeID && s.StartsAt.Before(end) && s.EndsAt.After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeShowings) CountReservations(_ context.Context, id uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.resv {
		if r.ShowingID == id {
			n++
		}
	}
	return n, nil
}

// ---- catalog ----

type fakeCatalog struct{ *fakeDB }

func (f fakeCatalog) GetMovie(_ context.Context, id uint64) (*model.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.movies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (f fakeCatalog) GetTheatre(_ context.Context, id uint64) (*model.Theatre, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.theatres[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (f fakeCatalog) GetScreen(_ context.Context, id uint64) (*model.Screen, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

// ---- seats ----

type fakeSeats struct{ *fakeDB }

func (f fakeSeats) Create(_ context.Context, s *model.Seat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = f.id()
	f.seats[s.ID] = *s
	return nil
}

func (f fakeSeats) GetByID(_ context.Context, id uint64) (*model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f fakeSeats) Update(_ context.Context, s *model.Seat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seats[s.ID]; !ok {
		return repository.ErrNotFound
	}
	f.seats[s.ID] = *s
	return nil
}

func (f fakeSeats) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seats[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.seats, id)
	return nil
}

func (f fakeSeats) ListByIDs(_ context.Context, ids []uint64) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Seat
	for _, id := range ids {
		if s, ok := f.seats[id]; ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- reservations ----

type fakeReservations struct{ *fakeDB }

func cloneReservation(r model.Reservation) model.Reservation {
	r.SeatMapIDs = append([]uint64(nil), r.SeatMapIDs...)
	r.Snapshot = bytes.Clone(r.Snapshot)
	if r.DateCancelled != nil {
		t := *r.DateCancelled
		r.DateCancelled = &t
	}
	return r
}

func (f fakeReservations) Create(_ context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReservationCreate != nil {
		return f.failReservationCreate
	}
	r.ID = f.id()
	f.resv[r.ID] = cloneReservation(*r)
	return nil
}

func (f fakeReservations) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resv[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r = cloneReservation(r)
	return &r, nil
}

func (f fakeReservations) list(keep func(model.Reservation) bool) []model.Reservation {
	var out []model.Reservation
	for _, r := range f.resv {
		if keep(r) {
			out = append(out, cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f fakeReservations) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(func(r model.Reservation) bool { return r.UserID == userID }), nil
}

func (f fakeReservations) ListByShowing(_ context.Context, showingID uint64) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(func(r model.Reservation) bool { return r.ShowingID == showingID }), nil
}

func (f fakeReservations) UpdateStatus(_ context.Context, id uint64, from, to model.ReservationStatus, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resv[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	if to == model.ReservationCancelled {
		t := at.UTC()
		r.DateCancelled = &t
	}
	f.resv[id] = r
	return true, nil
}

func (f fakeReservations) ListExpired(_ context.Context, now time.Time, limit int) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint64
	for _, r := range f.list(func(r model.Reservation) bool {
		return r.Status == model.ReservationReserved && !r.ExpiresAt.After(now)
	}) {
		if len(ids) == limit {
			break
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// ---- back-references ----

type fakeBackrefs struct{ *fakeDB }

func (f fakeBackrefs) Pull(_ context.Context, children []model.EntityRef) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[model.EntityRef]bool, len(children))
	for _, c := range children {
		drop[c] = true
	}
	kept := f.backrefs[:0]
	var n int64
	for _, b := range f.backrefs {
		if drop[b.Child] {
			n++
			continue
		}
		kept = append(kept, b)
	}
	f.backrefs = kept
	return n, nil
}

func (f fakeBackrefs) Push(_ context.Context, links []model.BackRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPush != nil {
		return f.failPush
	}
	f.backrefs = append(f.backrefs, links...)
	return nil
}

func (f fakeBackrefs) Children(_ context.Context, parent model.EntityRef, kind model.EntityKind) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[uint64]bool{}
	var ids []uint64
	for _, b := range f.backrefs {
		if b.Parent == parent && b.Child.Kind == kind && !seen[b.Child.ID] {
			seen[b.Child.ID] = true
			ids = append(ids, b.Child.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f fakeBackrefs) CountChildren(ctx context.Context, parent model.EntityRef, kind model.EntityKind) (int, error) {
	ids, err := f.Children(ctx, parent, kind)
	return len(ids), err
}

func (f fakeBackrefs) PruneDuplicates(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[model.BackRef]bool{}
	kept := f.backrefs[:0]
	var n int64
	for _, b := range f.backrefs {
		if seen[b] {
			n++
			continue
		}
		seen[b] = true
		kept = append(kept, b)
	}
	f.backrefs = kept
	return n, nil
}

// ---- publisher ----

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// ---- fixture ----

const (
	ownerID     = 500
	customerID  = 42
	otherUserID = 43
	showingID   = 7
	otherShowID = 8
)

type fixture struct {
	db  *fakeDB
	now time.Time
	pub *recordingPublisher
	svc *ReservationService
}

// newFixture seeds one theatre with a four-seat screen and two showings.
// Showing 7 has seat maps 10 (A1), 11 (A2), 12 (A3 VIP) and 13 (A4,
// UNAVAILABLE) plus two general-admission places.  Showing 8 has seat map 20.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newFakeDB()
	start := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)

	db.movies[1] = model.Movie{ID: 1, Title: "Heat", DurationMinutes: 170, Rating: "R"}
	db.theatres[1] = model.Theatre{ID: 1, OwnerID: ownerID, Name: "Grand", Address: "1 Main St", Timezone: "UTC"}
	db.screens[1] = model.Screen{ID: 1, TheatreID: 1, Name: "Screen 1", Format: "2D", IsActive: true}
	db.screens[2] = model.Screen{ID: 2, TheatreID: 1, Name: "Screen 2", Format: "IMAX", IsActive: true}
	for i, typ := range []string{model.SeatTypeStandard, model.SeatTypeStandard, model.SeatTypeVIP, model.SeatTypeStandard} {
		id := uint64(100 + i)
		db.seats[id] = model.Seat{ID: id, TheatreID: 1, ScreenID: 1, RowLabel: "A", SeatNumber: uint32(i + 1), SeatType: typ, IsActive: i != 3}
	}
	db.showings[showingID] = model.Showing{ID: showingID, MovieID: 1, TheatreID: 1, ScreenID: 1,
		StartsAt: start, EndsAt: start.Add(3 * time.Hour), BasePriceCents: 1000,
		IsActive: true, Status: model.ShowingScheduled, GACapacity: 2}
	db.showings[otherShowID] = model.Showing{ID: otherShowID, MovieID: 1, TheatreID: 1, ScreenID: 1,
		StartsAt: start.Add(24 * time.Hour), EndsAt: start.Add(27 * time.Hour), BasePriceCents: 1000,
		IsActive: true, Status: model.ShowingScheduled}
	for i := 0; i < 4; i++ {
		id := uint64(10 + i)
		status := model.SeatAvailable
		if i == 3 {
			status = model.SeatUnavailable
		}
		db.seatMaps[id] = model.SeatMapEntry{ID: id, ShowingID: showingID, SeatID: uint64(100 + i),
			BasePriceCents: 1000, PriceMultiplier: model.PriceMultiplierFor(db.seats[uint64(100+i)].SeatType), Status: status}
	}
	db.seatMaps[20] = model.SeatMapEntry{ID: 20, ShowingID: otherShowID, SeatID: 100, BasePriceCents: 1000, PriceMultiplier: 1, Status: model.SeatAvailable}

	f := &fixture{db: db, now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), pub: &recordingPublisher{}}
	f.svc = NewReservationService(
		fakeReservations{db}, fakeShowings{db}, fakeSeatMaps{db}, fakeCatalog{db},
		WithClock(func() time.Time { return f.now }),
		WithPublisher(f.pub),
	)
	return f
}

func (f *fixture) reserveSeats(t *testing.T, ids ...uint64) *model.Reservation {
	t.Helper()
	res, err := f.svc.Create(context.Background(), CreateReservationInput{
		UserID: customerID, ShowingID: showingID, Type: model.ReservedSeats, SeatMapIDs: ids,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return res
}
