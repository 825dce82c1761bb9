package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

type catalogFixture struct {
	db        *fakeDB
	integrity *IntegrityMaintainer
	seats     *SeatService
	showings  *ShowingService
}

// newCatalogFixture seeds a theatre with two empty screens and a movie.
func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	db := newFakeDB()
	db.movies[1] = model.Movie{ID: 1, Title: "Heat", DurationMinutes: 170}
	db.theatres[1] = model.Theatre{ID: 1, OwnerID: ownerID, Name: "Grand", Address: "1 Main St", Timezone: "UTC"}
	db.theatres[2] = model.Theatre{ID: 2, OwnerID: ownerID + 1, Name: "Rival", Address: "9 High St", Timezone: "UTC"}
	db.screens[1] = model.Screen{ID: 1, TheatreID: 1, Name: "Screen 1", IsActive: true}
	db.screens[2] = model.Screen{ID: 2, TheatreID: 1, Name: "Screen 2", IsActive: true}
	db.screens[3] = model.Screen{ID: 3, TheatreID: 2, Name: "Rival 1", IsActive: true}

	integrity := NewIntegrityMaintainer(fakeBackrefs{db})
	return &catalogFixture{
		db:        db,
		integrity: integrity,
		seats:     NewSeatService(fakeSeats{db}, fakeCatalog{db}, integrity),
		showings:  NewShowingService(fakeShowings{db}, fakeSeatMaps{db}, fakeSeats{db}, fakeCatalog{db}, integrity),
	}
}

func (c *catalogFixture) addSeat(t *testing.T, screenID uint64, row string, n uint32, typ string, active bool) *model.Seat {
	t.Helper()
	seat := &model.Seat{ScreenID: screenID, RowLabel: row, SeatNumber: n, SeatType: typ, IsActive: active}
	if err := c.seats.Create(context.Background(), ownerID, seat); err != nil {
		t.Fatalf("create seat: %v", err)
	}
	return seat
}

func TestSeatCreateListsOnParents(t *testing.T) {
	c := newCatalogFixture(t)
	ctx := context.Background()
	seat := c.addSeat(t, 1, "B", 4, "", true)

	if seat.TheatreID != 1 || seat.SeatType != model.SeatTypeStandard {
		t.Errorf("seat = %+v", seat)
	}
	for _, parent := range []model.EntityRef{model.Ref(model.KindTheatre, 1), model.Ref(model.KindScreen, 1)} {
		ids, _ := c.integrity.Children(ctx, parent, model.KindSeat)
		if !reflect.DeepEqual(ids, []uint64{seat.ID}) {
			t.Errorf("%s seats = %v", parent, ids)
		}
	}

	err := c.seats.Create(ctx, ownerID, &model.Seat{ScreenID: 3, RowLabel: "A", SeatNumber: 1})
	if !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("seat on another owner's screen: got %v", err)
	}
	err = c.seats.Create(ctx, ownerID, &model.Seat{ScreenID: 1, RowLabel: "A", SeatNumber: 1, SeatType: "BALCONY"})
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Errorf("bad seat type: got %v", err)
	}
}

func TestSeatMoveAndDelete(t *testing.T) {
	c := newCatalogFixture(t)
	ctx := context.Background()
	seat := c.addSeat(t, 1, "A", 1, model.SeatTypeVIP, true)

	screen2 := uint64(2)
	row := "C"
	moved, err := c.seats.Move(ctx, ownerID, seat.ID, SeatPatch{ScreenID: &screen2, RowLabel: &row})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.ScreenID != 2 || moved.Label() != "C1" {
		t.Errorf("moved seat = %+v", moved)
	}
	if n, _ := c.integrity.CountChildren(ctx, model.Ref(model.KindScreen, 1), model.KindSeat); n != 0 {
		t.Errorf("old screen still lists the seat")
	}
	if n, _ := c.integrity.CountChildren(ctx, model.Ref(model.KindScreen, 2), model.KindSeat); n != 1 {
		t.Errorf("new screen does not list the seat")
	}

	rival := uint64(3)
	if _, err := c.seats.Move(ctx, ownerID, seat.ID, SeatPatch{ScreenID: &rival}); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("move to another owner's screen: got %v", err)
	}

	if err := c.seats.Delete(ctx, ownerID, seat.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(c.db.backrefs) != 0 {
		t.Errorf("back-references left after delete: %v", c.db.backrefs)
	}
	if err := c.seats.Delete(ctx, ownerID, seat.ID); !apperr.Is(err, apperr.CodeSourceNotFound) {
		t.Errorf("second delete: got %v", err)
	}
}

func TestShowingCreateBuildsSeatMap(t *testing.T) {
	c := newCatalogFixture(t)
	ctx := context.Background()
	std := c.addSeat(t, 1, "A", 1, model.SeatTypeStandard, true)
	vip := c.addSeat(t, 1, "A", 2, model.SeatTypeVIP, true)
	broken := c.addSeat(t, 1, "A", 3, model.SeatTypeAccessible, false)
	c.addSeat(t, 2, "A", 1, model.SeatTypeStandard, true)

	start := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)
	showing, entries, err := c.showings.Create(ctx, ownerID, CreateShowingInput{
		MovieID: 1, TheatreID: 1, ScreenID: 1,
		StartsAt: start, EndsAt: start.Add(2 * time.Hour), BasePriceCents: 1200,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if showing.Status != model.ShowingScheduled || !showing.IsActive {
		t.Errorf("showing = %+v", showing)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d seat-map entries, want 3 (screen 1 only)", len(entries))
	}
	bySeat := map[uint64]model.SeatMapEntry{}
	for _, e := range entries {
		bySeat[e.SeatID] = e
	}
	if e := bySeat[std.ID]; e.Status != model.SeatAvailable || e.EffectivePriceCents() != 1200 {
		t.Errorf("standard entry = %+v", e)
	}
	if e := bySeat[vip.ID]; e.EffectivePriceCents() != 1800 {
		t.Errorf("vip price = %d, want 1800", e.EffectivePriceCents())
	}
	if e := bySeat[broken.ID]; e.Status != model.SeatUnavailable {
		t.Errorf("inactive seat entry = %s, want UNAVAILABLE", e.Status)
	}

	showingRef := model.Ref(model.KindShowing, showing.ID)
	if n, _ := c.integrity.CountChildren(ctx, showingRef, model.KindSeatMap); n != 3 {
		t.Errorf("showing lists %d seat maps, want 3", n)
	}
	if n, _ := c.integrity.CountChildren(ctx, model.Ref(model.KindMovie, 1), model.KindShowing); n != 1 {
		t.Errorf("movie lists %d showings, want 1", n)
	}

	_, _, err = c.showings.Create(ctx, ownerID, CreateShowingInput{
		MovieID: 1, TheatreID: 1, ScreenID: 1,
		StartsAt: start.Add(time.Hour), EndsAt: start.Add(3 * time.Hour), BasePriceCents: 1200,
	})
	if !apperr.Is(err, apperr.CodeConflict) {
		t.Errorf("overlapping showing: got %v", err)
	}
}

func TestShowingCreateRollsBackOnSeatMapFailure(t *testing.T) {
	c := newCatalogFixture(t)
	ctx := context.Background()
	c.addSeat(t, 1, "A", 1, model.SeatTypeStandard, true)
	c.addSeat(t, 1, "A", 2, model.SeatTypeStandard, true)
	c.db.failSeatMapCreate = errors.New("deadlock found")

	start := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)
	in := CreateShowingInput{
		MovieID: 1, TheatreID: 1, ScreenID: 1,
		StartsAt: start, EndsAt: start.Add(2 * time.Hour), BasePriceCents: 1200,
	}
	if _, _, err := c.showings.Create(ctx, ownerID, in); !apperr.Is(err, apperr.CodeInternal) {
		t.Fatalf("got %v, want an internal error", err)
	}
	if len(c.db.showings) != 0 {
		t.Errorf("showing left behind: %+v", c.db.showings)
	}
	if len(c.db.seatMaps) != 0 {
		t.Errorf("partial seat map left behind: %d rows", len(c.db.seatMaps))
	}
	for _, parent := range []model.EntityRef{
		model.Ref(model.KindMovie, 1),
		model.Ref(model.KindTheatre, 1),
		model.Ref(model.KindScreen, 1),
	} {
		if n, _ := c.integrity.CountChildren(ctx, parent, model.KindShowing); n != 0 {
			t.Errorf("%v still lists %d showing(s)", parent, n)
		}
	}

	// The slot is free again once the store recovers.
	c.db.failSeatMapCreate = nil
	if _, entries, err := c.showings.Create(ctx, ownerID, in); err != nil || len(entries) != 2 {
		t.Fatalf("retry Create = %d entries, %v", len(entries), err)
	}
}

func TestShowingCreateRejections(t *testing.T) {
	start := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		owner uint64
		in    CreateShowingInput
		code  apperr.Code
	}{
		{"ends before start", ownerID, CreateShowingInput{MovieID: 1, TheatreID: 1, ScreenID: 1, StartsAt: start, EndsAt: start}, apperr.CodeValidation},
		{"unknown movie", ownerID, CreateShowingInput{MovieID: 9, TheatreID: 1, ScreenID: 1, StartsAt: start, EndsAt: start.Add(time.Hour)}, apperr.CodeSourceNotFound},
		{"not the owner", ownerID + 1, CreateShowingInput{MovieID: 1, TheatreID: 1, ScreenID: 1, StartsAt: start, EndsAt: start.Add(time.Hour)}, apperr.CodeForbidden},
		{"screen of another theatre", ownerID, CreateShowingInput{MovieID: 1, TheatreID: 1, ScreenID: 3, StartsAt: start, EndsAt: start.Add(time.Hour)}, apperr.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCatalogFixture(t)
			_, _, err := c.showings.Create(context.Background(), tt.owner, tt.in)
			if !apperr.Is(err, tt.code) {
				t.Fatalf("got %v, want %s", err, tt.code)
			}
		})
	}
}

func TestShowingDelete(t *testing.T) {
	c := newCatalogFixture(t)
	ctx := context.Background()
	c.addSeat(t, 1, "A", 1, model.SeatTypeStandard, true)
	start := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)
	showing, _, err := c.showings.Create(ctx, ownerID, CreateShowingInput{
		MovieID: 1, TheatreID: 1, ScreenID: 1, StartsAt: start, EndsAt: start.Add(2 * time.Hour), BasePriceCents: 1000,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := c.showings.Delete(ctx, ownerID+1, showing.ID); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("delete by another owner: got %v", err)
	}

	c.db.resv[1] = model.Reservation{ID: 1, ShowingID: showing.ID, Status: model.ReservationCancelled}
	if err := c.showings.Delete(ctx, ownerID, showing.ID); !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("delete with reservations: got %v", err)
	}
	delete(c.db.resv, 1)

	if err := c.showings.Delete(ctx, ownerID, showing.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(c.db.seatMaps) != 0 {
		t.Errorf("seat maps left: %d", len(c.db.seatMaps))
	}
	for _, b := range c.db.backrefs {
		if b.Child.Kind == model.KindShowing || b.Child.Kind == model.KindSeatMap {
			t.Errorf("stale back-reference %v", b)
		}
	}
}
