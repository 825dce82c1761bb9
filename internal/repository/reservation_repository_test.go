package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

func TestReservationCreateWritesLinksInOneTx(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	snap := json.RawMessage(`{"movie":{"title":"Heat"}}`)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WithArgs(int64(42), int64(7), "RESERVED_SEATS", int64(2), int64(2400), "USD", "RESERVED", "tok",
			[]byte(snap), nil, now, now.Add(10*time.Minute)).
		WillReturnResult(sqlmock.NewResult(99, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservation_seat_maps (reservation_id, seat_map_id) VALUES (?, ?),(?, ?)")).
		WithArgs(int64(99), int64(10), int64(99), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	res := &model.Reservation{
		UserID: 42, ShowingID: 7, Type: model.ReservedSeats, SeatMapIDs: []uint64{10, 11},
		TicketCount: 2, PricePaidCents: 2400, Currency: "USD", Status: model.ReservationReserved,
		LockToken: "tok", Snapshot: snap, DateReserved: now, ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := NewReservationRepo(db).Create(context.Background(), res); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.ID != 99 {
		t.Fatalf("ID = %d, want 99", res.ID)
	}
}

func TestReservationCreateRollsBackOnLinkFailure(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservation_seat_maps")).WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := NewReservationRepo(db).Create(context.Background(), &model.Reservation{
		Type: model.ReservedSeats, SeatMapIDs: []uint64{1}, Status: model.ReservationReserved, Snapshot: json.RawMessage(`{}`),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestReservationUpdateStatusIsConditional(t *testing.T) {
	at := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		from, to model.ReservationStatus
		sql      string
		args     []driver.Value
		affected int64
		want     bool
	}{
		{
			name: "pay", from: model.ReservationReserved, to: model.ReservationPaid,
			sql:  "UPDATE reservations SET status = ? WHERE id = ? AND status = ?",
			args: []driver.Value{"PAID", int64(3), "RESERVED"}, affected: 1, want: true,
		},
		{
			name: "cancel records timestamp", from: model.ReservationPaid, to: model.ReservationCancelled,
			sql:  "UPDATE reservations SET status = ?, date_cancelled = ? WHERE id = ? AND status = ?",
			args: []driver.Value{"CANCELLED", at, int64(3), "PAID"}, affected: 1, want: true,
		},
		{
			name: "lost race", from: model.ReservationReserved, to: model.ReservationPaid,
			sql:  "UPDATE reservations SET status = ? WHERE id = ? AND status = ?",
			args: []driver.Value{"PAID", int64(3), "RESERVED"}, affected: 0, want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, done := newMock(t)
			defer done()
			mock.ExpectExec(regexp.QuoteMeta(tt.sql)).WithArgs(tt.args...).WillReturnResult(sqlmock.NewResult(0, tt.affected))
			got, err := NewReservationRepo(db).UpdateStatus(context.Background(), 3, tt.from, tt.to, at)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("UpdateStatus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReservationGetByIDNotFound(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewReservationRepo(db).GetByID(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReservationGetByIDLoadsSeatMaps(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	cols := []string{"id", "user_id", "showing_id", "type", "ticket_count", "price_paid_cents", "currency", "status",
		"lock_token", "snapshot", "notes", "date_reserved", "expires_at", "date_cancelled"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(9), int64(42), int64(7), "RESERVED_SEATS", int64(2), int64(2400),
			"USD", "PAID", "tok", []byte(`{"seats":[]}`), nil, now, now.Add(time.Minute), nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seat_map_id FROM reservation_seat_maps")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_map_id"}).AddRow(int64(10)).AddRow(int64(11)))

	res, err := NewReservationRepo(db).GetByID(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.ReservationPaid || len(res.SeatMapIDs) != 2 || res.DateCancelled != nil {
		t.Fatalf("unexpected reservation %+v", res)
	}
	if string(res.Snapshot) != `{"seats":[]}` {
		t.Fatalf("snapshot = %s", res.Snapshot)
	}
}
