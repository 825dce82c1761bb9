package database

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestDSN(t *testing.T) {
	got := DSN("app", "secret", "127.0.0.1", "3306", "cinema")
	want := "app:secret@tcp(127.0.0.1:3306)/cinema?charset=utf8mb4&parseTime=true&loc=UTC"
	if got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
	if got := DSN("app", "", "db", "3306", "cinema"); !strings.HasPrefix(got, "app@tcp(") {
		t.Fatalf("DSN without password = %q", got)
	}
}

func TestStatementsCoverBookingTables(t *testing.T) {
	joined := strings.Join(Statements(), "\n")
	for _, table := range []string{"seat_maps", "reservations", "reservation_seat_maps", "backrefs", "showings"} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("schema missing table %s", table)
		}
	}
	if !strings.Contains(joined, "UNIQUE KEY uq_seat_maps_showing_seat (showing_id, seat_id)") {
		t.Error("seat_maps must be unique per (showing, seat)")
	}
}

func TestMigrateExecutesEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, stmt := range Statements() {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
