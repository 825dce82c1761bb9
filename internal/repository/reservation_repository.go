package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ReservationRepo provides persistence for reservations and the seat-map
// entries they reference.  The snapshot column is written by Create and
// never appears in any UPDATE statement in this file.  All timestamp
// fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts the reservation row and its reservation_seat_maps links in
// one local transaction.  Both rows describe the same aggregate, so they
// are committed together.  On success the generated ID is populated.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO reservations
	           (user_id, showing_id, type, ticket_count, price_paid_cents, currency, status, lock_token, snapshot, notes, date_reserved, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var notes interface{}
	if res.Notes != nil {
		notes = *res.Notes
	}
	result, err := tx.ExecContext(ctx, q,
		res.UserID, res.ShowingID, string(res.Type), res.TicketCount, res.PricePaidCents, res.Currency,
		string(res.Status), res.LockToken, []byte(res.Snapshot), notes, res.DateReserved.UTC(), res.ExpiresAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	if len(res.SeatMapIDs) > 0 {
		query := `INSERT INTO reservation_seat_maps (reservation_id, seat_map_id) VALUES `
		args := make([]interface{}, 0, len(res.SeatMapIDs)*2)
		for i, sm := range res.SeatMapIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, res.ID, sm)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const reservationCols = `id, user_id, showing_id, type, ticket_count, price_paid_cents, currency, status,
       lock_token, snapshot, notes, date_reserved, expires_at, date_cancelled`

func scanReservation(row interface{ Scan(...interface{}) error }, res *model.Reservation) error {
	var (
		typ, status string
		snapshot    []byte
		notes       sql.NullString
		cancelled   sql.NullTime
	)
	if err := row.Scan(
		&res.ID, &res.UserID, &res.ShowingID, &typ, &res.TicketCount, &res.PricePaidCents, &res.Currency, &status,
		&res.LockToken, &snapshot, &notes, &res.DateReserved, &res.ExpiresAt, &cancelled,
	); err != nil {
		return err
	}
	res.Type = model.ReservationType(typ)
	res.Status = model.ReservationStatus(status)
	res.Snapshot = snapshot
	if notes.Valid {
		n := notes.String
		res.Notes = &n
	}
	if cancelled.Valid {
		t := cancelled.Time
		res.DateCancelled = &t
	}
	return nil
}

// GetByID loads a reservation with its seat-map IDs.  ErrNotFound when
// no row exists.  Ownership is checked by the caller.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	var res model.Reservation
	if err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id = ?`, id), &res); err != nil {
		return nil, notFound(err)
	}
	ids, err := r.seatMapIDs(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	res.SeatMapIDs = ids
	return &res, nil
}

func (r *ReservationRepo) seatMapIDs(ctx context.Context, reservationID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_map_id FROM reservation_seat_maps WHERE reservation_id = ? ORDER BY seat_map_id`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByUser returns a user's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationCols+` FROM reservations WHERE user_id = ? ORDER BY date_reserved DESC, id DESC`, userID)
}

// ListByShowing returns every reservation of a showing, oldest first.
// Used by owner-facing views.
func (r *ReservationRepo) ListByShowing(ctx context.Context, showingID uint64) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationCols+` FROM reservations WHERE showing_id = ? ORDER BY date_reserved, id`, showingID)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := scanReservation(rows, &res); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		ids, err := r.seatMapIDs(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].SeatMapIDs = ids
	}
	return out, nil
}

// UpdateStatus moves a reservation to `to` only if its current status is
// `from`.  It reports whether this call performed the transition.  When
// `to` is CANCELLED the cancellation time is recorded in the same write.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.ReservationStatus, at time.Time) (bool, error) {
	q := `UPDATE reservations SET status = ? WHERE id = ? AND status = ?`
	args := []interface{}{string(to), id, string(from)}
	if to == model.ReservationCancelled {
		q = `UPDATE reservations SET status = ?, date_cancelled = ? WHERE id = ? AND status = ?`
		args = []interface{}{string(to), at.UTC(), id, string(from)}
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListExpired returns IDs of RESERVED reservations whose hold ended at or
// before now, oldest first, at most limit rows.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	const q = `SELECT id FROM reservations WHERE status = 'RESERVED' AND expires_at <= ? ORDER BY expires_at LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
