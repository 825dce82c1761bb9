package repository // repository for seat-map persistence

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SeatMapRepo encapsulates database operations for seat_maps.  Every
// status write goes through UpdateStatus, a single conditional UPDATE whose
// RowsAffected is the number of rows whose predicate matched.  InnoDB
// applies the predicate and the write atomically per row.
type SeatMapRepo struct {
	db *sql.DB
}

// NewSeatMapRepo constructs a SeatMapRepo given a DB handle.
func NewSeatMapRepo(db *sql.DB) *SeatMapRepo {
	return &SeatMapRepo{db: db}
}

// StatusUpdate describes one conditional status write.
//
//	IDs        – seat-map rows to touch.
//	From       – statuses the row must currently have.
//	To         – new status.
//	MatchToken – when non-empty, only rows stamped with this token match.
//	SetToken   – token written to matching rows; empty writes NULL.
type StatusUpdate struct {
	IDs        []uint64
	From       []model.SeatMapStatus
	To         model.SeatMapStatus
	MatchToken string
	SetToken   string
}

// UpdateStatus executes the conditional update and returns the number of
// rows modified.  Empty ID or From lists are a no-op.
func (r *SeatMapRepo) UpdateStatus(ctx context.Context, u StatusUpdate) (int64, error) {
	if len(u.IDs) == 0 || len(u.From) == 0 {
		return 0, nil
	}
	var token interface{}
	if u.SetToken != "" {
		token = u.SetToken
	}
	query := `UPDATE seat_maps SET status = ?, lock_token = ? WHERE id IN (` + placeholders(len(u.IDs)) +
		`) AND status IN (` + placeholders(len(u.From)) + `)`
	args := make([]interface{}, 0, 3+len(u.IDs)+len(u.From))
	args = append(args, string(u.To), token)
	args = append(args, uintArgs(u.IDs)...)
	for _, s := range u.From {
		args = append(args, string(s))
	}
	if u.MatchToken != "" {
		query += ` AND lock_token = ?`
		args = append(args, u.MatchToken)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const seatMapSelect = `SELECT sm.id, sm.showing_id, sm.seat_id, sm.base_price_cents, sm.price_multiplier,
       sm.override_price_cents, sm.status, COALESCE(sm.lock_token, ''), sm.updated_at,
       s.id, s.theatre_id, s.screen_id, s.row_label, s.seat_number, s.seat_type, s.is_active
  FROM seat_maps sm
  JOIN seats s ON s.id = sm.seat_id`

// ListByIDs returns the requested entries joined with their seat rows,
// ordered by id.  Unknown IDs are silently absent from the result.
func (r *SeatMapRepo) ListByIDs(ctx context.Context, ids []uint64) ([]model.SeatMapEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := seatMapSelect + ` WHERE sm.id IN (` + placeholders(len(ids)) + `) ORDER BY sm.id`
	return r.query(ctx, q, uintArgs(ids)...)
}

// ListByShowing returns every entry of a showing ordered by row then number.
func (r *SeatMapRepo) ListByShowing(ctx context.Context, showingID uint64) ([]model.SeatMapEntry, error) {
	q := seatMapSelect + ` WHERE sm.showing_id = ? ORDER BY s.row_label, s.seat_number`
	return r.query(ctx, q, showingID)
}

func (r *SeatMapRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.SeatMapEntry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SeatMapEntry
	for rows.Next() {
		var (
			e        model.SeatMapEntry
			seat     model.Seat
			override sql.NullInt64
			status   string
		)
		if err := rows.Scan(
			&e.ID, &e.ShowingID, &e.SeatID, &e.BasePriceCents, &e.PriceMultiplier,
			&override, &status, &e.LockToken, &e.UpdatedAt,
			&seat.ID, &seat.TheatreID, &seat.ScreenID, &seat.RowLabel, &seat.SeatNumber, &seat.SeatType, &seat.IsActive,
		); err != nil {
			return nil, err
		}
		if override.Valid {
			v := override.Int64
			e.OverridePriceCents = &v
		}
		e.Status = model.SeatMapStatus(status)
		e.Seat = &seat
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBulk inserts multiple seat_maps rows in one statement.  The
// UNIQUE(showing_id, seat_id) key rejects a second entry for the same pair.
// IDs are not populated; use ListByShowing to read them back.
func (r *SeatMapRepo) CreateBulk(ctx context.Context, entries []model.SeatMapEntry) error {
	if len(entries) == 0 {
		return nil
	}
	query := `INSERT INTO seat_maps (showing_id, seat_id, base_price_cents, price_multiplier, override_price_cents, status) VALUES `
	args := make([]interface{}, 0, len(entries)*6)
	for i, e := range entries {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		var override interface{}
		if e.OverridePriceCents != nil {
			override = *e.OverridePriceCents
		}
		args = append(args, e.ShowingID, e.SeatID, e.BasePriceCents, e.PriceMultiplier, override, string(e.Status))
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteByShowing removes every entry of a showing and returns the IDs
// that were removed so callers can cascade their back-references.
func (r *SeatMapRepo) DeleteByShowing(ctx context.Context, showingID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM seat_maps WHERE showing_id = ?`, showingID)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if _, err = r.db.ExecContext(ctx, `DELETE FROM seat_maps WHERE showing_id = ?`, showingID); err != nil {
		return nil, err
	}
	return ids, nil
}
