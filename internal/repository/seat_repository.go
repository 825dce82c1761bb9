package repository // repository defines data access for seats

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SeatRepo provides methods to work with seats in the database.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

const seatCols = `id, theatre_id, screen_id, row_label, seat_number, seat_type, is_active, created_at, updated_at`

// Create inserts a single seat record. On success the seat's ID is populated.
func (r *SeatRepo) Create(ctx context.Context, s *model.Seat) error {
	const q = `INSERT INTO seats (theatre_id, screen_id, row_label, seat_number, seat_type, is_active)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.TheatreID, s.ScreenID, s.RowLabel, s.SeatNumber, s.SeatType, s.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByID retrieves a seat by its id (no ownership check).
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (*model.Seat, error) {
	var s model.Seat
	err := r.db.QueryRowContext(ctx, `SELECT `+seatCols+` FROM seats WHERE id = ?`, id).
		Scan(&s.ID, &s.TheatreID, &s.ScreenID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// ListByIDs retrieves the given seats ordered by row_label then seat_number.
func (r *SeatRepo) ListByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + seatCols + ` FROM seats WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, uintArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(
			&s.ID, &s.TheatreID, &s.ScreenID, &s.RowLabel, &s.SeatNumber, &s.SeatType,
			&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update writes the seat's placement and attributes.  Returns ErrNotFound
// when no row has the given id.
func (r *SeatRepo) Update(ctx context.Context, s *model.Seat) error {
	const q = `UPDATE seats
	           SET theatre_id = ?, screen_id = ?, row_label = ?, seat_number = ?, seat_type = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, s.TheatreID, s.ScreenID, s.RowLabel, s.SeatNumber, s.SeatType, s.IsActive, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for an update that changes nothing; tell the two apart.
		if _, err := r.GetByID(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a seat.  ErrNotFound when nothing was deleted.
func (r *SeatRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seats WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
