package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// BackrefRepo stores the denormalized parent -> child collections (a
// theatre's seats, a screen's showings, ...).  The table has no unique key:
// duplicates are tolerated on write and removed by PruneDuplicates, and
// every read de-duplicates with DISTINCT.
type BackrefRepo struct {
	db *sql.DB
}

// NewBackrefRepo returns a BackrefRepo bound to db.
func NewBackrefRepo(db *sql.DB) *BackrefRepo { return &BackrefRepo{db: db} }

// Pull removes every reference to the given children from all parents.
// It is an unconditional bulk delete; the returned count may be zero.
func (r *BackrefRepo) Pull(ctx context.Context, children []model.EntityRef) (int64, error) {
	byKind := make(map[model.EntityKind][]uint64)
	var order []model.EntityKind
	for _, c := range children {
		if _, seen := byKind[c.Kind]; !seen {
			order = append(order, c.Kind)
		}
		byKind[c.Kind] = append(byKind[c.Kind], c.ID)
	}
	var total int64
	for _, kind := range order {
		ids := byKind[kind]
		q := `DELETE FROM backrefs WHERE child_kind = ? AND child_id IN (` + placeholders(len(ids)) + `)`
		args := append([]interface{}{string(kind)}, uintArgs(ids)...)
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Push appends links in one multi-row insert.  Empty input is a no-op.
func (r *BackrefRepo) Push(ctx context.Context, links []model.BackRef) error {
	if len(links) == 0 {
		return nil
	}
	query := `INSERT INTO backrefs (parent_kind, parent_id, child_kind, child_id) VALUES `
	args := make([]interface{}, 0, len(links)*4)
	for i, l := range links {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, string(l.Parent.Kind), l.Parent.ID, string(l.Child.Kind), l.Child.ID)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// Children lists the distinct child IDs of one kind held by parent.
func (r *BackrefRepo) Children(ctx context.Context, parent model.EntityRef, childKind model.EntityKind) ([]uint64, error) {
	const q = `SELECT DISTINCT child_id FROM backrefs
	           WHERE parent_kind = ? AND parent_id = ? AND child_kind = ?
	           ORDER BY child_id`
	rows, err := r.db.QueryContext(ctx, q, string(parent.Kind), parent.ID, string(childKind))
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

// CountChildren counts distinct children of one kind held by parent.
func (r *BackrefRepo) CountChildren(ctx context.Context, parent model.EntityRef, childKind model.EntityKind) (int, error) {
	const q = `SELECT COUNT(DISTINCT child_id) FROM backrefs
	           WHERE parent_kind = ? AND parent_id = ? AND child_kind = ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, string(parent.Kind), parent.ID, string(childKind)).Scan(&n)
	return n, err
}

// PruneDuplicates deletes every duplicate link, keeping the oldest row of each.
func (r *BackrefRepo) PruneDuplicates(ctx context.Context) (int64, error) {
	const q = `DELETE b1 FROM backrefs b1
	           JOIN backrefs b2
	             ON b1.parent_kind = b2.parent_kind AND b1.parent_id = b2.parent_id
	            AND b1.child_kind = b2.child_kind AND b1.child_id = b2.child_id
	            AND b1.id > b2.id`
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
