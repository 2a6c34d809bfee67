package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/techtrack/internal/model"
)

// RackStateRepo is the append-only store of rack status snapshots.
type RackStateRepo struct{ DB *sql.DB }

func NewRackStateRepo(db *sql.DB) *RackStateRepo { return &RackStateRepo{DB: db} }

// Insert appends s and fills its id.
func (r *RackStateRepo) Insert(ctx context.Context, s *model.RackState) error {
	s.CreatedAt = utc(s.CreatedAt)
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO rack_states
		 (rack_id, activity_id, cable_type_id, status_id, position, quantity, percent, created_by, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		s.RackID, s.ActivityID, s.CableTypeID, s.StatusID, string(s.Position), s.Quantity, s.Percent, s.CreatedBy, s.CreatedAt)
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

// ListInWindow returns the snapshots created in [start, end) for racks
// of datahall (every rack when empty), oldest first.
func (r *RackStateRepo) ListInWindow(ctx context.Context, datahall string, start, end time.Time) ([]model.RackState, error) {
	q := `SELECT s.id, s.rack_id, s.activity_id, s.cable_type_id, s.status_id, s.position, s.quantity, s.percent,
	             s.created_by, s.created_at
	      FROM rack_states s JOIN racks r ON r.id = s.rack_id
	      WHERE s.created_at >= ? AND s.created_at < ?`
	args := []any{utc(start), utc(end)}
	if datahall != "" {
		q += " AND r.datahall = ?"
		args = append(args, datahall)
	}
	rows, err := r.DB.QueryContext(ctx, q+" ORDER BY s.created_at, s.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RackState
	for rows.Next() {
		var (
			s   model.RackState
			pos string
		)
		if err := rows.Scan(&s.ID, &s.RackID, &s.ActivityID, &s.CableTypeID, &s.StatusID, &pos, &s.Quantity,
			&s.Percent, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Position = model.Position(pos)
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
