package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/techtrack/internal/model"
)

// RackResultRepo reads and writes planned quantities (`rack_results`).
type RackResultRepo struct{ DB *sql.DB }

func NewRackResultRepo(db *sql.DB) *RackResultRepo { return &RackResultRepo{DB: db} }

// PlannedQuantity returns the planned quantity stored for exactly key.
// The boolean is false when no row matches.
func (r *RackResultRepo) PlannedQuantity(ctx context.Context, key model.ResultKey) (int64, bool, error) {
	var qty int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT quantity FROM rack_results WHERE rack_id=? AND activity_id=? AND cable_type_id=? AND position=?",
		key.RackID, key.ActivityID, key.CableTypeID, string(key.Position)).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return qty, true, nil
}

// Upsert saves res, replacing any row with the same four-part key.
func (r *RackResultRepo) Upsert(ctx context.Context, res *model.RackResult) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		return upsertResult(ctx, tx, res)
	})
}

// ListForRack returns the planned quantities of one rack.
func (r *RackResultRepo) ListForRack(ctx context.Context, rackID uint64) ([]model.RackResult, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, rack_id, activity_id, cable_type_id, position, quantity, quantity_unit
		 FROM rack_results WHERE rack_id=? ORDER BY activity_id, cable_type_id, position`, rackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RackResult
	for rows.Next() {
		var (
			res  model.RackResult
			pos  string
			unit sql.NullString
		)
		if err := rows.Scan(&res.ID, &res.RackID, &res.ActivityID, &res.CableTypeID, &pos, &res.Quantity, &unit); err != nil {
			return nil, err
		}
		res.Position = model.Position(pos)
		res.QuantityUnit = strPtr(unit)
		out = append(out, res)
	}
	return out, rows.Err()
}

func upsertResult(ctx context.Context, tx *sql.Tx, res *model.RackResult) error {
	var id uint64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM rack_results WHERE rack_id=? AND activity_id=? AND cable_type_id=? AND position=?",
		res.RackID, res.ActivityID, res.CableTypeID, string(res.Position)).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		out, err := tx.ExecContext(ctx,
			`INSERT INTO rack_results (rack_id, activity_id, cable_type_id, position, quantity, quantity_unit)
			 VALUES (?,?,?,?,?,?)`,
			res.RackID, res.ActivityID, res.CableTypeID, string(res.Position), res.Quantity, nullString(res.QuantityUnit))
		if err != nil {
			return err
		}
		newID, err := out.LastInsertId()
		if err != nil {
			return err
		}
		res.ID = uint64(newID)
		return nil
	case err != nil:
		return err
	}
	res.ID = id
	_, err = tx.ExecContext(ctx,
		"UPDATE rack_results SET quantity=?, quantity_unit=? WHERE id=?",
		res.Quantity, nullString(res.QuantityUnit), id)
	return err
}
