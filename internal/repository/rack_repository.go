package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/techtrack/internal/model"
)

const rackColumns = "id, name, datahall, su, lu, rack_row"

// RackRepo manages racks and their planned quantities.
type RackRepo struct{ DB *sql.DB }

func NewRackRepo(db *sql.DB) *RackRepo { return &RackRepo{DB: db} }

func scanRack(s rowScanner) (*model.Rack, error) {
	var (
		rk          model.Rack
		su, lu, row sql.NullString
	)
	if err := s.Scan(&rk.ID, &rk.Name, &rk.Datahall, &su, &lu, &row); err != nil {
		return nil, err
	}
	rk.SU, rk.LU, rk.Row = strPtr(su), strPtr(lu), strPtr(row)
	return &rk, nil
}

// Upsert inserts a rack or updates the one with the same name and
// datahall, filling rk.ID. When result is non-nil its planned quantity
// is saved for the rack in the same transaction.
func (r *RackRepo) Upsert(ctx context.Context, rk *model.Rack, result *model.RackResult) error {
	rk.Name = strings.TrimSpace(rk.Name)
	rk.Datahall = strings.TrimSpace(rk.Datahall)
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var id uint64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM racks WHERE name=? AND datahall=?", rk.Name, rk.Datahall).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				"INSERT INTO racks (name, datahall, su, lu, rack_row) VALUES (?,?,?,?,?)",
				rk.Name, rk.Datahall, nullString(rk.SU), nullString(rk.LU), nullString(rk.Row))
			if err != nil {
				return err
			}
			newID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			id = uint64(newID)
		case err != nil:
			return err
		default:
			if _, err := tx.ExecContext(ctx,
				"UPDATE racks SET su=?, lu=?, rack_row=? WHERE id=?",
				nullString(rk.SU), nullString(rk.LU), nullString(rk.Row), id); err != nil {
				return err
			}
		}
		rk.ID = id
		if result == nil {
			return nil
		}
		result.RackID = id
		return upsertResult(ctx, tx, result)
	})
}

// GetByID fetches a rack by id.
func (r *RackRepo) GetByID(ctx context.Context, id uint64) (*model.Rack, error) {
	rk, err := scanRack(r.DB.QueryRowContext(ctx, "SELECT "+rackColumns+" FROM racks WHERE id=?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRackNotFound
	}
	return rk, err
}

// List returns the racks of a datahall, or every rack when datahall is
// empty, ordered by datahall and name.
func (r *RackRepo) List(ctx context.Context, datahall string) ([]*model.Rack, error) {
	q := "SELECT " + rackColumns + " FROM racks"
	var args []any
	if datahall != "" {
		q += " WHERE datahall=?"
		args = append(args, datahall)
	}
	q += " ORDER BY datahall, name, id"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Rack
	for rows.Next() {
		rk, err := scanRack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rk)
	}
	return out, rows.Err()
}

// Datahalls lists the distinct datahalls that have racks.
func (r *RackRepo) Datahalls(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT DISTINCT datahall FROM racks ORDER BY datahall")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var dh string
		if err := rows.Scan(&dh); err != nil {
			return nil, err
		}
		out = append(out, dh)
	}
	return out, rows.Err()
}
