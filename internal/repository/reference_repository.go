package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/techtrack/internal/model"
)

// dependent is a column in another table that references a lookup row.
type dependent struct {
	table  string
	column string
}

type referenceTable struct {
	table      string
	dependents []dependent
}

// referenceTables maps each kind to its table and the rows removed with
// it. Order matters: rows are deleted in the listed order.
var referenceTables = map[model.ReferenceKind]referenceTable{
	model.KindLocation: {table: "locations", dependents: []dependent{
		{"technician_tasks", "location_id"},
	}},
	model.KindActivity: {table: "activities", dependents: []dependent{
		{"technician_tasks", "activity_id"},
		{"rack_states", "activity_id"},
		{"rack_results", "activity_id"},
	}},
	model.KindCableType: {table: "cable_type", dependents: []dependent{
		{"technician_tasks", "cable_type_id"},
		{"rack_states", "cable_type_id"},
		{"rack_results", "cable_type_id"},
	}},
	model.KindStatus: {table: "statuses", dependents: []dependent{
		{"rack_states", "status_id"},
	}},
	model.KindProject: {table: "projects"},
}

// ReferenceRepo manages the lookup tables (locations, activities, cable
// types, statuses, projects).
type ReferenceRepo struct{ DB *sql.DB }

func NewReferenceRepo(db *sql.DB) *ReferenceRepo { return &ReferenceRepo{DB: db} }

func tableFor(kind model.ReferenceKind) (referenceTable, error) {
	t, ok := referenceTables[kind]
	if !ok {
		return referenceTable{}, fmt.Errorf("unknown reference kind %q", kind)
	}
	return t, nil
}

// List returns every row of the kind ordered by name.
func (r *ReferenceRepo) List(ctx context.Context, kind model.ReferenceKind) ([]model.Reference, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, "SELECT id, name FROM "+t.table+" ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reference
	for rows.Next() {
		var ref model.Reference
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// GetByID fetches one row; ErrReferenceNotFound when it does not exist.
func (r *ReferenceRepo) GetByID(ctx context.Context, kind model.ReferenceKind, id uint64) (model.Reference, error) {
	t, err := tableFor(kind)
	if err != nil {
		return model.Reference{}, err
	}
	var ref model.Reference
	err = r.DB.QueryRowContext(ctx, "SELECT id, name FROM "+t.table+" WHERE id=?", id).Scan(&ref.ID, &ref.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reference{}, fmt.Errorf("%s %d: %w", kind, id, ErrReferenceNotFound)
	}
	return ref, err
}

func (r *ReferenceRepo) nameTaken(ctx context.Context, t referenceTable, name string, exceptID uint64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+t.table+" WHERE LOWER(TRIM(name))=? AND id<>?",
		strings.ToLower(name), exceptID).Scan(&n)
	return n > 0, err
}

// Create inserts a new name. Names that match an existing row without
// regard to case are rejected with ErrDuplicateName.
func (r *ReferenceRepo) Create(ctx context.Context, kind model.ReferenceKind, name string) (model.Reference, error) {
	t, err := tableFor(kind)
	if err != nil {
		return model.Reference{}, err
	}
	name = strings.TrimSpace(name)
	taken, err := r.nameTaken(ctx, t, name, 0)
	if err != nil {
		return model.Reference{}, err
	}
	if taken {
		return model.Reference{}, ErrDuplicateName
	}
	res, err := r.DB.ExecContext(ctx, "INSERT INTO "+t.table+" (name) VALUES (?)", name)
	if err != nil {
		return model.Reference{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Reference{}, err
	}
	return model.Reference{ID: uint64(id), Name: name}, nil
}

// Rename changes the name of an existing row.
func (r *ReferenceRepo) Rename(ctx context.Context, kind model.ReferenceKind, id uint64, name string) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if _, err := r.GetByID(ctx, kind, id); err != nil {
		return err
	}
	taken, err := r.nameTaken(ctx, t, name, id)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateName
	}
	_, err = r.DB.ExecContext(ctx, "UPDATE "+t.table+" SET name=? WHERE id=?", name, id)
	return err
}

// Delete removes a row together with every task, rack state and planned
// quantity that references it, in one transaction. It returns the
// number of dependent rows removed.
func (r *ReferenceRepo) Delete(ctx context.Context, kind model.ReferenceKind, id uint64) (int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var removed int64
	err = withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table+" WHERE id=?", id).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s %d: %w", kind, id, ErrReferenceNotFound)
		}
		for _, d := range t.dependents {
			res, err := tx.ExecContext(ctx, "DELETE FROM "+d.table+" WHERE "+d.column+"=?", id)
			if err != nil {
				return fmt.Errorf("delete %s: %w", d.table, err)
			}
			affected, _ := res.RowsAffected()
			removed += affected
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM "+t.table+" WHERE id=?", id)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
