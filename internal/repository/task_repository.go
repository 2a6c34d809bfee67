package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/techtrack/internal/model"
)

const taskColumns = "t.id, t.technician_id, t.source_id, t.location_id, t.activity_id, t.cable_type_id, t.rack_id, t.position, t.quantity, t.percent, t.timestamp"

// TaskRepo is the append-only store of technician task rows. It has no
// update or delete; rows disappear only through reference deletes.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

// InsertBatch inserts every record in one transaction and returns them
// with their ids. Either all rows are stored or none are.
func (r *TaskRepo) InsertBatch(ctx context.Context, records []model.TaskRecord) ([]model.TaskRecord, error) {
	out := make([]model.TaskRecord, len(records))
	copy(out, records)
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO technician_tasks
			 (technician_id, source_id, location_id, activity_id, cable_type_id, rack_id, position, quantity, percent, timestamp)
			 VALUES (?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i := range out {
			rec := &out[i]
			rec.Timestamp = utc(rec.Timestamp)
			res, err := stmt.ExecContext(ctx,
				rec.TechnicianID, rec.SourceID, rec.LocationID, nullID(rec.ActivityID), nullID(rec.CableTypeID),
				nullID(rec.RackID), nullPosition(rec.Position), nullInt(rec.Quantity), rec.Percent, rec.Timestamp)
			if err != nil {
				return fmt.Errorf("insert task %d: %w", i, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			rec.ID = uint64(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListInWindow returns the task rows matching q, oldest first with ids
// breaking ties.
func (r *TaskRepo) ListInWindow(ctx context.Context, q model.TaskQuery) ([]model.TaskRecord, error) {
	query := "SELECT " + taskColumns + " FROM technician_tasks t"
	args := []any{utc(q.Start), utc(q.End)}
	where := " WHERE t.timestamp >= ? AND t.timestamp < ?"
	if q.Datahall != "" {
		query += " JOIN racks r ON r.id = t.rack_id"
		where += " AND r.datahall = ?"
		args = append(args, q.Datahall)
	} else if q.RackOnly {
		where += " AND t.rack_id IS NOT NULL"
	}
	if len(q.TechnicianIDs) > 0 {
		where += " AND t.technician_id IN (" + placeholders(len(q.TechnicianIDs)) + ")"
		args = append(args, idArgs(q.TechnicianIDs)...)
	}
	rows, err := r.DB.QueryContext(ctx, query+where+" ORDER BY t.timestamp, t.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TaskRecord
	for rows.Next() {
		var (
			rec                        model.TaskRecord
			activity, cable, rack, qty sql.NullInt64
			pos                        sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.TechnicianID, &rec.SourceID, &rec.LocationID, &activity, &cable, &rack,
			&pos, &qty, &rec.Percent, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.ActivityID, rec.CableTypeID, rec.RackID = idPtr(activity), idPtr(cable), idPtr(rack)
		rec.Position = positionPtr(pos)
		rec.Quantity = intPtr(qty)
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByColumn counts task rows whose column equals id. It backs the
// delete previews of the admin screens.
func (r *TaskRepo) CountByColumn(ctx context.Context, column string, id uint64) (int64, error) {
	switch column {
	case "technician_id", "location_id", "activity_id", "cable_type_id", "rack_id":
	default:
		return 0, fmt.Errorf("unknown task column %q", column)
	}
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM technician_tasks WHERE "+column+"=?", id).Scan(&n)
	return n, err
}
