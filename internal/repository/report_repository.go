package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/techtrack/internal/model"
)

// ReportRepo runs the joined read queries behind the admin reports.
type ReportRepo struct{ DB *sql.DB }

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{DB: db} }

// ListTaskReport returns every task row in [start, end) joined with the
// names of its technician, team lead, author, location, activity,
// cable type and rack. Rows come oldest first.
func (r *ReportRepo) ListTaskReport(ctx context.Context, start, end time.Time) ([]model.TaskReportRow, error) {
	const q = `
SELECT t.id, t.technician_id, tech.name, tech.team_lead_id, tl.name,
       t.source_id, src.name, t.location_id, loc.name,
       t.activity_id, act.name, t.cable_type_id, ct.name,
       t.rack_id, rk.name, rk.datahall, t.position, t.quantity, t.percent, t.timestamp
FROM technician_tasks t
JOIN technicians tech ON tech.id = t.technician_id
LEFT JOIN technicians tl ON tl.id = tech.team_lead_id
LEFT JOIN technicians src ON src.id = t.source_id
JOIN locations loc ON loc.id = t.location_id
LEFT JOIN activities act ON act.id = t.activity_id
LEFT JOIN cable_type ct ON ct.id = t.cable_type_id
LEFT JOIN racks rk ON rk.id = t.rack_id
WHERE t.timestamp >= ? AND t.timestamp < ?
ORDER BY t.timestamp, t.id`
	rows, err := r.DB.QueryContext(ctx, q, utc(start), utc(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TaskReportRow
	for rows.Next() {
		var (
			row                                           model.TaskReportRow
			leadID, activityID, cableID, rackID, quantity sql.NullInt64
			lead, source, activity, cable, rack, dh, pos  sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.TechnicianID, &row.Technician, &leadID, &lead,
			&row.SourceID, &source, &row.LocationID, &row.Location,
			&activityID, &activity, &cableID, &cable,
			&rackID, &rack, &dh, &pos, &quantity, &row.Percent, &row.Timestamp); err != nil {
			return nil, err
		}
		row.TeamLeadID, row.TeamLead = idPtr(leadID), strPtr(lead)
		row.Source = strPtr(source)
		row.ActivityID, row.Activity = idPtr(activityID), strPtr(activity)
		row.CableTypeID, row.CableType = idPtr(cableID), strPtr(cable)
		row.RackID = idPtr(rackID)
		if rack.Valid {
			label := model.Rack{Name: rack.String, Datahall: dh.String}.Label()
			row.Rack = &label
		}
		row.Position = positionPtr(pos)
		row.Quantity = intPtr(quantity)
		row.Timestamp = row.Timestamp.UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}
