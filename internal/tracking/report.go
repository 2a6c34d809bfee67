package tracking

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/techtrack/internal/model"
)

// ReportFilter narrows a task report. Empty id lists do not filter.
// LatestOnly keeps only each technician's current task and is applied
// before the id filters.
type ReportFilter struct {
	LatestOnly    bool
	TechnicianIDs []uint64
	TeamLeadIDs   []uint64
	LocationIDs   []uint64
	ActivityIDs   []uint64
	RackIDs       []uint64
}

// Reporter produces the admin task reports.
type Reporter struct {
	Reports  ReportStore
	Location *time.Location
}

// TasksForDay returns the joined task rows of day, newest first.
func (r *Reporter) TasksForDay(ctx context.Context, day time.Time, f ReportFilter) ([]model.TaskReportRow, error) {
	w := DayWindow(day, r.Location)
	rows, err := r.Reports.ListTaskReport(ctx, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	if f.LatestOnly {
		latest := Latest(rows, ByReportTechnician)
		rows = rows[:0]
		for _, row := range latest {
			rows = append(rows, row)
		}
	}

	out := make([]model.TaskReportRow, 0, len(rows))
	for _, row := range rows {
		if f.matches(row) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out, nil
}

func (f ReportFilter) matches(row model.TaskReportRow) bool {
	return in(f.TechnicianIDs, &row.TechnicianID) &&
		in(f.TeamLeadIDs, row.TeamLeadID) &&
		in(f.LocationIDs, &row.LocationID) &&
		in(f.ActivityIDs, row.ActivityID) &&
		in(f.RackIDs, row.RackID)
}

// in reports whether id is listed; an empty list accepts everything and
// a nil id matches no non-empty list.
func in(ids []uint64, id *uint64) bool {
	if len(ids) == 0 {
		return true
	}
	if id == nil {
		return false
	}
	for _, v := range ids {
		if v == *id {
			return true
		}
	}
	return false
}
