package tracking

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/techtrack/internal/model"
)

// Resolver derives the current state of technicians and racks for a
// local calendar day. It never writes.
type Resolver struct {
	Tasks    TaskStore
	States   RackStateStore
	Racks    RackStore
	Progress *Progress
	Location *time.Location
}

// Window returns the day window of day in the resolver's zone.
func (r *Resolver) Window(day time.Time) Window {
	return DayWindow(day, r.Location)
}

// LatestPerTechnician returns the newest task of each requested
// technician on day. Every requested id is a key of the result; a nil
// value means the technician has no task that day.
func (r *Resolver) LatestPerTechnician(ctx context.Context, technicianIDs []uint64, day time.Time) (map[uint64]*model.TaskRecord, error) {
	out := make(map[uint64]*model.TaskRecord, len(technicianIDs))
	if len(technicianIDs) == 0 {
		return out, nil
	}
	w := r.Window(day)
	rows, err := r.Tasks.ListInWindow(ctx, model.TaskQuery{Start: w.Start, End: w.End, TechnicianIDs: technicianIDs})
	if err != nil {
		return nil, err
	}
	latest := Latest(rows, ByTechnician)
	for _, id := range technicianIDs {
		if rec, ok := latest[id]; ok {
			rec := rec
			out[id] = &rec
		} else {
			out[id] = nil
		}
	}
	return out, nil
}

// RackSnapshot is the current task state of one rack combination.
type RackSnapshot struct {
	RackKey
	Rack         string          `json:"rack"`
	Datahall     string          `json:"datahall"`
	TaskID       uint64          `json:"task_id"`
	TechnicianID uint64          `json:"technician_id"`
	LocationID   uint64          `json:"location_id"`
	Quantity     *int64          `json:"quantity"`
	Percent      decimal.Decimal `json:"percent"`
	Timestamp    time.Time       `json:"timestamp"`
}

// LatestPerRack returns the newest task per rack, activity, cable type
// and position on day, for racks in datahall (every rack when empty).
// Snapshots are ordered by rack label, then activity, cable type and
// position.
func (r *Resolver) LatestPerRack(ctx context.Context, datahall string, day time.Time) ([]RackSnapshot, error) {
	w := r.Window(day)
	rows, err := r.Tasks.ListInWindow(ctx, model.TaskQuery{Start: w.Start, End: w.End, Datahall: datahall, RackOnly: true})
	if err != nil {
		return nil, err
	}
	racks, err := r.rackIndex(ctx, datahall)
	if err != nil {
		return nil, err
	}

	latest := Latest(rows, ByTaskRack)
	out := make([]RackSnapshot, 0, len(latest))
	for key, rec := range latest {
		snap := RackSnapshot{
			RackKey:      key,
			TaskID:       rec.ID,
			TechnicianID: rec.TechnicianID,
			LocationID:   rec.LocationID,
			Quantity:     rec.Quantity,
			Timestamp:    rec.Timestamp,
		}
		if rk, ok := racks[key.RackID]; ok {
			snap.Rack, snap.Datahall = rk.Label(), rk.Datahall
		}
		pct, err := r.percentOf(ctx, key, rec)
		if err != nil {
			return nil, err
		}
		snap.Percent = pct
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Rack != b.Rack {
			return a.Rack < b.Rack
		}
		return rackKeyLess(a.RackKey, b.RackKey)
	})
	return out, nil
}

// percentOf prefers the percent stored on the row and computes it from
// the plan otherwise.
func (r *Resolver) percentOf(ctx context.Context, key RackKey, rec model.TaskRecord) (decimal.Decimal, error) {
	if rec.Percent.Valid {
		return rec.Percent.Decimal, nil
	}
	rk, ok := key.ResultKey()
	if !ok || rec.Quantity == nil || r.Progress == nil {
		return decimal.Zero, nil
	}
	return r.Progress.PercentComplete(ctx, rk, *rec.Quantity)
}

func (r *Resolver) rackIndex(ctx context.Context, datahall string) (map[uint64]*model.Rack, error) {
	racks, err := r.Racks.List(ctx, datahall)
	if err != nil {
		return nil, err
	}
	idx := make(map[uint64]*model.Rack, len(racks))
	for _, rk := range racks {
		idx[rk.ID] = rk
	}
	return idx, nil
}

// CurrentRackStates returns the newest rack state per rack, position,
// activity and cable type on day.
func (r *Resolver) CurrentRackStates(ctx context.Context, datahall string, day time.Time) ([]model.RackState, error) {
	w := r.Window(day)
	rows, err := r.States.ListInWindow(ctx, datahall, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	latest := Latest(rows, ByStateRack)
	out := make([]model.RackState, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := ByStateRack(out[i])
		b, _ := ByStateRack(out[j])
		return rackKeyLess(a, b)
	})
	return out, nil
}

func rackKeyLess(a, b RackKey) bool {
	if a.RackID != b.RackID {
		return a.RackID < b.RackID
	}
	if a.ActivityID != b.ActivityID {
		return a.ActivityID < b.ActivityID
	}
	if a.CableTypeID != b.CableTypeID {
		return a.CableTypeID < b.CableTypeID
	}
	return a.Position < b.Position
}
