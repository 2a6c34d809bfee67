package tracking

import (
	"time"

	"github.com/iliyamo/techtrack/internal/model"
)

// Entry is a row of an append-only log.
type Entry interface {
	EntryTime() time.Time
	EntryID() uint64
}

// newer reports whether a supersedes b: later time, or the same time
// and a higher id.
func newer(a, b Entry) bool {
	ta, tb := a.EntryTime(), b.EntryTime()
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return a.EntryID() > b.EntryID()
}

// Latest keeps the newest row per key. Rows for which key reports false
// are skipped. The result does not depend on the order of rows.
func Latest[K comparable, E Entry](rows []E, key func(E) (K, bool)) map[K]E {
	out := make(map[K]E)
	for _, row := range rows {
		k, ok := key(row)
		if !ok {
			continue
		}
		if cur, seen := out[k]; !seen || newer(row, cur) {
			out[k] = row
		}
	}
	return out
}

// RackKey groups rack work. Absent ids are zero and an absent position
// is empty, so rows missing a part still group with each other.
type RackKey struct {
	RackID      uint64         `json:"rack_id"`
	ActivityID  uint64         `json:"activity_id"`
	CableTypeID uint64         `json:"cable_type_id"`
	Position    model.Position `json:"position"`
}

// ResultKey returns the planned quantity key, false when a part is absent.
func (k RackKey) ResultKey() (model.ResultKey, bool) {
	if k.RackID == 0 || k.ActivityID == 0 || k.CableTypeID == 0 || k.Position == "" {
		return model.ResultKey{}, false
	}
	return model.ResultKey{RackID: k.RackID, ActivityID: k.ActivityID, CableTypeID: k.CableTypeID, Position: k.Position}, true
}

func deref(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

// ByTechnician groups task rows by technician.
func ByTechnician(r model.TaskRecord) (uint64, bool) { return r.TechnicianID, true }

// ByReportTechnician groups report rows by technician.
func ByReportTechnician(r model.TaskReportRow) (uint64, bool) { return r.TechnicianID, true }

// ByTaskRack groups task rows by rack, activity, cable type and position.
// Rows without a rack are skipped.
func ByTaskRack(r model.TaskRecord) (RackKey, bool) {
	if r.RackID == nil {
		return RackKey{}, false
	}
	k := RackKey{RackID: *r.RackID, ActivityID: deref(r.ActivityID), CableTypeID: deref(r.CableTypeID)}
	if r.Position != nil {
		k.Position = *r.Position
	}
	return k, true
}

// ByStateRack groups rack states by rack, position, activity and cable type.
func ByStateRack(s model.RackState) (RackKey, bool) {
	return RackKey{RackID: s.RackID, ActivityID: s.ActivityID, CableTypeID: s.CableTypeID, Position: s.Position}, true
}
