package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Position is the side of a rack a task was performed on.
type Position string

const (
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
	PositionVaries Position = "varies"
)

// Valid reports whether p is one of the known positions.
func (p Position) Valid() bool {
	switch p {
	case PositionLeft, PositionRight, PositionVaries:
		return true
	}
	return false
}

// ParsePosition accepts a position in any case. An empty string yields
// a nil position.
func ParsePosition(s string) (*Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}
	p := Position(s)
	if !p.Valid() {
		return nil, fmt.Errorf("invalid position %q", s)
	}
	return &p, nil
}

// TaskRecord is one immutable row of the `technician_tasks` log. Rows
// are only ever inserted; the current task of a technician is the
// newest row inside the day window.
//
// Fields:
//
//	ID           – primary key identifier, breaks timestamp ties.
//	TechnicianID – technician the task belongs to.
//	SourceID     – technician who filed the row (a team lead when assigned).
//	LocationID   – where the work happens.
//	ActivityID   – optional activity.
//	CableTypeID  – optional cable type.
//	RackID       – optional rack.
//	Position     – optional rack side.
//	Quantity     – optional reported quantity.
//	Percent      – optional percent complete at the time of filing.
//	Timestamp    – creation instant, UTC.
type TaskRecord struct {
	ID           uint64              `json:"id"`
	TechnicianID uint64              `json:"technician_id"`
	SourceID     uint64              `json:"source_id"`
	LocationID   uint64              `json:"location_id"`
	ActivityID   *uint64             `json:"activity_id"`
	CableTypeID  *uint64             `json:"cable_type_id"`
	RackID       *uint64             `json:"rack_id"`
	Position     *Position           `json:"position"`
	Quantity     *int64              `json:"quantity"`
	Percent      decimal.NullDecimal `json:"percent"`
	Timestamp    time.Time           `json:"timestamp"`
}

func (t TaskRecord) EntryTime() time.Time { return t.Timestamp }
func (t TaskRecord) EntryID() uint64      { return t.ID }

// TaskQuery selects task rows for a half-open [Start, End) window.
// Empty TechnicianIDs means every technician; Datahall restricts to
// racks of that hall and implies RackOnly.
type TaskQuery struct {
	Start         time.Time
	End           time.Time
	TechnicianIDs []uint64
	Datahall      string
	RackOnly      bool
}

// TaskReportRow is a task row joined with the names admins read.
type TaskReportRow struct {
	ID           uint64              `json:"id"`
	TechnicianID uint64              `json:"technician_id"`
	Technician   string              `json:"technician"`
	TeamLeadID   *uint64             `json:"team_lead_id"`
	TeamLead     *string             `json:"team_lead"`
	SourceID     uint64              `json:"source_id"`
	Source       *string             `json:"source"`
	LocationID   uint64              `json:"location_id"`
	Location     string              `json:"location"`
	ActivityID   *uint64             `json:"activity_id"`
	Activity     *string             `json:"activity"`
	CableTypeID  *uint64             `json:"cable_type_id"`
	CableType    *string             `json:"cable_type"`
	RackID       *uint64             `json:"rack_id"`
	Rack         *string             `json:"rack"`
	Position     *Position           `json:"position"`
	Quantity     *int64              `json:"quantity"`
	Percent      decimal.NullDecimal `json:"percent"`
	Timestamp    time.Time           `json:"timestamp"`
}

func (r TaskReportRow) EntryTime() time.Time { return r.Timestamp }
func (r TaskReportRow) EntryID() uint64      { return r.ID }
