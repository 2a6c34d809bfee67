package model

import "fmt"

// Rack represents a row in the `racks` table. Name and Datahall form
// the natural key used by upserts.
type Rack struct {
	ID       uint64  `json:"id"`       // racks.id
	Name     string  `json:"name"`     // racks.name
	Datahall string  `json:"datahall"` // racks.datahall
	SU       *string `json:"su"`       // racks.su (nullable)
	LU       *string `json:"lu"`       // racks.lu (nullable)
	Row      *string `json:"row"`      // racks.rack_row (nullable)
}

// Label is the human readable rack name used by reports.
func (r Rack) Label() string {
	if r.Datahall == "" {
		return r.Name
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.Datahall)
}

// ResultKey identifies a planned quantity. All four parts must match
// exactly for a lookup to succeed.
type ResultKey struct {
	RackID      uint64   `json:"rack_id"`
	ActivityID  uint64   `json:"activity_id"`
	CableTypeID uint64   `json:"cable_type_id"`
	Position    Position `json:"position"`
}

// RackResult is the planned quantity for one rack, activity, cable type
// and position combination (`rack_results`).
type RackResult struct {
	ID           uint64  `json:"id"` // rack_results.id
	ResultKey            // rack_results.rack_id, activity_id, cable_type_id, position
	Quantity     int64   `json:"quantity"`      // rack_results.quantity
	QuantityUnit *string `json:"quantity_unit"` // rack_results.quantity_unit (nullable)
}
