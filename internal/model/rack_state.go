package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RackState is one append-only status snapshot (`rack_states`) filed
// when a team lead closes work on a rack. The current status of a rack
// combination is the newest row by CreatedAt.
type RackState struct {
	ID          uint64          `json:"id"`            // rack_states.id
	RackID      uint64          `json:"rack_id"`       // rack_states.rack_id
	ActivityID  uint64          `json:"activity_id"`   // rack_states.activity_id
	CableTypeID uint64          `json:"cable_type_id"` // rack_states.cable_type_id
	StatusID    uint64          `json:"status_id"`     // rack_states.status_id
	Position    Position        `json:"position"`      // rack_states.position
	Quantity    int64           `json:"quantity"`      // rack_states.quantity
	Percent     decimal.Decimal `json:"percent"`       // rack_states.percent
	CreatedBy   uint64          `json:"created_by"`    // rack_states.created_by
	CreatedAt   time.Time       `json:"created_at"`    // rack_states.created_at
}

func (s RackState) EntryTime() time.Time { return s.CreatedAt }
func (s RackState) EntryID() uint64      { return s.ID }
