package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/repository"
)

// Board backs the team lead page: the crew roster with current tasks,
// bulk assignment and closing rack work.
type Board struct {
	Technicians TechnicianStore
	Resolver    *Resolver
	Recorder    *Recorder
	States      RackStateStore
	Racks       RackStore
	References  ReferenceStore
	Progress    *Progress
	Now         func() time.Time
}

// RosterEntry is one technician with the task they are on, if any.
type RosterEntry struct {
	Technician *model.Technician `json:"technician"`
	Current    *model.TaskRecord `json:"current"`
}

func requireLead(t model.Technician) error {
	if !t.IsTeamLead && !t.IsAdmin {
		return ErrNotTeamLead
	}
	return nil
}

// Roster lists the active crew of lead, or every active technician when
// all is set, each with their current task on day.
func (b *Board) Roster(ctx context.Context, lead model.Technician, all bool, day time.Time) ([]RosterEntry, error) {
	if err := requireLead(lead); err != nil {
		return nil, err
	}
	var crewOf *uint64
	if !all {
		crewOf = &lead.ID
	}
	techs, err := b.Technicians.ListActive(ctx, crewOf)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(techs))
	for i, t := range techs {
		ids[i] = t.ID
	}
	current, err := b.Resolver.LatestPerTechnician(ctx, ids, day)
	if err != nil {
		return nil, err
	}
	out := make([]RosterEntry, len(techs))
	for i, t := range techs {
		out[i] = RosterEntry{Technician: t, Current: current[t.ID]}
	}
	return out, nil
}

// Assignment is one row of the team lead's assignment grid.
type Assignment struct {
	TechnicianID uint64
	LocationID   uint64
	ActivityID   *uint64
	CableTypeID  *uint64
	RackID       *uint64
	Position     *model.Position
}

// AssignResult reports which technicians got a new task row and which
// were left alone because nothing changed.
type AssignResult struct {
	Recorded []model.TaskRecord `json:"recorded"`
	Skipped  []uint64           `json:"skipped"`
}

// Assign records the rows that differ from each technician's current
// task on day, authored by lead, in one transaction.
func (b *Board) Assign(ctx context.Context, lead model.Technician, rows []Assignment, day time.Time) (AssignResult, error) {
	var res AssignResult
	if err := requireLead(lead); err != nil {
		return res, err
	}
	if len(rows) == 0 {
		return res, nil
	}
	ids := make([]uint64, len(rows))
	for i, a := range rows {
		ids[i] = a.TechnicianID
	}
	current, err := b.Resolver.LatestPerTechnician(ctx, ids, day)
	if err != nil {
		return res, err
	}

	var subs []Submission
	for _, a := range rows {
		if unchanged(current[a.TechnicianID], a) {
			res.Skipped = append(res.Skipped, a.TechnicianID)
			continue
		}
		s := Submission{
			TechnicianID: a.TechnicianID,
			AuthoredBy:   lead.ID,
			LocationID:   a.LocationID,
			RackID:       a.RackID,
			Position:     a.Position,
			Via:          "team",
		}
		if a.ActivityID != nil {
			s.ActivityIDs = []uint64{*a.ActivityID}
		}
		if a.CableTypeID != nil {
			s.CableTypeIDs = []uint64{*a.CableTypeID}
		}
		subs = append(subs, s)
	}
	if len(subs) == 0 {
		return res, nil
	}
	res.Recorded, err = b.Recorder.RecordAll(ctx, subs)
	if err != nil {
		return AssignResult{}, err
	}
	return res, nil
}

func unchanged(cur *model.TaskRecord, a Assignment) bool {
	if cur == nil {
		return false
	}
	return cur.LocationID == a.LocationID &&
		sameID(cur.ActivityID, a.ActivityID) &&
		sameID(cur.CableTypeID, a.CableTypeID) &&
		sameID(cur.RackID, a.RackID) &&
		samePosition(cur.Position, a.Position)
}

func sameID(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func samePosition(a, b *model.Position) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// RackClose is the "close task" form for one rack combination.
type RackClose struct {
	RackID      uint64
	ActivityID  uint64
	CableTypeID uint64
	StatusID    uint64
	Position    model.Position
	Quantity    int64
	Percent     *decimal.Decimal // nil computes it from the plan
}

// CloseRackTask appends a rack state authored by lead.
func (b *Board) CloseRackTask(ctx context.Context, lead model.Technician, in RackClose) (*model.RackState, error) {
	if err := requireLead(lead); err != nil {
		return nil, err
	}
	if !in.Position.Valid() {
		return nil, fmt.Errorf("%w: invalid position %q", ErrInvalidInput, in.Position)
	}
	if in.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0", ErrInvalidInput)
	}
	if in.Percent != nil && (in.Percent.IsNegative() || in.Percent.GreaterThan(hundred)) {
		return nil, fmt.Errorf("%w: percent must be between 0 and 100", ErrInvalidInput)
	}
	if _, err := b.Racks.GetByID(ctx, in.RackID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("rack %d: %w", in.RackID, ErrUnknownRack)
		}
		return nil, err
	}
	for kind, id := range map[model.ReferenceKind]uint64{
		model.KindActivity:  in.ActivityID,
		model.KindCableType: in.CableTypeID,
		model.KindStatus:    in.StatusID,
	} {
		if _, err := b.References.GetByID(ctx, kind, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s %d: %w", kind, id, ErrUnknownReference)
			}
			return nil, err
		}
	}

	state := &model.RackState{
		RackID:      in.RackID,
		ActivityID:  in.ActivityID,
		CableTypeID: in.CableTypeID,
		StatusID:    in.StatusID,
		Position:    in.Position,
		Quantity:    in.Quantity,
		CreatedBy:   lead.ID,
		CreatedAt:   b.now(),
	}
	if in.Percent != nil {
		state.Percent = in.Percent.Round(1)
	} else if b.Progress != nil {
		key := model.ResultKey{RackID: in.RackID, ActivityID: in.ActivityID, CableTypeID: in.CableTypeID, Position: in.Position}
		pct, err := b.Progress.PercentComplete(ctx, key, in.Quantity)
		if err != nil {
			return nil, err
		}
		state.Percent = pct
	}
	if err := b.States.Insert(ctx, state); err != nil {
		return nil, fmt.Errorf("store rack state: %w", err)
	}
	return state, nil
}

func (b *Board) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}
