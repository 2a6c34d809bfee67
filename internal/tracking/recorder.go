package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/queue"
	"github.com/iliyamo/techtrack/internal/repository"
)

// Submission is one "confirm" of the task form. Every combination of
// the listed activities and cable types becomes its own row; an empty
// list contributes a single row with no value.
type Submission struct {
	TechnicianID uint64
	AuthoredBy   uint64
	LocationID   uint64
	ActivityIDs  []uint64
	CableTypeIDs []uint64
	RackID       *uint64
	Position     *model.Position
	Quantity     *int64
	Timestamp    time.Time // zero means now
	Via          string    // channel tag carried on the published event
}

// TaskInput describes a single task row.
type TaskInput struct {
	TechnicianID uint64
	AuthoredBy   uint64
	LocationID   uint64
	ActivityID   *uint64
	CableTypeID  *uint64
	RackID       *uint64
	Position     *model.Position
	Quantity     *int64
	Timestamp    time.Time
	Via          string
}

// Recorder validates submissions and appends them to the task log.
type Recorder struct {
	Tasks       TaskStore
	Technicians TechnicianStore
	Racks       RackStore
	References  ReferenceStore
	Progress    *Progress
	Events      EventPublisher // optional
	Log         *zap.Logger
	Now         func() time.Time
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// RecordOne records a single task row.
func (r *Recorder) RecordOne(ctx context.Context, in TaskInput) (model.TaskRecord, error) {
	s := Submission{
		TechnicianID: in.TechnicianID,
		AuthoredBy:   in.AuthoredBy,
		LocationID:   in.LocationID,
		RackID:       in.RackID,
		Position:     in.Position,
		Quantity:     in.Quantity,
		Timestamp:    in.Timestamp,
		Via:          in.Via,
	}
	if in.ActivityID != nil {
		s.ActivityIDs = []uint64{*in.ActivityID}
	}
	if in.CableTypeID != nil {
		s.CableTypeIDs = []uint64{*in.CableTypeID}
	}
	rows, err := r.Record(ctx, s)
	if err != nil {
		return model.TaskRecord{}, err
	}
	return rows[0], nil
}

// Record expands and stores one submission.
func (r *Recorder) Record(ctx context.Context, s Submission) ([]model.TaskRecord, error) {
	return r.RecordAll(ctx, []Submission{s})
}

// RecordAll validates every submission and stores all resulting rows in
// one transaction; either every row is stored or none is. After commit
// a task.recorded event is published on a best effort basis.
func (r *Recorder) RecordAll(ctx context.Context, subs []Submission) ([]model.TaskRecord, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: nothing to record", ErrInvalidInput)
	}
	v := &validator{r: r, techs: map[uint64]*model.Technician{}, seen: map[refKey]bool{}}
	now := r.now()
	var rows []model.TaskRecord
	for i, s := range subs {
		if err := v.check(ctx, s); err != nil {
			if len(subs) > 1 {
				return nil, fmt.Errorf("submission %d: %w", i, err)
			}
			return nil, err
		}
		expanded, err := r.expand(ctx, s, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, expanded...)
	}

	stored, err := r.Tasks.InsertBatch(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("store tasks: %w", err)
	}
	r.publish(ctx, subs[0], stored, now)
	return stored, nil
}

// expand turns a submission into its activity x cable type rows.
func (r *Recorder) expand(ctx context.Context, s Submission, now time.Time) ([]model.TaskRecord, error) {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = now
	}
	var out []model.TaskRecord
	for _, activity := range optionalIDs(s.ActivityIDs) {
		for _, cable := range optionalIDs(s.CableTypeIDs) {
			rec := model.TaskRecord{
				TechnicianID: s.TechnicianID,
				SourceID:     s.AuthoredBy,
				LocationID:   s.LocationID,
				ActivityID:   activity,
				CableTypeID:  cable,
				RackID:       s.RackID,
				Position:     s.Position,
				Quantity:     s.Quantity,
				Timestamp:    ts.UTC(),
			}
			if key, ok := resultKeyOf(rec); ok && r.Progress != nil {
				pct, err := r.Progress.PercentComplete(ctx, key, *rec.Quantity)
				if err != nil {
					return nil, fmt.Errorf("percent complete: %w", err)
				}
				rec.Percent = decimal.NewNullDecimal(pct)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// resultKeyOf returns the planned quantity key of a row that carries a
// quantity and every key part.
func resultKeyOf(rec model.TaskRecord) (model.ResultKey, bool) {
	if rec.Quantity == nil || rec.Position == nil {
		return model.ResultKey{}, false
	}
	k, ok := ByTaskRack(rec)
	if !ok {
		return model.ResultKey{}, false
	}
	return k.ResultKey()
}

// optionalIDs dedupes ids keeping their order; an empty list yields a
// single nil.
func optionalIDs(ids []uint64) []*uint64 {
	seen := make(map[uint64]bool, len(ids))
	var out []*uint64
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		id := id
		out = append(out, &id)
	}
	if len(out) == 0 {
		return []*uint64{nil}
	}
	return out
}

func (r *Recorder) publish(ctx context.Context, first Submission, rows []model.TaskRecord, now time.Time) {
	if r.Events == nil {
		return
	}
	ev := queue.TaskRecordedEvent{
		EventID:    uuid.NewString(),
		AuthoredBy: first.AuthoredBy,
		Via:        first.Via,
		RecordedAt: now,
	}
	for _, row := range rows {
		t := queue.RecordedTask{
			TaskID:       row.ID,
			TechnicianID: row.TechnicianID,
			LocationID:   row.LocationID,
			ActivityID:   row.ActivityID,
			CableTypeID:  row.CableTypeID,
			RackID:       row.RackID,
			Quantity:     row.Quantity,
		}
		if row.Position != nil {
			t.Position = string(*row.Position)
		}
		if row.Percent.Valid {
			t.Percent = row.Percent.Decimal.StringFixed(1)
		}
		ev.Tasks = append(ev.Tasks, t)
	}
	if err := r.Events.PublishTaskRecorded(ctx, ev); err != nil && r.Log != nil {
		r.Log.Warn("publish task.recorded failed", zap.String("event_id", ev.EventID), zap.Error(err))
	}
}

type refKey struct {
	kind model.ReferenceKind
	id   uint64
}

// validator checks submissions, caching lookups across one batch.
type validator struct {
	r     *Recorder
	techs map[uint64]*model.Technician
	seen  map[refKey]bool
}

func (v *validator) technician(ctx context.Context, id uint64) (*model.Technician, error) {
	if t, ok := v.techs[id]; ok {
		return t, nil
	}
	t, err := v.r.Technicians.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("technician %d: %w", id, ErrUnknownTechnician)
	}
	if err != nil {
		return nil, err
	}
	v.techs[id] = t
	return t, nil
}

func (v *validator) reference(ctx context.Context, kind model.ReferenceKind, id uint64) error {
	k := refKey{kind, id}
	if id == 0 || v.seen[k] || v.r.References == nil {
		return nil
	}
	_, err := v.r.References.GetByID(ctx, kind, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrUnknownReference)
	}
	if err != nil {
		return err
	}
	v.seen[k] = true
	return nil
}

func (v *validator) check(ctx context.Context, s Submission) error {
	if s.TechnicianID == 0 {
		return fmt.Errorf("%w: technician is required", ErrInvalidInput)
	}
	if s.LocationID == 0 {
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	}
	if s.Quantity != nil && *s.Quantity < 0 {
		return fmt.Errorf("%w: quantity must be >= 0", ErrInvalidInput)
	}
	if s.Position != nil && !s.Position.Valid() {
		return fmt.Errorf("%w: invalid position %q", ErrInvalidInput, *s.Position)
	}
	tech, err := v.technician(ctx, s.TechnicianID)
	if err != nil {
		return err
	}
	if !tech.IsActive {
		return fmt.Errorf("technician %d: %w", s.TechnicianID, ErrInactiveTechnician)
	}
	if s.AuthoredBy == 0 {
		return fmt.Errorf("%w: author is required", ErrInvalidInput)
	}
	if _, err := v.technician(ctx, s.AuthoredBy); err != nil {
		return err
	}
	if s.RackID != nil {
		if _, err := v.r.Racks.GetByID(ctx, *s.RackID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("rack %d: %w", *s.RackID, ErrUnknownRack)
			}
			return err
		}
	}
	if err := v.reference(ctx, model.KindLocation, s.LocationID); err != nil {
		return err
	}
	for _, id := range s.ActivityIDs {
		if err := v.reference(ctx, model.KindActivity, id); err != nil {
			return err
		}
	}
	for _, id := range s.CableTypeIDs {
		if err := v.reference(ctx, model.KindCableType, id); err != nil {
			return err
		}
	}
	return nil
}
