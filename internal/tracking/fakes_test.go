package tracking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/queue"
	"github.com/iliyamo/techtrack/internal/repository"
)

type fakeTasks struct {
	mu        sync.Mutex
	rows      []model.TaskRecord
	nextID    uint64
	failWith  error
	rackHalls map[uint64]string
}

func (f *fakeTasks) InsertBatch(_ context.Context, records []model.TaskRecord) ([]model.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([]model.TaskRecord, len(records))
	for i, r := range records {
		f.nextID++
		r.ID = f.nextID
		out[i] = r
	}
	f.rows = append(f.rows, out...)
	return out, nil
}

func (f *fakeTasks) ListInWindow(_ context.Context, q model.TaskQuery) ([]model.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[uint64]bool{}
	for _, id := range q.TechnicianIDs {
		want[id] = true
	}
	var out []model.TaskRecord
	for _, r := range f.rows {
		if r.Timestamp.Before(q.Start) || !r.Timestamp.Before(q.End) {
			continue
		}
		if len(want) > 0 && !want[r.TechnicianID] {
			continue
		}
		if (q.RackOnly || q.Datahall != "") && r.RackID == nil {
			continue
		}
		if q.Datahall != "" && f.rackHalls[*r.RackID] != q.Datahall {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j], out[i]) })
	return out, nil
}

type fakeTechs map[uint64]*model.Technician

func (f fakeTechs) GetByID(_ context.Context, id uint64) (*model.Technician, error) {
	t, ok := f[id]
	if !ok {
		return nil, repository.ErrTechnicianNotFound
	}
	return t, nil
}

func (f fakeTechs) ListActive(_ context.Context, teamLeadID *uint64) ([]*model.Technician, error) {
	var out []*model.Technician
	for _, t := range f {
		if !t.IsActive {
			continue
		}
		if teamLeadID != nil && (t.TeamLeadID == nil || *t.TeamLeadID != *teamLeadID) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRacks map[uint64]*model.Rack

func (f fakeRacks) GetByID(_ context.Context, id uint64) (*model.Rack, error) {
	r, ok := f[id]
	if !ok {
		return nil, repository.ErrRackNotFound
	}
	return r, nil
}

func (f fakeRacks) List(_ context.Context, datahall string) ([]*model.Rack, error) {
	var out []*model.Rack
	for _, r := range f {
		if datahall == "" || r.Datahall == datahall {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f fakeRacks) halls() map[uint64]string {
	out := map[uint64]string{}
	for id, r := range f {
		out[id] = r.Datahall
	}
	return out
}

type fakeRefs map[model.ReferenceKind]map[uint64]string

func (f fakeRefs) GetByID(_ context.Context, kind model.ReferenceKind, id uint64) (model.Reference, error) {
	name, ok := f[kind][id]
	if !ok {
		return model.Reference{}, repository.ErrReferenceNotFound
	}
	return model.Reference{ID: id, Name: name}, nil
}

type fakePlanned map[model.ResultKey]int64

func (f fakePlanned) PlannedQuantity(_ context.Context, key model.ResultKey) (int64, bool, error) {
	q, ok := f[key]
	return q, ok, nil
}

type fakeStates struct {
	rows   []model.RackState
	halls  map[uint64]string
	nextID uint64
}

func (f *fakeStates) Insert(_ context.Context, s *model.RackState) error {
	f.nextID++
	s.ID = f.nextID
	f.rows = append(f.rows, *s)
	return nil
}

func (f *fakeStates) ListInWindow(_ context.Context, datahall string, start, end time.Time) ([]model.RackState, error) {
	var out []model.RackState
	for _, s := range f.rows {
		if s.CreatedAt.Before(start) || !s.CreatedAt.Before(end) {
			continue
		}
		if datahall != "" && f.halls[s.RackID] != datahall {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type fakeReports []model.TaskReportRow

func (f fakeReports) ListTaskReport(_ context.Context, start, end time.Time) ([]model.TaskReportRow, error) {
	var out []model.TaskReportRow
	for _, r := range f {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeEvents struct {
	events []queue.TaskRecordedEvent
	fail   bool
}

func (f *fakeEvents) PublishTaskRecorded(_ context.Context, ev queue.TaskRecordedEvent) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.events = append(f.events, ev)
	return nil
}

// world wires a Recorder, Resolver and Board over in-memory fakes:
// technicians 1 (lead), 2 and 3 (crew of 1), 4 (inactive); rack 10 in
// DH1 and rack 11 in DH2; location 1; activities 1, 2; cable types 1,
// 2; status 1; a plan of 16 for rack 10/activity 1/cable 1/left.
type world struct {
	tasks    *fakeTasks
	techs    fakeTechs
	racks    fakeRacks
	refs     fakeRefs
	planned  fakePlanned
	states   *fakeStates
	events   *fakeEvents
	recorder *Recorder
	resolver *Resolver
	board    *Board
	now      time.Time
}

func ptr[T any](v T) *T { return &v }

func newWorld(loc *time.Location) *world {
	lead := uint64(1)
	w := &world{
		techs: fakeTechs{
			1: {ID: 1, Name: "Lead", IsTeamLead: true, IsActive: true},
			2: {ID: 2, Name: "Ann", IsActive: true, TeamLeadID: &lead},
			3: {ID: 3, Name: "Bob", IsActive: true, TeamLeadID: &lead},
			4: {ID: 4, Name: "Gone", IsActive: false, TeamLeadID: &lead},
		},
		racks: fakeRacks{
			10: {ID: 10, Name: "R10", Datahall: "DH1"},
			11: {ID: 11, Name: "R11", Datahall: "DH2"},
		},
		refs: fakeRefs{
			model.KindLocation:  {1: "Hall"},
			model.KindActivity:  {1: "Pulling", 2: "Terminating"},
			model.KindCableType: {1: "Fiber", 2: "Copper"},
			model.KindStatus:    {1: "Done"},
		},
		planned: fakePlanned{
			{RackID: 10, ActivityID: 1, CableTypeID: 1, Position: model.PositionLeft}: 16,
		},
		events: &fakeEvents{},
		now:    time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC),
	}
	w.tasks = &fakeTasks{rackHalls: w.racks.halls()}
	w.states = &fakeStates{halls: w.racks.halls()}
	progress := NewProgress(w.planned)
	clock := func() time.Time { return w.now }
	w.recorder = &Recorder{
		Tasks: w.tasks, Technicians: w.techs, Racks: w.racks, References: w.refs,
		Progress: progress, Events: w.events, Now: clock,
	}
	w.resolver = &Resolver{Tasks: w.tasks, States: w.states, Racks: w.racks, Progress: progress, Location: loc}
	w.board = &Board{
		Technicians: w.techs, Resolver: w.resolver, Recorder: w.recorder, States: w.states,
		Racks: w.racks, References: w.refs, Progress: progress, Now: clock,
	}
	return w
}
