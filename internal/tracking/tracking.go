// Package tracking records technician tasks and derives current state
// from the append-only task log.
//
// Writes go through Recorder and only ever insert rows. Everything else
// (the current task of a technician, the current state of a rack, the
// admin reports) is a projection over rows selected for one local day:
// the newest row per grouping key wins, with the higher row id breaking
// timestamp ties.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/techtrack/internal/model"
	"github.com/iliyamo/techtrack/internal/queue"
)

var (
	// ErrInvalidInput wraps every validation failure of a submission.
	ErrInvalidInput = errors.New("invalid input")

	ErrUnknownTechnician  = fmt.Errorf("%w: unknown technician", ErrInvalidInput)
	ErrInactiveTechnician = fmt.Errorf("%w: technician is inactive", ErrInvalidInput)
	ErrUnknownRack        = fmt.Errorf("%w: unknown rack", ErrInvalidInput)
	ErrUnknownReference   = fmt.Errorf("%w: unknown reference", ErrInvalidInput)

	// ErrNotTeamLead is returned when a board operation is attempted by
	// a technician without the team lead or admin flag.
	ErrNotTeamLead = errors.New("team lead required")
)

// TaskStore is the append-only task log.
type TaskStore interface {
	InsertBatch(ctx context.Context, records []model.TaskRecord) ([]model.TaskRecord, error)
	ListInWindow(ctx context.Context, q model.TaskQuery) ([]model.TaskRecord, error)
}

// TechnicianStore looks technicians up.
type TechnicianStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Technician, error)
	ListActive(ctx context.Context, teamLeadID *uint64) ([]*model.Technician, error)
}

// RackStore looks racks up.
type RackStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Rack, error)
	List(ctx context.Context, datahall string) ([]*model.Rack, error)
}

// ReferenceStore looks lookup rows up.
type ReferenceStore interface {
	GetByID(ctx context.Context, kind model.ReferenceKind, id uint64) (model.Reference, error)
}

// PlannedStore returns planned quantities.
type PlannedStore interface {
	PlannedQuantity(ctx context.Context, key model.ResultKey) (int64, bool, error)
}

// RackStateStore is the append-only rack status log.
type RackStateStore interface {
	Insert(ctx context.Context, s *model.RackState) error
	ListInWindow(ctx context.Context, datahall string, start, end time.Time) ([]model.RackState, error)
}

// ReportStore returns joined task rows for reports.
type ReportStore interface {
	ListTaskReport(ctx context.Context, start, end time.Time) ([]model.TaskReportRow, error)
}

// EventPublisher receives an event after each committed submission.
type EventPublisher interface {
	PublishTaskRecorded(ctx context.Context, event queue.TaskRecordedEvent) error
}
