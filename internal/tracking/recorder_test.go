package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/techtrack/internal/model"
)

func TestRecordExpandsCrossProduct(t *testing.T) {
	ctx := context.Background()
	w := newWorld(time.UTC)

	rows, err := w.recorder.Record(ctx, Submission{
		TechnicianID: 2,
		AuthoredBy:   2,
		LocationID:   1,
		ActivityIDs:  []uint64{1, 2, 1},
		CableTypeIDs: []uint64{1, 2},
		RackID:       ptr(uint64(10)),
		Position:     ptr(model.PositionLeft),
		Quantity:     ptr(int64(1)),
		Via:          "survey",
	})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	seen := map[[2]uint64]bool{}
	for _, r := range rows {
		seen[[2]uint64{*r.ActivityID, *r.CableTypeID}] = true
		assert.True(t, r.Timestamp.Equal(w.now))
		assert.Equal(t, uint64(2), r.SourceID)
		assert.True(t, r.Percent.Valid)
	}
	assert.Len(t, seen, 4)
	// only activity 1 / cable 1 has a plan
	assert.Equal(t, "6.3", rows[0].Percent.Decimal.StringFixed(1))
	assert.True(t, rows[1].Percent.Decimal.IsZero())

	require.Len(t, w.events.events, 1)
	ev := w.events.events[0]
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "survey", ev.Via)
	assert.Len(t, ev.Tasks, 4)
	assert.Equal(t, "6.3", ev.Tasks[0].Percent)
}

func TestRecordWithoutOptionalFields(t *testing.T) {
	ctx := context.Background()
	w := newWorld(time.UTC)

	rows, err := w.recorder.Record(ctx, Submission{TechnicianID: 2, AuthoredBy: 2, LocationID: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].ActivityID)
	assert.Nil(t, rows[0].CableTypeID)
	assert.Nil(t, rows[0].RackID)
	assert.False(t, rows[0].Percent.Valid)
}

func TestRecordOneKeepsExplicitTimestamp(t *testing.T) {
	ctx := context.Background()
	w := newWorld(time.UTC)
	at := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

	row, err := w.recorder.RecordOne(ctx, TaskInput{
		TechnicianID: 3, AuthoredBy: 1, LocationID: 1, ActivityID: ptr(uint64(2)), Timestamp: at,
	})
	require.NoError(t, err)
	assert.True(t, row.Timestamp.Equal(at))
	assert.Equal(t, uint64(2), *row.ActivityID)
	assert.Equal(t, uint64(1), row.SourceID)
}

func TestRecordRejectsInvalidSubmissions(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		sub  Submission
		want error
	}{
		{"missing location", Submission{TechnicianID: 2, AuthoredBy: 2}, ErrInvalidInput},
		{"negative quantity", Submission{TechnicianID: 2, AuthoredBy: 2, LocationID: 1, Quantity: ptr(int64(-1))}, ErrInvalidInput},
		{"bad position", Submission{TechnicianID: 2, AuthoredBy: 2, LocationID: 1, Position: ptr(model.Position("top"))}, ErrInvalidInput},
		{"unknown technician", Submission{TechnicianID: 99, AuthoredBy: 2, LocationID: 1}, ErrUnknownTechnician},
		{"inactive technician", Submission{TechnicianID: 4, AuthoredBy: 1, LocationID: 1}, ErrInactiveTechnician},
		{"unknown author", Submission{TechnicianID: 2, AuthoredBy: 98, LocationID: 1}, ErrUnknownTechnician},
		{"unknown rack", Submission{TechnicianID: 2, AuthoredBy: 2, LocationID: 1, RackID: ptr(uint64(77))}, ErrUnknownRack},
		{"unknown location", Submission{TechnicianID: 2, AuthoredBy: 2, LocationID: 5}, ErrUnknownReference},
		{"unknown activity", Submission{TechnicianID: 2, AuthoredBy: 2, LocationID: 1, ActivityIDs: []uint64{9}}, ErrUnknownReference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorld(time.UTC)
			_, err := w.recorder.Record(ctx, tc.sub)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, w.tasks.rows)
			assert.Empty(t, w.events.events)
		})
	}
}

func TestRecordAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	w := newWorld(time.UTC)

	_, err := w.recorder.RecordAll(ctx, []Submission{
		{TechnicianID: 2, AuthoredBy: 1, LocationID: 1},
		{TechnicianID: 4, AuthoredBy: 1, LocationID: 1},
	})
	assert.ErrorIs(t, err, ErrInactiveTechnician)
	assert.Empty(t, w.tasks.rows)

	w.tasks.failWith = errors.New("connection lost")
	_, err = w.recorder.Record(ctx, Submission{TechnicianID: 2, AuthoredBy: 2, LocationID: 1})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, w.events.events)
}

func TestRecordSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	w := newWorld(time.UTC)
	w.events.fail = true

	rows, err := w.recorder.Record(ctx, Submission{TechnicianID: 2, AuthoredBy: 2, LocationID: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
