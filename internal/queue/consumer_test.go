package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHandleMessageLogsEveryTask(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := zap.New(core)

	rack := uint64(9)
	qty := int64(3)
	ev := TaskRecordedEvent{
		EventID:    "ev-1",
		AuthoredBy: 2,
		Via:        "survey",
		RecordedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tasks: []RecordedTask{
			{TaskID: 1, TechnicianID: 5, LocationID: 1},
			{TaskID: 2, TechnicianID: 5, LocationID: 1, RackID: &rack, Position: "left", Quantity: &qty, Percent: "18.8"},
		},
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, handleMessage(body, sink))
	require.Equal(t, 2, logs.Len())

	second := logs.All()[1].ContextMap()
	assert.Equal(t, "ev-1", second["event_id"])
	assert.Equal(t, uint64(9), second["rack_id"])
	assert.Equal(t, "18.8", second["percent"])
	_, hasRack := logs.All()[0].ContextMap()["rack_id"]
	assert.False(t, hasRack)
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
	sink := zap.NewNop()
	assert.Error(t, handleMessage([]byte("{"), sink))
	assert.Error(t, handleMessage([]byte(`{"event_id":"x","tasks":[]}`), sink))
}
