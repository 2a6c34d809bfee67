// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// TaskRecordedQueue is the durable queue task events are published to.
const TaskRecordedQueue = "task.recorded"

// TaskRecordedEvent is published after one submission of tasks has been
// committed. It carries enough information for downstream consumers to
// log or feed dashboards without querying the primary database.
type TaskRecordedEvent struct {
	EventID    string         `json:"event_id"`
	AuthoredBy uint64         `json:"authored_by"`
	Via        string         `json:"via"` // survey, team or admin
	Tasks      []RecordedTask `json:"tasks"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// RecordedTask is one row of a TaskRecordedEvent.
type RecordedTask struct {
	TaskID       uint64  `json:"task_id"`
	TechnicianID uint64  `json:"technician_id"`
	LocationID   uint64  `json:"location_id"`
	ActivityID   *uint64 `json:"activity_id,omitempty"`
	CableTypeID  *uint64 `json:"cable_type_id,omitempty"`
	RackID       *uint64 `json:"rack_id,omitempty"`
	Position     string  `json:"position,omitempty"`
	Quantity     *int64  `json:"quantity,omitempty"`
	Percent      string  `json:"percent,omitempty"`
}
