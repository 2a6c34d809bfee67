// Package queue contains the background consumer that listens to the
// task.recorded queue and writes one structured log entry per task to
// the task event log.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// StartTaskConsumer connects to RabbitMQ, declares the task.recorded
// queue (durable), and starts consuming messages. Each task in a message
// is written to sink. The function runs a reconnect loop and only
// returns when ctx is cancelled; processing errors are logged and the
// offending message is rejected so the server keeps operating.
func StartTaskConsumer(ctx context.Context, url string, log, sink *zap.Logger) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("task-consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, log, sink)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("task-consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, log, sink *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("task-consumer: set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(TaskRecordedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, TaskRecordedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, sink); err != nil {
			log.Error("task-consumer: handle message failed", zap.Error(err))
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, sink *zap.Logger) error {
	var ev TaskRecordedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if len(ev.Tasks) == 0 {
		return errors.New("event has no tasks")
	}
	for _, t := range ev.Tasks {
		fields := []zap.Field{
			zap.String("event_id", ev.EventID),
			zap.String("via", ev.Via),
			zap.Uint64("authored_by", ev.AuthoredBy),
			zap.Time("recorded_at", ev.RecordedAt),
			zap.Uint64("task_id", t.TaskID),
			zap.Uint64("technician_id", t.TechnicianID),
			zap.Uint64("location_id", t.LocationID),
		}
		if t.ActivityID != nil {
			fields = append(fields, zap.Uint64("activity_id", *t.ActivityID))
		}
		if t.CableTypeID != nil {
			fields = append(fields, zap.Uint64("cable_type_id", *t.CableTypeID))
		}
		if t.RackID != nil {
			fields = append(fields, zap.Uint64("rack_id", *t.RackID))
		}
		if t.Position != "" {
			fields = append(fields, zap.String("position", t.Position))
		}
		if t.Quantity != nil {
			fields = append(fields, zap.Int64("quantity", *t.Quantity))
		}
		if t.Percent != "" {
			fields = append(fields, zap.String("percent", t.Percent))
		}
		sink.Info("task recorded", fields...)
	}
	return nil
}
