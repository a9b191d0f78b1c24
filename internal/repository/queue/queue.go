// Package queue implements the ingestion work queue on stream consumer
// groups: at-least-once delivery, visibility-timeout reclaim, and a
// dead-letter stream for poison messages.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/db"
	"github.com/atlas-cloud/ragdex/internal/domain"
)

const messageField = "message"

// store is the consumer interface for the work queue (ISP).
type store interface {
	StreamAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
	StreamGroupCreate(ctx context.Context, stream, group string) error
	StreamReadGroup(
		ctx context.Context, stream, group, consumer string, count int, block time.Duration,
	) ([]db.StreamMessage, error)
	StreamAck(ctx context.Context, stream, group string, ids ...string) error
	StreamPending(
		ctx context.Context, stream, group string, minIdle time.Duration, count int,
	) ([]db.PendingEntry, error)
	StreamClaim(
		ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string,
	) ([]db.StreamMessage, error)
}

// Task is one dequeued ingestion job.
type Task struct {
	ID         string
	Filename   string
	Deliveries int64
}

// Config holds the queue wiring parameters.
type Config struct {
	Stream           string
	Group            string
	DeadLetterStream string
	MaxDeliveries    int64
	Visibility       time.Duration
}

// Queue implements the ingestion work queue.
type Queue struct {
	store  store
	cfg    Config
	logger *zap.Logger
}

// New creates a work queue and ensures the consumer group exists.
func New(ctx context.Context, s store, cfg Config, logger *zap.Logger) (*Queue, error) {
	if err := s.StreamGroupCreate(ctx, cfg.Stream, cfg.Group); err != nil {
		return nil, fmt.Errorf("create consumer group %s/%s: %w", cfg.Stream, cfg.Group, err)
	}
	return &Queue{store: s, cfg: cfg, logger: logger}, nil
}

// Enqueue publishes an ingestion job for a file.
func (q *Queue) Enqueue(ctx context.Context, filename string) error {
	if filename == "" {
		return fmt.Errorf("filename is required: %w", domain.ErrBadInput)
	}

	id, err := q.store.StreamAdd(ctx, q.cfg.Stream, map[string]string{
		messageField: encodeMessage(filename),
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", filename, err)
	}

	q.logger.Debug("Enqueued ingestion job",
		zap.String("filename", filename),
		zap.String("message_id", id),
	)
	return nil
}

// Dequeue blocks up to the given duration for new jobs. Malformed
// messages are acked away and reported in the malformed count.
func (q *Queue) Dequeue(ctx context.Context, consumer string, count int, block time.Duration) ([]Task, error) {
	msgs, err := q.store.StreamReadGroup(ctx, q.cfg.Stream, q.cfg.Group, consumer, count, block)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}

	return q.toTasks(ctx, msgs, 1), nil
}

// Ack marks a job done. Safe to call twice for the same id.
func (q *Queue) Ack(ctx context.Context, id string) error {
	if err := q.store.StreamAck(ctx, q.cfg.Stream, q.cfg.Group, id); err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}

// ClaimStale takes over jobs whose consumer went silent past the
// visibility timeout. Jobs past the delivery limit move to the
// dead-letter stream instead of being retried.
func (q *Queue) ClaimStale(ctx context.Context, consumer string, count int) ([]Task, error) {
	pending, err := q.store.StreamPending(ctx, q.cfg.Stream, q.cfg.Group, q.cfg.Visibility, count)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	var retryIDs []string
	for _, p := range pending {
		if p.DeliveryCount >= q.cfg.MaxDeliveries {
			if err := q.deadLetter(ctx, p); err != nil {
				q.logger.Error("Failed to dead-letter message",
					zap.String("message_id", p.ID), zap.Error(err))
			}
			continue
		}
		retryIDs = append(retryIDs, p.ID)
	}
	if len(retryIDs) == 0 {
		return nil, nil
	}

	msgs, err := q.store.StreamClaim(ctx, q.cfg.Stream, q.cfg.Group, consumer, q.cfg.Visibility, retryIDs...)
	if err != nil {
		return nil, fmt.Errorf("claim stale: %w", err)
	}

	deliveries := make(map[string]int64, len(pending))
	for _, p := range pending {
		deliveries[p.ID] = p.DeliveryCount
	}

	tasks := q.toTasks(ctx, msgs, 0)
	for i := range tasks {
		// claim does not bump the counter we read, count the new delivery
		tasks[i].Deliveries = deliveries[tasks[i].ID] + 1
	}
	return tasks, nil
}

// DeadLetter parks a job immediately, regardless of retries left. Used for
// failures that no amount of retrying can fix.
func (q *Queue) DeadLetter(ctx context.Context, task Task) error {
	return q.deadLetter(ctx, db.PendingEntry{ID: task.ID, DeliveryCount: task.Deliveries})
}

// DeadLetterIfExhausted moves a failed job to the dead-letter stream when
// it has no retries left. Returns true when the job was parked.
func (q *Queue) DeadLetterIfExhausted(ctx context.Context, task Task) (bool, error) {
	if task.Deliveries < q.cfg.MaxDeliveries {
		return false, nil
	}

	err := q.deadLetter(ctx, db.PendingEntry{ID: task.ID, DeliveryCount: task.Deliveries})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (q *Queue) deadLetter(ctx context.Context, p db.PendingEntry) error {
	// Reclaim under a reaper identity to read the body before parking.
	msgs, err := q.store.StreamClaim(ctx, q.cfg.Stream, q.cfg.Group, "dead-letter-reaper", 0, p.ID)
	if err != nil {
		return fmt.Errorf("claim for dead-letter: %w", err)
	}

	body := ""
	if len(msgs) > 0 {
		body = msgs[0].Fields[messageField]
	}

	if _, err := q.store.StreamAdd(ctx, q.cfg.DeadLetterStream, map[string]string{
		messageField: body,
		"origin_id":  p.ID,
		"deliveries": strconv.FormatInt(p.DeliveryCount, 10),
	}); err != nil {
		return fmt.Errorf("park in dead-letter stream: %w", err)
	}

	if err := q.store.StreamAck(ctx, q.cfg.Stream, q.cfg.Group, p.ID); err != nil {
		return fmt.Errorf("ack dead-lettered %s: %w", p.ID, err)
	}

	q.logger.Warn("Message moved to dead-letter stream",
		zap.String("message_id", p.ID),
		zap.Int64("deliveries", p.DeliveryCount),
	)
	return nil
}

func (q *Queue) toTasks(ctx context.Context, msgs []db.StreamMessage, deliveries int64) []Task {
	tasks := make([]Task, 0, len(msgs))
	for _, msg := range msgs {
		filename, err := decodeFilename(msg.Fields[messageField])
		if err != nil {
			if errors.Is(err, domain.ErrBadInput) {
				q.logger.Warn("Dropping malformed queue message",
					zap.String("message_id", msg.ID), zap.Error(err))
				if ackErr := q.store.StreamAck(ctx, q.cfg.Stream, q.cfg.Group, msg.ID); ackErr != nil {
					q.logger.Error("Failed to ack malformed message",
						zap.String("message_id", msg.ID), zap.Error(ackErr))
				}
			}
			continue
		}
		tasks = append(tasks, Task{ID: msg.ID, Filename: filename, Deliveries: deliveries})
	}
	return tasks
}
