package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/atlas-cloud/ragdex/internal/db"
)

// StreamAdd appends a message to a stream and returns its id.
func (s *Store) StreamAdd(ctx context.Context, stream string, fields map[string]string) (string, error) {
	cmd := s.b().Xadd().Key(stream).Id("*").FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	id, err := s.do(ctx, cmd.Build()).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}

// StreamGroupCreate creates a consumer group, creating the stream when
// missing. An already existing group is not an error.
func (s *Store) StreamGroupCreate(ctx context.Context, stream, group string) error {
	cmd := s.b().XgroupCreate().Key(stream).Group(group).Id("0").Mkstream().Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "busygroup") {
			return nil
		}
		return &db.Error{Op: db.OpXGroup, Err: err}
	}
	return nil
}

// StreamReadGroup reads new messages for a consumer, blocking up to block.
func (s *Store) StreamReadGroup(
	ctx context.Context, stream, group, consumer string, count int, block time.Duration,
) ([]db.StreamMessage, error) {
	cmd := s.b().Xreadgroup().Group(group, consumer).
		Count(int64(count)).Block(block.Milliseconds()).
		Streams().Key(stream).Id(">").Build()

	res, err := s.do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpXReadGroup, Err: err}
	}

	return entriesToMessages(res[stream]), nil
}

// StreamAck acknowledges processed messages.
func (s *Store) StreamAck(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	cmd := s.b().Xack().Key(stream).Group(group).Id(ids...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpXAck, Err: err}
	}
	return nil
}

// StreamPending lists unacknowledged messages idle for at least minIdle.
func (s *Store) StreamPending(
	ctx context.Context, stream, group string, minIdle time.Duration, count int,
) ([]db.PendingEntry, error) {
	cmd := s.b().Arbitrary("XPENDING").Keys(stream).Args(
		group, "IDLE", strconv.FormatInt(minIdle.Milliseconds(), 10),
		"-", "+", strconv.Itoa(count),
	).Build()

	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpXPending, Err: err}
	}

	entries := make([]db.PendingEntry, 0, len(raw))
	for _, msg := range raw {
		parts, err := msg.ToArray()
		if err != nil || len(parts) < 4 {
			continue
		}
		id, _ := parts[0].ToString()
		consumer, _ := parts[1].ToString()
		idleMS, _ := parts[2].AsInt64()
		deliveries, _ := parts[3].AsInt64()
		entries = append(entries, db.PendingEntry{
			ID:            id,
			Consumer:      consumer,
			Idle:          time.Duration(idleMS) * time.Millisecond,
			DeliveryCount: deliveries,
		})
	}
	return entries, nil
}

// StreamClaim transfers ownership of pending messages to the given consumer.
func (s *Store) StreamClaim(
	ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string,
) ([]db.StreamMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := []string{group, consumer, strconv.FormatInt(minIdle.Milliseconds(), 10)}
	args = append(args, ids...)

	cmd := s.b().Arbitrary("XCLAIM").Keys(stream).Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpXClaim, Err: err}
	}

	messages := make([]db.StreamMessage, 0, len(raw))
	for _, msg := range raw {
		parts, err := msg.ToArray()
		if err != nil || len(parts) < 2 {
			continue
		}
		id, err := parts[0].ToString()
		if err != nil {
			continue
		}
		fieldArr, err := parts[1].ToArray()
		if err != nil {
			continue
		}
		messages = append(messages, db.StreamMessage{
			ID:     id,
			Fields: parseFieldPairs(fieldArr),
		})
	}
	return messages, nil
}

func entriesToMessages(entries []rueidis.XRangeEntry) []db.StreamMessage {
	messages := make([]db.StreamMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, db.StreamMessage{ID: e.ID, Fields: e.FieldValues})
	}
	return messages
}
