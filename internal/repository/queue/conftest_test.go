package queue

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	streamAddFn       func(ctx context.Context, stream string, fields map[string]string) (string, error)
	streamGroupFn     func(ctx context.Context, stream, group string) error
	streamReadGroupFn func(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]db.StreamMessage, error)
	streamAckFn       func(ctx context.Context, stream, group string, ids ...string) error
	streamPendingFn   func(ctx context.Context, stream, group string, minIdle time.Duration, count int) ([]db.PendingEntry, error)
	streamClaimFn     func(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]db.StreamMessage, error)
}

func (m *mockStore) StreamAdd(ctx context.Context, stream string, fields map[string]string) (string, error) {
	if m.streamAddFn != nil {
		return m.streamAddFn(ctx, stream, fields)
	}
	return "1-0", nil
}

func (m *mockStore) StreamGroupCreate(ctx context.Context, stream, group string) error {
	if m.streamGroupFn != nil {
		return m.streamGroupFn(ctx, stream, group)
	}
	return nil
}

func (m *mockStore) StreamReadGroup(
	ctx context.Context, stream, group, consumer string, count int, block time.Duration,
) ([]db.StreamMessage, error) {
	if m.streamReadGroupFn != nil {
		return m.streamReadGroupFn(ctx, stream, group, consumer, count, block)
	}
	return nil, nil
}

func (m *mockStore) StreamAck(ctx context.Context, stream, group string, ids ...string) error {
	if m.streamAckFn != nil {
		return m.streamAckFn(ctx, stream, group, ids...)
	}
	return nil
}

func (m *mockStore) StreamPending(
	ctx context.Context, stream, group string, minIdle time.Duration, count int,
) ([]db.PendingEntry, error) {
	if m.streamPendingFn != nil {
		return m.streamPendingFn(ctx, stream, group, minIdle, count)
	}
	return nil, nil
}

func (m *mockStore) StreamClaim(
	ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string,
) ([]db.StreamMessage, error) {
	if m.streamClaimFn != nil {
		return m.streamClaimFn(ctx, stream, group, consumer, minIdle, ids...)
	}
	return nil, nil
}

func testConfig() Config {
	return Config{
		Stream:           "ragdex:queue:ingest",
		Group:            "ingest-workers",
		DeadLetterStream: "ragdex:queue:ingest:dead",
		MaxDeliveries:    5,
		Visibility:       time.Minute,
	}
}

func newTestQueue(t *testing.T) (*Queue, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	q, err := New(context.Background(), ms, testConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return q, ms
}
