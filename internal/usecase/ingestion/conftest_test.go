package ingestion

import (
	"context"
	"time"

	"github.com/atlas-cloud/ragdex/internal/repository/blob"
	"github.com/atlas-cloud/ragdex/internal/repository/queue"
)

// mockEmbedder implements the fileEmbedder consumer interface.
type mockEmbedder struct {
	embedFileFn    func(ctx context.Context, filename, downloadURL string) error
	reprocessFn    func(ctx context.Context) error
	embedCalls     int
	reprocessCalls int
}

func (m *mockEmbedder) EmbedFile(ctx context.Context, filename, downloadURL string) error {
	m.embedCalls++
	if m.embedFileFn != nil {
		return m.embedFileFn(ctx, filename, downloadURL)
	}
	return nil
}

func (m *mockEmbedder) ReprocessAll(ctx context.Context) error {
	m.reprocessCalls++
	if m.reprocessFn != nil {
		return m.reprocessFn(ctx)
	}
	return nil
}

// mockBlobs implements the blobLister consumer interface.
type mockBlobs struct {
	listFn func(ctx context.Context) ([]blob.File, error)
}

func (m *mockBlobs) List(ctx context.Context) ([]blob.File, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// mockQueue implements both the enqueuer and jobQueue consumer interfaces.
type mockQueue struct {
	enqueueFn     func(ctx context.Context, filename string) error
	dequeueFn     func(ctx context.Context, consumer string, count int, block time.Duration) ([]queue.Task, error)
	ackFn         func(ctx context.Context, id string) error
	claimStaleFn  func(ctx context.Context, consumer string, count int) ([]queue.Task, error)
	deadLetterFn  func(ctx context.Context, task queue.Task) error
	exhaustedFn   func(ctx context.Context, task queue.Task) (bool, error)
	enqueued      []string
	acked         []string
	deadLettered  []string
	exhaustChecks int
}

func (m *mockQueue) Enqueue(ctx context.Context, filename string) error {
	m.enqueued = append(m.enqueued, filename)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, filename)
	}
	return nil
}

func (m *mockQueue) Dequeue(
	ctx context.Context, consumer string, count int, block time.Duration,
) ([]queue.Task, error) {
	if m.dequeueFn != nil {
		return m.dequeueFn(ctx, consumer, count, block)
	}
	return nil, nil
}

func (m *mockQueue) Ack(ctx context.Context, id string) error {
	m.acked = append(m.acked, id)
	if m.ackFn != nil {
		return m.ackFn(ctx, id)
	}
	return nil
}

func (m *mockQueue) ClaimStale(
	ctx context.Context, consumer string, count int,
) ([]queue.Task, error) {
	if m.claimStaleFn != nil {
		return m.claimStaleFn(ctx, consumer, count)
	}
	return nil, nil
}

func (m *mockQueue) DeadLetter(ctx context.Context, task queue.Task) error {
	m.deadLettered = append(m.deadLettered, task.ID)
	if m.deadLetterFn != nil {
		return m.deadLetterFn(ctx, task)
	}
	return nil
}

func (m *mockQueue) DeadLetterIfExhausted(ctx context.Context, task queue.Task) (bool, error) {
	m.exhaustChecks++
	if m.exhaustedFn != nil {
		return m.exhaustedFn(ctx, task)
	}
	return false, nil
}
