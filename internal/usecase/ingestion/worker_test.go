package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/repository/queue"
)

func TestWorker_AcksSuccessfulJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var delivered atomic.Bool
	q := &mockQueue{
		dequeueFn: func(context.Context, string, int, time.Duration) ([]queue.Task, error) {
			if delivered.Swap(true) {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return []queue.Task{{ID: "1-0", Filename: "a.pdf", Deliveries: 1}}, nil
		},
		ackFn: func(context.Context, string) error {
			cancel()
			return nil
		},
	}
	embed := &mockEmbedder{}

	pool := NewPool(q, embed, PoolConfig{Workers: 1, Block: time.Millisecond}, zap.NewNop())
	pool.Start(ctx)
	pool.Wait()

	if embed.embedCalls != 1 {
		t.Fatalf("embed calls = %d, want 1", embed.embedCalls)
	}
	if len(q.acked) != 1 || q.acked[0] != "1-0" {
		t.Fatalf("acked %v", q.acked)
	}
}

func TestWorker_RetryableFailureLeftUnacked(t *testing.T) {
	q := &mockQueue{}
	embed := &mockEmbedder{
		embedFileFn: func(context.Context, string, string) error {
			return fmt.Errorf("transient: %w", domain.ErrEmbeddingProviderError)
		},
	}
	pool := NewPool(q, embed, PoolConfig{Workers: 1}, zap.NewNop())

	pool.process(context.Background(), queue.Task{ID: "1-0", Filename: "a.pdf", Deliveries: 1})

	if len(q.acked) != 0 {
		t.Fatal("failed job must not be acked")
	}
	if len(q.deadLettered) != 0 {
		t.Fatal("retryable failure below the limit must not dead-letter")
	}
	if q.exhaustChecks != 1 {
		t.Fatal("delivery budget must be checked")
	}
}

func TestWorker_NonRetryableFailureDeadLetters(t *testing.T) {
	q := &mockQueue{}
	embed := &mockEmbedder{
		embedFileFn: func(context.Context, string, string) error {
			return fmt.Errorf("bad document: %w", domain.ErrParseFailed)
		},
	}
	pool := NewPool(q, embed, PoolConfig{Workers: 1}, zap.NewNop())

	pool.process(context.Background(), queue.Task{ID: "1-0", Filename: "broken.pdf", Deliveries: 1})

	if len(q.deadLettered) != 1 || q.deadLettered[0] != "1-0" {
		t.Fatalf("expected immediate dead-letter, got %v", q.deadLettered)
	}
	if q.exhaustChecks != 0 {
		t.Fatal("non-retryable failures skip the delivery budget check")
	}
}

func TestWorker_ExhaustedRetriesDeadLetter(t *testing.T) {
	q := &mockQueue{
		exhaustedFn: func(context.Context, queue.Task) (bool, error) {
			return true, nil
		},
	}
	embed := &mockEmbedder{
		embedFileFn: func(context.Context, string, string) error {
			return fmt.Errorf("still failing: %w", domain.ErrEmbeddingProviderError)
		},
	}
	pool := NewPool(q, embed, PoolConfig{Workers: 1}, zap.NewNop())

	pool.process(context.Background(), queue.Task{ID: "1-0", Filename: "a.pdf", Deliveries: 5})

	if q.exhaustChecks != 1 {
		t.Fatal("delivery budget must be checked")
	}
	if len(q.acked) != 0 {
		t.Fatal("parked job is acked by the queue, not the worker")
	}
}

func TestWorker_EmbedTimeoutApplied(t *testing.T) {
	var sawDeadline atomic.Bool
	embed := &mockEmbedder{
		embedFileFn: func(ctx context.Context, _, _ string) error {
			_, ok := ctx.Deadline()
			sawDeadline.Store(ok)
			return nil
		},
	}
	pool := NewPool(&mockQueue{}, embed, PoolConfig{Workers: 1, EmbedTimeout: time.Minute}, zap.NewNop())

	pool.process(context.Background(), queue.Task{ID: "1-0", Filename: "a.pdf"})

	if !sawDeadline.Load() {
		t.Fatal("embed call must carry a deadline")
	}
}

func TestClaimSweep_ProcessesReclaimedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var claimed atomic.Bool
	q := &mockQueue{
		claimStaleFn: func(context.Context, string, int) ([]queue.Task, error) {
			if claimed.Swap(true) {
				return nil, nil
			}
			return []queue.Task{{ID: "9-0", Filename: "stale.pdf", Deliveries: 2}}, nil
		},
		ackFn: func(context.Context, string) error {
			cancel()
			return nil
		},
	}
	embed := &mockEmbedder{}

	pool := NewPool(q, embed, PoolConfig{
		Workers:    1,
		Block:      time.Millisecond,
		ClaimSweep: 5 * time.Millisecond,
		ClaimBatch: 10,
	}, zap.NewNop())

	// Only run the sweeper; drain the worker with an immediate cancel check.
	done := make(chan struct{})
	go func() {
		pool.runClaimSweep(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("claim sweep did not process the reclaimed job")
	}
	if embed.embedCalls != 1 {
		t.Fatalf("embed calls = %d, want 1", embed.embedCalls)
	}
	if len(q.acked) != 1 || q.acked[0] != "9-0" {
		t.Fatalf("acked %v", q.acked)
	}
}

func TestWorker_DequeueErrorBacksOff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	q := &mockQueue{
		dequeueFn: func(context.Context, string, int, time.Duration) ([]queue.Task, error) {
			if calls.Add(1) >= 2 {
				cancel()
			}
			return nil, errors.New("connection reset")
		},
	}
	pool := NewPool(q, &mockEmbedder{}, PoolConfig{Workers: 1, Block: time.Millisecond}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		pool.runWorker(ctx, "worker-0")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
	if calls.Load() < 2 {
		t.Fatalf("dequeue calls = %d", calls.Load())
	}
}
