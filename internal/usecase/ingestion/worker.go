package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/metrics"
	"github.com/atlas-cloud/ragdex/internal/repository/queue"
)

// jobQueue is the consumer interface over the ingestion queue (ISP).
type jobQueue interface {
	Dequeue(ctx context.Context, consumer string, count int, block time.Duration) ([]queue.Task, error)
	Ack(ctx context.Context, id string) error
	ClaimStale(ctx context.Context, consumer string, count int) ([]queue.Task, error)
	DeadLetter(ctx context.Context, task queue.Task) error
	DeadLetterIfExhausted(ctx context.Context, task queue.Task) (bool, error)
}

// embedFiler processes one file (ISP).
type embedFiler interface {
	EmbedFile(ctx context.Context, filename, downloadURL string) error
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Workers      int
	Block        time.Duration
	EmbedTimeout time.Duration
	ClaimSweep   time.Duration
	ClaimBatch   int
}

// Pool runs queue workers plus a periodic sweep that reclaims jobs from
// dead consumers.
type Pool struct {
	queue  jobQueue
	embed  embedFiler
	cfg    PoolConfig
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewPool creates the worker pool.
func NewPool(q jobQueue, embed embedFiler, cfg PoolConfig, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pool{queue: q, embed: embed, cfg: cfg, logger: logger}
}

// Start launches the workers and the claim sweep. They run until ctx is
// cancelled; Wait blocks until all of them have drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		consumer := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runWorker(ctx, consumer)
		}()
	}

	if p.cfg.ClaimSweep > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runClaimSweep(ctx)
		}()
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, consumer string) {
	p.logger.Info("ingestion worker started", zap.String("consumer", consumer))
	for {
		if ctx.Err() != nil {
			p.logger.Info("ingestion worker stopped", zap.String("consumer", consumer))
			return
		}

		tasks, err := p.queue.Dequeue(ctx, consumer, 1, p.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.String("consumer", consumer), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, task := range tasks {
			p.process(ctx, task)
		}
	}
}

// runClaimSweep periodically reclaims jobs stuck on dead consumers and
// processes them in place.
func (p *Pool) runClaimSweep(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ClaimSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tasks, err := p.queue.ClaimStale(ctx, "claim-sweeper", p.cfg.ClaimBatch)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("claim sweep failed", zap.Error(err))
			}
			continue
		}
		for _, task := range tasks {
			p.logger.Info("reclaimed stale job",
				zap.String("message_id", task.ID),
				zap.String("filename", task.Filename),
				zap.Int64("deliveries", task.Deliveries))
			p.process(ctx, task)
		}
	}
}

func (p *Pool) process(ctx context.Context, task queue.Task) {
	started := time.Now()

	cctx := ctx
	cancel := func() {}
	if p.cfg.EmbedTimeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, p.cfg.EmbedTimeout)
	}
	err := p.embed.EmbedFile(cctx, task.Filename, "")
	cancel()

	metrics.EmbedFileDuration.Observe(time.Since(started).Seconds())

	if err == nil {
		if err := p.queue.Ack(ctx, task.ID); err != nil {
			p.logger.Error("ack failed", zap.String("message_id", task.ID), zap.Error(err))
		}
		metrics.FilesProcessedTotal.WithLabelValues("ok").Inc()
		return
	}

	if !domain.Retryable(err) {
		p.logger.Error("permanent ingestion failure",
			zap.String("filename", task.Filename),
			zap.Error(err))
		if dlErr := p.queue.DeadLetter(ctx, task); dlErr != nil {
			p.logger.Error("dead-letter failed",
				zap.String("message_id", task.ID), zap.Error(dlErr))
		}
		metrics.FilesProcessedTotal.WithLabelValues("dead_letter").Inc()
		return
	}

	parked, dlErr := p.queue.DeadLetterIfExhausted(ctx, task)
	if dlErr != nil {
		p.logger.Error("dead-letter check failed",
			zap.String("message_id", task.ID), zap.Error(dlErr))
	}
	if parked {
		metrics.FilesProcessedTotal.WithLabelValues("dead_letter").Inc()
		return
	}

	// Left unacked; the visibility timeout returns it to the queue.
	p.logger.Warn("ingestion failed, job will retry",
		zap.String("filename", task.Filename),
		zap.Int64("deliveries", task.Deliveries),
		zap.Error(err))
	metrics.FilesProcessedTotal.WithLabelValues("retry").Inc()
}
