package embedder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/metrics"
	"github.com/atlas-cloud/ragdex/internal/repository/blob"
)

// integratedIndex is the consumer interface for index-managed
// vectorization (ISP).
type integratedIndex interface {
	chunkWriter
	Reset(ctx context.Context) error
}

// blobEnumerator lists stored source files.
type blobEnumerator interface {
	blobReader
	List(ctx context.Context) ([]blob.File, error)
}

// Integrated defers vectorization to the index service. Per-file embed
// jobs are no-ops; the whole corpus is rebuilt in one reprocess pass
// with chunk records carrying no client-side vector.
type Integrated struct {
	blobs   blobEnumerator
	index   integratedIndex
	loaders loaderResolver
	config  configProvider
	logger  *zap.Logger
}

// NewIntegrated creates the integrated-vectorization ingestion embedder.
func NewIntegrated(
	blobs blobEnumerator,
	index integratedIndex,
	loaders loaderResolver,
	config configProvider,
	logger *zap.Logger,
) *Integrated {
	return &Integrated{
		blobs:   blobs,
		index:   index,
		loaders: loaders,
		config:  config,
		logger:  logger,
	}
}

// EmbedFile does nothing: the index service picks up new files during
// the next reprocess pass.
func (e *Integrated) EmbedFile(_ context.Context, filename, _ string) error {
	e.logger.Debug("Skipping per-file embed under integrated vectorization",
		zap.String("filename", filename))
	return nil
}

// ReprocessAll drops and recreates the chunk index, then replays every
// stored file through the load+chunk path. Records carry no vector
// field; the index service vectorizes them.
func (e *Integrated) ReprocessAll(ctx context.Context) error {
	cfg, err := e.config.GetActiveOrDefault(ctx)
	if err != nil {
		return fmt.Errorf("load active configuration: %w", err)
	}

	if err := e.index.Reset(ctx); err != nil {
		return fmt.Errorf("reset chunk index: %w", err)
	}

	files, err := e.blobs.List(ctx)
	if err != nil {
		return fmt.Errorf("list source files: %w", err)
	}

	var failed int
	for _, f := range files {
		docs, err := loadChunks(ctx, cfg, e.loaders, e.blobs, f.Name, "")
		if err != nil {
			failed++
			e.logger.Error("Failed to reprocess source",
				zap.String("filename", f.Name), zap.Error(err))
			continue
		}
		if err := e.index.UpsertBatch(ctx, docs, nil); err != nil {
			failed++
			e.logger.Error("Failed to upsert reprocessed chunks",
				zap.String("filename", f.Name), zap.Error(err))
			continue
		}
		metrics.ChunksIndexedTotal.Add(float64(len(docs)))
		if err := e.blobs.MarkEmbeddingsAdded(ctx, f.Name); err != nil {
			e.logger.Warn("Failed to mark reprocessed source",
				zap.String("filename", f.Name), zap.Error(err))
		}
	}

	e.logger.Info("Reprocess pass finished",
		zap.Int("files", len(files)),
		zap.Int("failed", failed),
	)

	if failed > 0 {
		return fmt.Errorf("reprocess finished with %d of %d files failed", failed, len(files))
	}
	return nil
}

var (
	_ FileEmbedder = (*Integrated)(nil)
	_ FileEmbedder = (*Push)(nil)
)
