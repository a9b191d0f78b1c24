package embedder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/metrics"
)

// chunkWriter is the consumer interface over the chunk index (ISP).
type chunkWriter interface {
	UpsertBatch(ctx context.Context, docs []domain.SourceDocument, vectors [][]float32) error
}

// Push computes embeddings in-process and writes complete chunk records.
type Push struct {
	blobs   blobReader
	index   chunkWriter
	loaders loaderResolver
	config  configProvider
	embed   domain.BatchEmbedder
	logger  *zap.Logger
}

// NewPush creates the push-model ingestion embedder.
func NewPush(
	blobs blobReader,
	index chunkWriter,
	loaders loaderResolver,
	config configProvider,
	embed domain.BatchEmbedder,
	logger *zap.Logger,
) *Push {
	return &Push{
		blobs:   blobs,
		index:   index,
		loaders: loaders,
		config:  config,
		embed:   embed,
		logger:  logger,
	}
}

// EmbedFile ingests one source end to end: load, chunk, embed, upsert.
// The blob's processed flag flips only after every step succeeded, so a
// failed run is retried whole.
func (p *Push) EmbedFile(ctx context.Context, filename, downloadURL string) error {
	cfg, err := p.config.GetActiveOrDefault(ctx)
	if err != nil {
		return fmt.Errorf("load active configuration: %w", err)
	}

	docs, err := loadChunks(ctx, cfg, p.loaders, p.blobs, filename, downloadURL)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		p.logger.Warn("Source produced no chunks", zap.String("filename", filename))
		return p.markProcessed(ctx, filename)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	result, err := p.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", filename, err)
	}

	if err := p.index.UpsertBatch(ctx, docs, result.Embeddings); err != nil {
		return fmt.Errorf("index %s: %w", filename, err)
	}

	metrics.ChunksIndexedTotal.Add(float64(len(docs)))
	p.logger.Info("Source ingested",
		zap.String("filename", filename),
		zap.Int("chunks", len(docs)),
		zap.Int("embedding_tokens", result.TotalTokens),
	)

	return p.markProcessed(ctx, filename)
}

// ReprocessAll is an index-side rebuild, which the push variant does not
// have. Callers reprocess by re-enqueueing files instead.
func (p *Push) ReprocessAll(_ context.Context) error {
	return fmt.Errorf("reprocess-all requires integrated vectorization: %w", domain.ErrNotSupported)
}

func (p *Push) markProcessed(ctx context.Context, filename string) error {
	if strings.HasPrefix(filename, "http://") || strings.HasPrefix(filename, "https://") {
		// URLs have no blob record to mark.
		return nil
	}
	if err := p.blobs.MarkEmbeddingsAdded(ctx, filename); err != nil {
		return fmt.Errorf("mark %s processed: %w", filename, err)
	}
	return nil
}
