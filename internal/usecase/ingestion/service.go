// Package ingestion drives document processing: batch kickoff over stored
// files, direct URL ingestion, and the queue worker pool.
package ingestion

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/repository/blob"
)

// fileEmbedder is the consumer interface over the embedder (ISP).
type fileEmbedder interface {
	EmbedFile(ctx context.Context, filename, downloadURL string) error
	ReprocessAll(ctx context.Context) error
}

// blobLister enumerates stored source files (ISP).
type blobLister interface {
	List(ctx context.Context) ([]blob.File, error)
}

// enqueuer pushes filenames onto the ingestion queue (ISP).
type enqueuer interface {
	Enqueue(ctx context.Context, filename string) error
}

// urlEmbedder ingests a single remote page (ISP). Always the push
// variant: under integrated vectorization a reprocess pass only sees
// stored files, so a URL must be indexed at add time.
type urlEmbedder interface {
	EmbedFile(ctx context.Context, filename, downloadURL string) error
}

// Service starts ingestion runs.
type Service struct {
	blobs      blobLister
	queue      enqueuer
	embed      fileEmbedder
	urlEmbed   urlEmbedder
	integrated bool
	limit      int
	logger     *zap.Logger
}

// New creates the ingestion service. limit caps how many files one batch
// run may enqueue; 0 means unlimited. integrated selects reprocess-all
// semantics instead of per-file queueing.
func New(
	blobs blobLister,
	queue enqueuer,
	embed fileEmbedder,
	urlEmbed urlEmbedder,
	integrated bool,
	limit int,
	logger *zap.Logger,
) *Service {
	return &Service{
		blobs:      blobs,
		queue:      queue,
		embed:      embed,
		urlEmbed:   urlEmbed,
		integrated: integrated,
		limit:      limit,
		logger:     logger,
	}
}

// StartProcessing kicks off ingestion for stored files and returns how many
// were queued. Files already embedded are skipped unless processAll is set.
//
// In integrated mode there is no per-file queueing; the whole corpus is
// reprocessed in one pass and the count reflects every stored file.
func (s *Service) StartProcessing(ctx context.Context, processAll bool) (int, error) {
	files, err := s.blobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored files: %w", err)
	}

	if s.integrated {
		if err := s.embed.ReprocessAll(ctx); err != nil {
			return 0, fmt.Errorf("reprocess all: %w", err)
		}
		return len(files), nil
	}

	queued := 0
	for _, f := range files {
		if f.EmbeddingsAdded && !processAll {
			continue
		}
		if s.limit > 0 && queued >= s.limit {
			s.logger.Warn("batch limit reached, remaining files skipped",
				zap.Int("limit", s.limit))
			break
		}
		if err := s.queue.Enqueue(ctx, f.Name); err != nil {
			return queued, fmt.Errorf("enqueue %s: %w", f.Name, err)
		}
		queued++
	}

	s.logger.Info("batch processing started",
		zap.Int("stored", len(files)),
		zap.Int("queued", queued),
		zap.Bool("process_all", processAll))
	return queued, nil
}

// AddURL ingests a remote page synchronously, bypassing the queue.
func (s *Service) AddURL(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("url is required: %w", domain.ErrBadInput)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("url %q must be absolute: %w", url, domain.ErrBadInput)
	}
	if err := s.urlEmbed.EmbedFile(ctx, url, url); err != nil {
		return fmt.Errorf("embed url %s: %w", url, err)
	}
	return nil
}
