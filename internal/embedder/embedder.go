// Package embedder implements the two ingestion variants behind one
// contract: push (this service computes vectors) and integrated (the
// index service vectorizes on its own).
package embedder

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/atlas-cloud/ragdex/internal/chunker"
	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	"github.com/atlas-cloud/ragdex/internal/loader"
)

// FileEmbedder is the shared ingestion contract. The worker calls
// EmbedFile per queued job; reprocessing runs over the whole corpus.
type FileEmbedder interface {
	EmbedFile(ctx context.Context, filename, downloadURL string) error
	ReprocessAll(ctx context.Context) error
}

// blobReader is the consumer interface over stored source files (ISP).
type blobReader interface {
	Get(ctx context.Context, name string) ([]byte, error)
	MarkEmbeddingsAdded(ctx context.Context, name string) error
}

// loaderResolver resolves loading strategy names.
type loaderResolver interface {
	ForStrategy(strategy string) (loader.Loader, error)
}

// configProvider returns the active configuration snapshot.
type configProvider interface {
	GetActiveOrDefault(ctx context.Context) (*appconfig.Configuration, error)
}

// documentType derives the processor key for a source: "url" for remote
// pages, otherwise the lowercased file extension.
func documentType(filename string) string {
	if strings.HasPrefix(filename, "http://") || strings.HasPrefix(filename, "https://") {
		return "url"
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

// loadChunks runs the load+chunk half of ingestion: resolve the
// processor for the source, extract text, and cut chunk documents with
// deterministic ids.
func loadChunks(
	ctx context.Context,
	cfg *appconfig.Configuration,
	loaders loaderResolver,
	blobs blobReader,
	filename, downloadURL string,
) ([]domain.SourceDocument, error) {
	docType := documentType(filename)
	proc, ok := cfg.ProcessorFor(docType)
	if !ok {
		return nil, fmt.Errorf("no processor for document type %q: %w", docType, domain.ErrNotSupported)
	}

	l, err := loaders.ForStrategy(proc.Loading.Strategy)
	if err != nil {
		return nil, err
	}

	src := loader.Source{Name: filename, URL: downloadURL}
	if docType != "url" {
		content, err := blobs.Get(ctx, filename)
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", filename, err)
		}
		src.Content = content
	}
	if src.URL == "" && docType == "url" {
		src.URL = filename
	}

	extracted, err := l.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}

	ch, err := chunker.New(proc.Chunking.Strategy, proc.Chunking.Size, proc.Chunking.Overlap)
	if err != nil {
		return nil, fmt.Errorf("chunker for %s: %w", filename, err)
	}

	source := filename
	if docType == "url" {
		source = domain.StripQuery(filename)
	}

	chunks := ch.Chunk(extracted)
	docs := make([]domain.SourceDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = domain.NewSourceDocument(
			source, extracted.Title, c.Content, c.Number, c.Offset, c.PageNumber,
		)
	}
	return docs, nil
}
