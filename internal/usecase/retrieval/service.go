// Package retrieval serves chunk searches across keyword, vector, and
// hybrid modes with Reciprocal Rank Fusion.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/db"
	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/repository/index"
)

// Mode selects the retrieval algorithm.
type Mode string

const (
	// ModeKeyword is BM25 text relevance only.
	ModeKeyword Mode = "keyword"
	// ModeVector is embedding similarity only.
	ModeVector Mode = "vector"
	// ModeHybrid fuses both rankings with RRF.
	ModeHybrid Mode = "hybrid"
)

// DefaultTopK is the result count when the caller does not set one.
const DefaultTopK = 4

// Request is one retrieval call.
type Request struct {
	Query   string
	Mode    Mode
	TopK    int
	Filters db.Filters
}

// searcher is the consumer interface over the chunk index (ISP).
type searcher interface {
	SearchVector(ctx context.Context, vector []float32, k int, filters db.Filters) ([]index.ScoredDocument, error)
	SearchKeyword(ctx context.Context, query string, k int, filters db.Filters) ([]index.ScoredDocument, error)
	Facets(ctx context.Context, field string) ([]index.Facet, error)
}

// Service implements chunk retrieval.
type Service struct {
	index  searcher
	embed  domain.Embedder
	topK   int
	logger *zap.Logger
}

// New creates a retrieval service.
func New(idx searcher, embed domain.Embedder, logger *zap.Logger) *Service {
	return &Service{index: idx, embed: embed, topK: DefaultTopK, logger: logger}
}

// WithDefaultTopK overrides the result count used when a request does not
// set one. Non-positive values keep the current default.
func (s *Service) WithDefaultTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// Retrieve runs a search and returns the top chunk documents.
func (s *Service) Retrieve(ctx context.Context, req Request) ([]domain.SourceDocument, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrBadInput)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}

	var results []index.ScoredDocument
	var err error

	switch mode {
	case ModeKeyword:
		results, err = s.index.SearchKeyword(ctx, req.Query, topK, req.Filters)
	case ModeVector:
		results, err = s.searchVector(ctx, req.Query, topK, req.Filters)
	case ModeHybrid:
		results, err = s.searchHybrid(ctx, req.Query, topK, req.Filters)
	default:
		return nil, fmt.Errorf("retrieval mode %q: %w", mode, domain.ErrBadInput)
	}
	if err != nil {
		return nil, err
	}

	docs := make([]domain.SourceDocument, len(results))
	for i, r := range results {
		docs[i] = r.Doc
	}

	s.logger.Debug("Retrieved chunks",
		zap.String("mode", string(mode)),
		zap.Int("top_k", topK),
		zap.Int("results", len(docs)),
	)
	return docs, nil
}

// Facets returns distinct values of a filterable field with counts.
func (s *Service) Facets(ctx context.Context, field string) ([]index.Facet, error) {
	return s.index.Facets(ctx, field)
}

func (s *Service) searchVector(
	ctx context.Context, query string, topK int, filters db.Filters,
) ([]index.ScoredDocument, error) {
	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	results, err := s.index.SearchVector(ctx, emb.Embedding, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

func (s *Service) searchHybrid(
	ctx context.Context, query string, topK int, filters db.Filters,
) ([]index.ScoredDocument, error) {
	vector, err := s.searchVector(ctx, query, topK, filters)
	if err != nil {
		return nil, err
	}

	keyword, err := s.index.SearchKeyword(ctx, query, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	return fuseRRF(vector, keyword, topK), nil
}
