package retrieval

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/db"
	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/repository/index"
)

// mockSearcher implements the consumer interface for tests.
type mockSearcher struct {
	searchVectorFn  func(ctx context.Context, vector []float32, k int, filters db.Filters) ([]index.ScoredDocument, error)
	searchKeywordFn func(ctx context.Context, query string, k int, filters db.Filters) ([]index.ScoredDocument, error)
	facetsFn        func(ctx context.Context, field string) ([]index.Facet, error)
}

func (m *mockSearcher) SearchVector(
	ctx context.Context, vector []float32, k int, filters db.Filters,
) ([]index.ScoredDocument, error) {
	if m.searchVectorFn != nil {
		return m.searchVectorFn(ctx, vector, k, filters)
	}
	return nil, nil
}

func (m *mockSearcher) SearchKeyword(
	ctx context.Context, query string, k int, filters db.Filters,
) ([]index.ScoredDocument, error) {
	if m.searchKeywordFn != nil {
		return m.searchKeywordFn(ctx, query, k, filters)
	}
	return nil, nil
}

func (m *mockSearcher) Facets(ctx context.Context, field string) ([]index.Facet, error) {
	if m.facetsFn != nil {
		return m.facetsFn(ctx, field)
	}
	return nil, nil
}

// mockEmbedder returns a fixed vector.
type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func newTestService(t *testing.T) (*Service, *mockSearcher, *mockEmbedder) {
	t.Helper()
	ms := &mockSearcher{}
	me := &mockEmbedder{}
	return New(ms, me, zap.NewNop()), ms, me
}

func scoredDoc(id string, score float64) index.ScoredDocument {
	return index.ScoredDocument{
		Doc:   domain.SourceDocument{ID: id, Content: "content " + id},
		Score: score,
	}
}
