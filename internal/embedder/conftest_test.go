package embedder

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	"github.com/atlas-cloud/ragdex/internal/loader"
	"github.com/atlas-cloud/ragdex/internal/repository/blob"
)

// mockBlobs implements blobReader and blobEnumerator for tests.
type mockBlobs struct {
	getFn  func(ctx context.Context, name string) ([]byte, error)
	listFn func(ctx context.Context) ([]blob.File, error)
	marked []string
	markFn func(ctx context.Context, name string) error
}

func (m *mockBlobs) Get(ctx context.Context, name string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, name)
	}
	return []byte("file content"), nil
}

func (m *mockBlobs) List(ctx context.Context) ([]blob.File, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockBlobs) MarkEmbeddingsAdded(ctx context.Context, name string) error {
	if m.markFn != nil {
		return m.markFn(ctx, name)
	}
	m.marked = append(m.marked, name)
	return nil
}

// mockIndex implements chunkWriter and integratedIndex for tests.
type mockIndex struct {
	upserts  [][]domain.SourceDocument
	vectors  [][][]float32
	upsertFn func(ctx context.Context, docs []domain.SourceDocument, vectors [][]float32) error
	resets   int
	resetFn  func(ctx context.Context) error
}

func (m *mockIndex) UpsertBatch(ctx context.Context, docs []domain.SourceDocument, vectors [][]float32) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, docs, vectors)
	}
	m.upserts = append(m.upserts, docs)
	m.vectors = append(m.vectors, vectors)
	return nil
}

func (m *mockIndex) Reset(ctx context.Context) error {
	if m.resetFn != nil {
		return m.resetFn(ctx)
	}
	m.resets++
	return nil
}

// mockEmbed returns fixed-size vectors, one per text.
type mockEmbed struct {
	err   error
	calls int
}

func (m *mockEmbed) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{0.1, 0.2}
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs, TotalTokens: len(texts) * 5}, nil
}

// staticLoader returns a fixed document regardless of source.
type staticLoader struct {
	doc *loader.Document
	err error
}

func (l *staticLoader) Load(_ context.Context, src loader.Source) (*loader.Document, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.doc != nil {
		return l.doc, nil
	}
	return &loader.Document{
		Title: src.Name,
		Pages: []loader.Page{{Content: "some extracted text for chunking", Number: 1, Offset: 0}},
	}, nil
}

// staticResolver serves the same loader for every strategy.
type staticResolver struct {
	l   loader.Loader
	err error
}

func (r *staticResolver) ForStrategy(_ string) (loader.Loader, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.l, nil
}

// staticConfig serves a fixed configuration snapshot.
type staticConfig struct {
	cfg appconfig.Configuration
}

func (c *staticConfig) GetActiveOrDefault(_ context.Context) (*appconfig.Configuration, error) {
	cfg := c.cfg
	return &cfg, nil
}

func defaultConfig() *staticConfig {
	return &staticConfig{cfg: appconfig.Default()}
}

func newTestPush(t *testing.T) (*Push, *mockBlobs, *mockIndex, *mockEmbed) {
	t.Helper()
	blobs := &mockBlobs{}
	idx := &mockIndex{}
	embed := &mockEmbed{}
	p := NewPush(blobs, idx, &staticResolver{l: &staticLoader{}}, defaultConfig(), embed, zap.NewNop())
	return p, blobs, idx, embed
}
