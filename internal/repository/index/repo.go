// Package index persists chunk records in a vector-capable FT index and
// serves keyword, vector, and listing queries over them.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/db"
	"github.com/atlas-cloud/ragdex/internal/domain"
)

// facetScanLimit bounds how many records a facet scan reads.
const facetScanLimit = 10000

// deleteBatchSize bounds keys removed per DEL pipeline round.
const deleteBatchSize = 500

// store is the consumer interface for chunk records (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// ScoredDocument is a chunk document with its retrieval score.
type ScoredDocument struct {
	Doc   domain.SourceDocument
	Score float64
}

// Facet is one distinct value of a record field with its record count.
type Facet struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Repo implements chunk record persistence and search.
type Repo struct {
	store       store
	vectorDims  int
	hnswM       int
	hnswEFConst int
	logger      *zap.Logger
}

// New creates a chunk record repository. vectorDims must match the
// embedding model's output dimensionality.
func New(s store, vectorDims int, logger *zap.Logger) *Repo {
	return &Repo{store: s, vectorDims: vectorDims, logger: logger}
}

// WithHNSW sets the HNSW graph parameters used when the index is created.
// Non-positive values leave the engine defaults in place.
func (r *Repo) WithHNSW(m, efConstruction int) *Repo {
	r.hnswM = m
	r.hnswEFConst = efConstruction
	return r
}

// EnsureIndex creates the chunk index when it does not exist yet.
// Safe to call on every startup.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, domain.ChunkIndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", domain.ChunkIndexName, err)
	}
	if exists {
		return nil
	}

	def := r.indexDefinition()
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", domain.ChunkIndexName, err)
	}

	r.logger.Info("Chunk index created",
		zap.String("index", domain.ChunkIndexName),
		zap.Int("vector_dims", r.vectorDims),
	)
	return nil
}

// Reset drops and recreates the chunk index. All records stay in the
// keyspace; the fresh index re-indexes them in the background.
func (r *Repo) Reset(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, domain.ChunkIndexName); err != nil &&
		!errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", domain.ChunkIndexName, err)
	}

	if err := r.store.CreateIndex(ctx, r.indexDefinition()); err != nil {
		return fmt.Errorf("recreate index %s: %w", domain.ChunkIndexName, err)
	}
	return nil
}

func (r *Repo) indexDefinition() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     domain.ChunkIndexName,
		Prefixes: []string{domain.ChunkKeyPrefix},
		Fields: []db.IndexField{
			{Name: fieldContent, Type: db.IndexFieldText},
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.vectorDims,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnswM,
				VectorEFConstruct: r.hnswEFConst,
			},
			{Name: fieldTitle, Type: db.IndexFieldTag},
			{Name: fieldSource, Type: db.IndexFieldTag},
			{Name: fieldChunk, Type: db.IndexFieldNumeric},
			{Name: fieldOffset, Type: db.IndexFieldNumeric},
			{Name: fieldPageNumber, Type: db.IndexFieldNumeric},
		},
	}
}

// UpsertBatch writes chunk documents with their vectors in one pipeline.
// Record ids are deterministic, so re-ingesting overwrites in place.
// vectors may be nil when the index computes embeddings itself.
func (r *Repo) UpsertBatch(ctx context.Context, docs []domain.SourceDocument, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if vectors != nil && len(vectors) != len(docs) {
		return fmt.Errorf("got %d vectors for %d documents", len(vectors), len(docs))
	}

	items := make([]db.HashSetItem, len(docs))
	for i, doc := range docs {
		var vec []float32
		if vectors != nil {
			vec = vectors[i]
		}
		items[i] = db.HashSetItem{
			Key:    chunkKey(doc.ID),
			Fields: recordFields(doc, vec),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d chunk records: %w", len(items), err)
	}
	return nil
}

// SearchVector returns the k nearest chunks by cosine similarity.
func (r *Repo) SearchVector(
	ctx context.Context, vector []float32, k int, filters db.Filters,
) ([]ScoredDocument, error) {
	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    domain.ChunkIndexName,
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return scoredDocs(result), nil
}

// SearchKeyword returns the top chunks by BM25 relevance.
func (r *Repo) SearchKeyword(
	ctx context.Context, query string, k int, filters db.Filters,
) ([]ScoredDocument, error) {
	result, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    domain.ChunkIndexName,
		Query:        query,
		Filters:      filters,
		TopK:         k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return scoredDocs(result), nil
}

// Facets returns the distinct values of a record field with counts,
// most frequent first.
func (r *Repo) Facets(ctx context.Context, field string) ([]Facet, error) {
	if field != fieldTitle && field != fieldSource {
		return nil, fmt.Errorf("field %q is not facetable: %w", field, domain.ErrBadInput)
	}

	result, err := r.store.SearchList(ctx, domain.ChunkIndexName, "*", 0, facetScanLimit, []string{field})
	if err != nil {
		return nil, fmt.Errorf("facet scan %s: %w", field, err)
	}

	counts := make(map[string]int)
	for _, entry := range result.Entries {
		if v := entry.Fields[field]; v != "" {
			counts[v]++
		}
	}

	facets := make([]Facet, 0, len(counts))
	for value, count := range counts {
		facets = append(facets, Facet{Value: value, Count: count})
	}
	sort.Slice(facets, func(i, j int) bool {
		if facets[i].Count != facets[j].Count {
			return facets[i].Count > facets[j].Count
		}
		return facets[i].Value < facets[j].Value
	})

	return facets, nil
}

// ListBySource returns the chunk documents of one source, ordered by
// chunk number.
func (r *Repo) ListBySource(ctx context.Context, source string) ([]domain.SourceDocument, error) {
	result, err := r.searchBySource(ctx, source, returnFields)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.SourceDocument, 0, len(result.Entries))
	for _, entry := range result.Entries {
		docs = append(docs, docFromEntry(entry.Key, entry.Fields))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Chunk < docs[j].Chunk })

	return docs, nil
}

// DeleteBySource removes every chunk record of a source. Returns the
// number of records removed.
func (r *Repo) DeleteBySource(ctx context.Context, source string) (int, error) {
	result, err := r.searchBySource(ctx, source, nil)
	if err != nil {
		return 0, err
	}
	if len(result.Entries) == 0 {
		return 0, nil
	}

	keys := make([]string, len(result.Entries))
	for i, entry := range result.Entries {
		keys[i] = entry.Key
	}

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		if err := r.store.DelMulti(ctx, keys[start:end]); err != nil {
			return start, fmt.Errorf("delete chunk records: %w", err)
		}
	}

	r.logger.Info("Deleted chunk records",
		zap.String("source", source),
		zap.Int("count", len(keys)),
	)
	return len(keys), nil
}

// Count returns the total number of indexed chunk records.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, domain.ChunkIndexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count chunk records: %w", err)
	}
	return n, nil
}

func (r *Repo) searchBySource(ctx context.Context, source string, fields []string) (*db.SearchResult, error) {
	result, err := r.store.SearchList(
		ctx, domain.ChunkIndexName,
		sourceFilterQuery(source),
		0, facetScanLimit, fields,
	)
	if err != nil {
		return nil, fmt.Errorf("search by source: %w", err)
	}
	return result, nil
}
