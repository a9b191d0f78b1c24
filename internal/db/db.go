// Package db defines the storage facade over the vector-capable index store.
// Consumers depend on the narrow sub-interfaces, never on the facade itself.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	StreamStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations plus a revision-guarded swap
// used for the persisted configuration document.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// CompareAndSet replaces the value only when the stored revision matches
	// expectedRev (0 = key must not exist). Returns the new revision, or
	// ErrRevisionMismatch.
	CompareAndSet(ctx context.Context, key string, value []byte, expectedRev int64) (int64, error)
	// GetWithRev returns the value and its revision (0 when absent).
	GetWithRev(ctx context.Context, key string) ([]byte, int64, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// StreamMessage is one entry read from a stream consumer group.
type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// PendingEntry describes an unacknowledged stream message.
type PendingEntry struct {
	ID            string
	Consumer      string
	Idle          time.Duration
	DeliveryCount int64
}

// StreamStore provides stream consumer-group operations for the work queue.
type StreamStore interface {
	StreamAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
	StreamGroupCreate(ctx context.Context, stream, group string) error
	StreamReadGroup(
		ctx context.Context, stream, group, consumer string, count int, block time.Duration,
	) ([]StreamMessage, error)
	StreamAck(ctx context.Context, stream, group string, ids ...string) error
	StreamPending(
		ctx context.Context, stream, group string, minIdle time.Duration, count int,
	) ([]PendingEntry, error)
	StreamClaim(
		ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string,
	) ([]StreamMessage, error)
}
