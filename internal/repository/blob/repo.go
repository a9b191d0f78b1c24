// Package blob stores uploaded source files and their ingestion metadata.
// Content lives under one key per file, metadata in a companion hash.
package blob

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/db"
	"github.com/atlas-cloud/ragdex/internal/domain"
)

// Metadata hash field names.
const (
	metaEmbeddingsAdded = "embeddings_added"
	metaTitle           = "title"
	metaContentType     = "content_type"
	metaSize            = "size"
)

// store is the consumer interface for blob storage (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// File describes one stored source file.
type File struct {
	Name            string `json:"filename"`
	Title           string `json:"title,omitempty"`
	ContentType     string `json:"content_type,omitempty"`
	Size            int    `json:"size,omitempty"`
	EmbeddingsAdded bool   `json:"embeddings_added"`
}

// Repo implements source file persistence.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates a blob repository.
func New(s store, logger *zap.Logger) *Repo {
	return &Repo{store: s, logger: logger}
}

// Put stores file content and resets its metadata. A re-upload clears
// embeddings_added so the next batch run reprocesses the file.
func (r *Repo) Put(ctx context.Context, name, contentType string, content []byte) error {
	if name == "" {
		return fmt.Errorf("file name is required: %w", domain.ErrBadInput)
	}

	if err := r.store.Set(ctx, contentKey(name), content); err != nil {
		return fmt.Errorf("store blob %s: %w", name, err)
	}

	meta := map[string]string{
		metaEmbeddingsAdded: "false",
		metaContentType:     contentType,
		metaSize:            strconv.Itoa(len(content)),
	}
	if err := r.store.HSet(ctx, metaKey(name), meta); err != nil {
		return fmt.Errorf("store blob metadata %s: %w", name, err)
	}

	return nil
}

// Get returns file content.
func (r *Repo) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := r.store.Get(ctx, contentKey(name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("blob %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get blob %s: %w", name, err)
	}
	return data, nil
}

// Stat returns file metadata without content.
func (r *Repo) Stat(ctx context.Context, name string) (File, error) {
	exists, err := r.store.Exists(ctx, contentKey(name))
	if err != nil {
		return File{}, fmt.Errorf("check blob %s: %w", name, err)
	}
	if !exists {
		return File{}, fmt.Errorf("blob %s: %w", name, domain.ErrNotFound)
	}

	meta, err := r.store.HGetAll(ctx, metaKey(name))
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return File{}, fmt.Errorf("get blob metadata %s: %w", name, err)
	}

	return fileFromMeta(name, meta), nil
}

// List returns all stored files sorted by name.
func (r *Repo) List(ctx context.Context) ([]File, error) {
	keys, err := r.store.Scan(ctx, domain.BlobKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan blobs: %w", err)
	}

	files := make([]File, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, domain.BlobKeyPrefix)

		meta, err := r.store.HGetAll(ctx, metaKey(name))
		if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
			r.logger.Warn("Failed to read blob metadata", zap.String("name", name), zap.Error(err))
			meta = nil
		}
		files = append(files, fileFromMeta(name, meta))
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Delete removes file content and metadata.
func (r *Repo) Delete(ctx context.Context, name string) error {
	exists, err := r.store.Exists(ctx, contentKey(name))
	if err != nil {
		return fmt.Errorf("check blob %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("blob %s: %w", name, domain.ErrNotFound)
	}

	if err := r.store.Del(ctx, contentKey(name)); err != nil {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	if err := r.store.Del(ctx, metaKey(name)); err != nil {
		return fmt.Errorf("delete blob metadata %s: %w", name, err)
	}
	return nil
}

// MarkEmbeddingsAdded flips the processed flag after a successful
// ingestion run. Files with the flag set are skipped by batch starts.
func (r *Repo) MarkEmbeddingsAdded(ctx context.Context, name string) error {
	if err := r.store.HSet(ctx, metaKey(name), map[string]string{metaEmbeddingsAdded: "true"}); err != nil {
		return fmt.Errorf("mark blob %s processed: %w", name, err)
	}
	return nil
}

// SetTitle stores a display title for the file.
func (r *Repo) SetTitle(ctx context.Context, name, title string) error {
	if err := r.store.HSet(ctx, metaKey(name), map[string]string{metaTitle: title}); err != nil {
		return fmt.Errorf("set blob title %s: %w", name, err)
	}
	return nil
}

func contentKey(name string) string {
	return domain.BlobKeyPrefix + name
}

func metaKey(name string) string {
	return domain.BlobMetaKeyPrefix + name
}

func fileFromMeta(name string, meta map[string]string) File {
	f := File{Name: name}
	if meta == nil {
		return f
	}
	f.EmbeddingsAdded = meta[metaEmbeddingsAdded] == "true"
	f.Title = meta[metaTitle]
	f.ContentType = meta[metaContentType]
	if s := meta[metaSize]; s != "" {
		f.Size, _ = strconv.Atoi(s)
	}
	return f
}
