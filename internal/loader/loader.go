// Package loader turns source files and URLs into page-structured text
// ready for chunking. Each loading strategy handles one document family.
package loader

import (
	"context"
	"fmt"

	"github.com/atlas-cloud/ragdex/internal/domain"
)

// Page is one page of extracted text. Offset is the rune offset of the
// page start within the whole document.
type Page struct {
	Content string
	Number  int
	Offset  int
}

// Document is the extraction result for one source.
type Document struct {
	Title string
	Pages []Page
}

// Source identifies what to load. Either Content (an uploaded blob) or
// URL (a remote page) is set; Name carries the original file name.
type Source struct {
	Name        string
	URL         string
	Content     []byte
	ContentType string
}

// Loader extracts text from one family of documents.
type Loader interface {
	Load(ctx context.Context, src Source) (*Document, error)
}

// Registry resolves loading strategy names to loaders.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry creates an empty loader registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Register binds a strategy name to a loader. Later registrations win.
func (r *Registry) Register(strategy string, l Loader) {
	r.loaders[strategy] = l
}

// ForStrategy returns the loader for a strategy name.
func (r *Registry) ForStrategy(strategy string) (Loader, error) {
	l, ok := r.loaders[strategy]
	if !ok {
		return nil, fmt.Errorf("no loader for strategy %q: %w", strategy, domain.ErrNotSupported)
	}
	return l, nil
}
