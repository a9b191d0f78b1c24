package loader

import (
	"context"
	"fmt"

	"github.com/atlas-cloud/ragdex/internal/transport/docintel"
)

// analyzer is the consumer interface over the document analysis client.
type analyzer interface {
	AnalyzeURL(ctx context.Context, model, documentURL string) ([]docintel.Page, error)
	AnalyzeBytes(ctx context.Context, model string, content []byte) ([]docintel.Page, error)
}

// AnalysisLoader extracts text from PDFs and images through the remote
// document analysis service.
type AnalysisLoader struct {
	client analyzer
	model  string
}

// NewLayoutLoader creates a loader using the layout model, which keeps
// paragraph and table structure.
func NewLayoutLoader(client analyzer) *AnalysisLoader {
	return &AnalysisLoader{client: client, model: docintel.ModelLayout}
}

// NewReadLoader creates a loader using the plain-text read model, the
// cheaper choice for scanned images.
func NewReadLoader(client analyzer) *AnalysisLoader {
	return &AnalysisLoader{client: client, model: docintel.ModelRead}
}

// Load analyzes the source and maps service pages to loader pages.
func (l *AnalysisLoader) Load(ctx context.Context, src Source) (*Document, error) {
	var pages []docintel.Page

	err := withRetry(ctx, func() error {
		var analyzeErr error
		if len(src.Content) > 0 {
			pages, analyzeErr = l.client.AnalyzeBytes(ctx, l.model, src.Content)
		} else {
			pages, analyzeErr = l.client.AnalyzeURL(ctx, l.model, src.URL)
		}
		return analyzeErr
	})
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", src.Name, err)
	}

	doc := &Document{
		Title: src.Name,
		Pages: make([]Page, 0, len(pages)),
	}
	for _, p := range pages {
		doc.Pages = append(doc.Pages, Page{
			Content: p.Content,
			Number:  p.Number,
			Offset:  p.Offset,
		})
	}
	return doc, nil
}
