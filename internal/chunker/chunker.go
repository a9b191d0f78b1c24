// Package chunker splits extracted documents into overlapping chunks,
// the unit of embedding and retrieval.
package chunker

import (
	"fmt"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/loader"
)

// Chunk is one slice of document text. Number runs 0..N-1 per document,
// Offset is the rune offset of the chunk start.
type Chunk struct {
	Content    string
	Number     int
	Offset     int
	PageNumber int
}

// Chunker splits a loaded document into chunks.
type Chunker interface {
	Chunk(doc *loader.Document) []Chunk
}

// Strategy names accepted by New.
const (
	StrategyLayout    = "layout"
	StrategyFixed     = "fixed"
	StrategyParagraph = "paragraph"
)

// New creates a chunker for the strategy name. size and overlap are in
// runes; overlap must be smaller than size.
func New(strategy string, size, overlap int) (Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive: %w", domain.ErrBadInput)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size): %w", domain.ErrBadInput)
	}

	switch strategy {
	case StrategyLayout:
		return &layoutChunker{size: size, overlap: overlap}, nil
	case StrategyFixed:
		return &fixedChunker{size: size, overlap: overlap}, nil
	case StrategyParagraph:
		return &paragraphChunker{size: size, overlap: overlap}, nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q: %w", strategy, domain.ErrNotSupported)
	}
}

// slide cuts text into fixed windows advancing by size-overlap runes.
// baseOffset shifts chunk offsets into document coordinates.
func slide(text string, size, overlap, baseOffset, pageNumber int) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, Chunk{
			Content:    string(runes[start:end]),
			Offset:     baseOffset + start,
			PageNumber: pageNumber,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// number assigns sequential chunk numbers.
func number(chunks []Chunk) []Chunk {
	for i := range chunks {
		chunks[i].Number = i
	}
	return chunks
}
