package chunker

import "github.com/atlas-cloud/ragdex/internal/loader"

// layoutChunker slides windows within each page separately, so no chunk
// ever spans a page boundary. The right choice for analyzed PDFs where
// page numbers feed citations.
type layoutChunker struct {
	size    int
	overlap int
}

func (c *layoutChunker) Chunk(doc *loader.Document) []Chunk {
	var chunks []Chunk
	for _, p := range doc.Pages {
		chunks = append(chunks, slide(p.Content, c.size, c.overlap, p.Offset, p.Number)...)
	}
	return number(chunks)
}
