package chunker

import (
	"strings"

	"github.com/atlas-cloud/ragdex/internal/loader"
)

// fixedChunker slides fixed windows over the whole document text,
// ignoring page boundaries. Chunks may span pages; each chunk carries
// the page its start falls on.
type fixedChunker struct {
	size    int
	overlap int
}

func (c *fixedChunker) Chunk(doc *loader.Document) []Chunk {
	var sb strings.Builder
	type pageStart struct {
		offset int
		number int
	}
	var starts []pageStart

	offset := 0
	for i, p := range doc.Pages {
		if i > 0 {
			sb.WriteByte('\n')
			offset++
		}
		starts = append(starts, pageStart{offset: offset, number: p.Number})
		sb.WriteString(p.Content)
		offset += len([]rune(p.Content))
	}

	chunks := slide(sb.String(), c.size, c.overlap, 0, 1)
	for i := range chunks {
		for _, ps := range starts {
			if chunks[i].Offset >= ps.offset {
				chunks[i].PageNumber = ps.number
			}
		}
	}
	return number(chunks)
}
