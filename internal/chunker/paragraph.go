package chunker

import (
	"strings"

	"github.com/atlas-cloud/ragdex/internal/loader"
)

// paragraphChunker packs whole paragraphs into chunks up to the size
// limit. A paragraph longer than the limit falls back to fixed windows.
// Best for prose formats (.txt, .md) where paragraph breaks carry meaning.
type paragraphChunker struct {
	size    int
	overlap int
}

type paragraph struct {
	text   string
	offset int
}

func (c *paragraphChunker) Chunk(doc *loader.Document) []Chunk {
	var chunks []Chunk
	for _, page := range doc.Pages {
		chunks = append(chunks, c.chunkPage(page)...)
	}
	return number(chunks)
}

func (c *paragraphChunker) chunkPage(page loader.Page) []Chunk {
	paras := splitParagraphs(page.Content, page.Offset)

	var chunks []Chunk
	var current strings.Builder
	currentOffset := page.Offset
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Content:    current.String(),
			Offset:     currentOffset,
			PageNumber: page.Number,
		})
		current.Reset()
		currentLen = 0
	}

	for _, p := range paras {
		pLen := len([]rune(p.text))

		if pLen > c.size {
			flush()
			chunks = append(chunks, slide(p.text, c.size, c.overlap, p.offset, page.Number)...)
			continue
		}

		// +1 for the joining newline
		if currentLen > 0 && currentLen+1+pLen > c.size {
			flush()
		}
		if currentLen == 0 {
			currentOffset = p.offset
			// Seed the chunk with the tail of the previous one so
			// consecutive chunks overlap, as the windowed strategies do.
			if c.overlap > 0 && len(chunks) > 0 {
				tail := chunks[len(chunks)-1]
				suffix := runeSuffix(tail.Content, c.overlap)
				sLen := len([]rune(suffix))
				if sLen > 0 && sLen+1+pLen <= c.size {
					current.WriteString(suffix)
					currentLen = sLen
					currentOffset = tail.Offset + len([]rune(tail.Content)) - sLen
				}
			}
		}
		if currentLen > 0 {
			current.WriteByte('\n')
			currentLen++
		}
		current.WriteString(p.text)
		currentLen += pLen
	}
	flush()

	return chunks
}

// runeSuffix returns the last n runes of s.
func runeSuffix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// splitParagraphs cuts page text on blank lines, tracking each
// paragraph's rune offset within the document.
func splitParagraphs(text string, baseOffset int) []paragraph {
	var paras []paragraph
	runes := []rune(text)

	start := -1
	lineStart := 0
	blank := true

	flushAt := func(end int) {
		if start >= 0 {
			t := strings.TrimSpace(string(runes[start:end]))
			if t != "" {
				paras = append(paras, paragraph{text: t, offset: baseOffset + start})
			}
			start = -1
		}
	}

	for i, r := range runes {
		if r == '\n' {
			if blank {
				flushAt(lineStart)
			}
			lineStart = i + 1
			blank = true
			continue
		}
		if blank && r != ' ' && r != '\t' {
			blank = false
			if start < 0 {
				start = i
			}
		}
	}
	flushAt(len(runes))

	return paras
}
