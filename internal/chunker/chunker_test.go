package chunker

import (
	"strings"
	"testing"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/loader"
)

func singlePageDoc(content string) *loader.Document {
	return &loader.Document{
		Title: "doc",
		Pages: []loader.Page{{Content: content, Number: 1, Offset: 0}},
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(StrategyFixed, 0, 0); err == nil {
		t.Error("expected error for zero size")
	}
	if _, err := New(StrategyFixed, 10, 10); err == nil {
		t.Error("expected error for overlap >= size")
	}
	if _, err := New("bogus", 10, 2); err == nil {
		t.Error("expected error for unknown strategy")
	}
	for _, s := range []string{StrategyLayout, StrategyFixed, StrategyParagraph} {
		if _, err := New(s, 10, 2); err != nil {
			t.Errorf("strategy %s: %v", s, err)
		}
	}
}

func TestFixed_NumbersAndOffsets(t *testing.T) {
	c, _ := New(StrategyFixed, 10, 3)

	text := strings.Repeat("abcdefghij", 3) // 30 runes
	chunks := c.Chunk(singlePageDoc(text))

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, ch := range chunks {
		if ch.Number != i {
			t.Errorf("chunk %d numbered %d", i, ch.Number)
		}
	}

	// Each window starts size-overlap runes after the previous one.
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Offset-chunks[i-1].Offset != 7 {
			t.Errorf("step between chunks %d and %d is %d, want 7",
				i-1, i, chunks[i].Offset-chunks[i-1].Offset)
		}
	}

	// Dropping each chunk's leading overlap reconstructs the text.
	var sb strings.Builder
	for i, ch := range chunks {
		runes := []rune(ch.Content)
		if i == 0 {
			sb.WriteString(ch.Content)
		} else {
			sb.WriteString(string(runes[3:]))
		}
	}
	if sb.String() != text {
		t.Errorf("reconstruction failed:\n got %q\nwant %q", sb.String(), text)
	}
}

func TestFixed_ShortDocument(t *testing.T) {
	c, _ := New(StrategyFixed, 100, 10)

	chunks := c.Chunk(singlePageDoc("short"))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "short" || chunks[0].Number != 0 || chunks[0].Offset != 0 {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}

func TestFixed_EmptyDocument(t *testing.T) {
	c, _ := New(StrategyFixed, 100, 10)

	chunks := c.Chunk(singlePageDoc(""))
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestLayout_RespectsPageBoundaries(t *testing.T) {
	c, _ := New(StrategyLayout, 10, 2)

	doc := &loader.Document{
		Pages: []loader.Page{
			{Content: strings.Repeat("a", 15), Number: 1, Offset: 0},
			{Content: strings.Repeat("b", 15), Number: 2, Offset: 15},
		},
	}
	chunks := c.Chunk(doc)

	for _, ch := range chunks {
		if strings.Contains(ch.Content, "a") && strings.Contains(ch.Content, "b") {
			t.Errorf("chunk spans pages: %q", ch.Content)
		}
	}

	seen := map[int]bool{}
	for _, ch := range chunks {
		seen[ch.PageNumber] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("expected chunks on both pages, got %v", seen)
	}

	for i, ch := range chunks {
		if ch.Number != i {
			t.Errorf("numbering not sequential across pages: chunk %d numbered %d", i, ch.Number)
		}
	}
}

func TestParagraph_PacksUpToSize(t *testing.T) {
	c, _ := New(StrategyParagraph, 30, 5)

	text := "First para.\n\nSecond para.\n\nThis is the third paragraph here."
	chunks := c.Chunk(singlePageDoc(text))

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	// first two short paragraphs fit one chunk
	if !strings.Contains(chunks[0].Content, "First para.") ||
		!strings.Contains(chunks[0].Content, "Second para.") {
		t.Errorf("expected first two paragraphs packed together: %q", chunks[0].Content)
	}
	for _, ch := range chunks {
		if len([]rune(ch.Content)) > 30 {
			t.Errorf("chunk exceeds size: %q", ch.Content)
		}
	}
}

func TestParagraph_OverlapBetweenPackedChunks(t *testing.T) {
	c, _ := New(StrategyParagraph, 20, 5)

	text := "abcdefghijklmnop\n\nqrstuvwxyz"
	chunks := c.Chunk(singlePageDoc(text))

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "abcdefghijklmnop" {
		t.Errorf("first chunk = %q", chunks[0].Content)
	}
	if chunks[1].Content != "lmnop\nqrstuvwxyz" {
		t.Errorf("second chunk must carry the prior tail: %q", chunks[1].Content)
	}
	if chunks[1].Offset != 11 {
		t.Errorf("second chunk offset = %d, want 11 (start of the overlap)", chunks[1].Offset)
	}
	for _, ch := range chunks {
		if len([]rune(ch.Content)) > 20 {
			t.Errorf("chunk exceeds size: %q", ch.Content)
		}
	}
}

func TestParagraph_LongParagraphFallsBack(t *testing.T) {
	c, _ := New(StrategyParagraph, 10, 2)

	long := strings.Repeat("x", 25)
	chunks := c.Chunk(singlePageDoc(long))

	if len(chunks) < 3 {
		t.Fatalf("expected windowed fallback, got %d chunks", len(chunks))
	}
	for _, ch := range chunks {
		if len([]rune(ch.Content)) > 10 {
			t.Errorf("fallback chunk exceeds size: %q", ch.Content)
		}
	}
}

func TestChunkIDs_DeterministicAcrossRuns(t *testing.T) {
	c, _ := New(StrategyFixed, 10, 0)

	doc := singlePageDoc("abcdefghijklmnopqrst")
	first := c.Chunk(doc)
	second := c.Chunk(doc)

	if len(first) != len(second) {
		t.Fatalf("chunk count differs between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a := domain.DocumentID("src", first[i].Number)
		b := domain.DocumentID("src", second[i].Number)
		if a != b {
			t.Errorf("chunk %d id not deterministic", i)
		}
	}
}
