package domain

import "testing"

func candidates(n int) []SourceDocument {
	docs := make([]SourceDocument, n)
	for i := range docs {
		docs[i] = NewSourceDocument("file.pdf", "File", "chunk", i+1, i*100, 1)
	}
	return docs
}

func TestRenumberCitations_FirstAppearanceOrder(t *testing.T) {
	answer := "A [doc3] B [doc1] C [doc3]"
	got, cited, dropped := RenumberCitations(answer, candidates(3))

	if got != "A [doc1] B [doc2] C [doc1]" {
		t.Errorf("rewritten = %q", got)
	}
	if len(cited) != 2 {
		t.Fatalf("cited = %d docs, want 2", len(cited))
	}
	if cited[0].Chunk != 3 || cited[1].Chunk != 1 {
		t.Errorf("cited order = [%d %d], want [3 1]", cited[0].Chunk, cited[1].Chunk)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
}

func TestRenumberCitations_OutOfRangeDropped(t *testing.T) {
	answer := "See [doc0] and [doc2] and [doc9]."
	got, cited, dropped := RenumberCitations(answer, candidates(2))

	if got != "See  and [doc1] and ." {
		t.Errorf("rewritten = %q", got)
	}
	if len(cited) != 1 || cited[0].Chunk != 2 {
		t.Errorf("cited = %v", cited)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
}

func TestRenumberCitations_NoMarkers(t *testing.T) {
	got, cited, dropped := RenumberCitations("plain answer", candidates(3))
	if got != "plain answer" || cited != nil || dropped != 0 {
		t.Errorf("got %q cited=%v dropped=%d", got, cited, dropped)
	}
}

func TestRenumberCitations_AlreadyOrdered(t *testing.T) {
	got, cited, _ := RenumberCitations("[doc1] then [doc2]", candidates(2))
	if got != "[doc1] then [doc2]" {
		t.Errorf("rewritten = %q", got)
	}
	if len(cited) != 2 {
		t.Errorf("cited = %d docs, want 2", len(cited))
	}
}
