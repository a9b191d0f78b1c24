package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
)

// SourceDocument is one chunk of an ingested source, the unit of indexing,
// retrieval, and citation. Immutable once created.
//
// Field order is fixed: serialized JSON is used in tool turn payloads and
// must be byte-stable for deterministic tests.
type SourceDocument struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	Chunk      int    `json:"chunk"`
	Offset     int    `json:"offset"`
	PageNumber int    `json:"page_number"`
}

// DocumentID derives the deterministic chunk record id from (source, chunk).
// Re-ingesting a source overwrites its records instead of duplicating them.
func DocumentID(source string, chunk int) string {
	h := sha256.Sum256([]byte(source + "|" + strconv.Itoa(chunk)))
	return hex.EncodeToString(h[:])
}

// NewSourceDocument creates a chunk document with its deterministic id.
// The source is stripped of query parameters (SAS tokens must never persist).
func NewSourceDocument(source, title, content string, chunk, offset, pageNumber int) SourceDocument {
	clean := StripQuery(source)
	return SourceDocument{
		ID:         DocumentID(clean, chunk),
		Content:    content,
		Source:     clean,
		Title:      title,
		Chunk:      chunk,
		Offset:     offset,
		PageNumber: pageNumber,
	}
}

// StripQuery removes the query string (SAS token carrier) from a source URI.
// Returns the input unchanged when it does not parse as a URL.
func StripQuery(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return source
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func (d SourceDocument) String() string {
	return fmt.Sprintf("%s#%d (%s)", d.Source, d.Chunk, d.ID[:8])
}
