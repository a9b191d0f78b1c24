package index

import (
	"strconv"
	"strings"

	"github.com/atlas-cloud/ragdex/internal/db"
	"github.com/atlas-cloud/ragdex/internal/domain"
)

// Hash field names of a chunk record.
const (
	fieldContent    = "content"
	fieldVector     = "vector"
	fieldTitle      = "title"
	fieldSource     = "source"
	fieldChunk      = "chunk"
	fieldOffset     = "offset"
	fieldPageNumber = "page_number"
)

// returnFields are the fields fetched for retrieval results (no vector).
var returnFields = []string{
	fieldContent, fieldTitle, fieldSource, fieldChunk, fieldOffset, fieldPageNumber,
}

func chunkKey(id string) string {
	return domain.ChunkKeyPrefix + id
}

func sourceFilterQuery(source string) string {
	return db.TagQuery(fieldSource, source)
}

func idFromKey(key string) string {
	return strings.TrimPrefix(key, domain.ChunkKeyPrefix)
}

// recordFields flattens a chunk document plus its vector into hash fields.
func recordFields(doc domain.SourceDocument, vector []float32) map[string]string {
	fields := map[string]string{
		fieldContent:    doc.Content,
		fieldTitle:      doc.Title,
		fieldSource:     doc.Source,
		fieldChunk:      strconv.Itoa(doc.Chunk),
		fieldOffset:     strconv.Itoa(doc.Offset),
		fieldPageNumber: strconv.Itoa(doc.PageNumber),
	}
	if len(vector) > 0 {
		fields[fieldVector] = string(db.VectorBytes(vector))
	}
	return fields
}

func scoredDocs(result *db.SearchResult) []ScoredDocument {
	if result == nil {
		return nil
	}
	docs := make([]ScoredDocument, 0, len(result.Entries))
	for _, entry := range result.Entries {
		docs = append(docs, ScoredDocument{
			Doc:   docFromEntry(entry.Key, entry.Fields),
			Score: entry.Score,
		})
	}
	return docs
}

// docFromEntry rebuilds a chunk document from a search hit.
func docFromEntry(key string, fields map[string]string) domain.SourceDocument {
	chunk, _ := strconv.Atoi(fields[fieldChunk])
	offset, _ := strconv.Atoi(fields[fieldOffset])
	page, _ := strconv.Atoi(fields[fieldPageNumber])

	return domain.SourceDocument{
		ID:         idFromKey(key),
		Content:    fields[fieldContent],
		Source:     fields[fieldSource],
		Title:      fields[fieldTitle],
		Chunk:      chunk,
		Offset:     offset,
		PageNumber: page,
	}
}
