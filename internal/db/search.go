package db

import "strings"

// Filters are exact-match pre-filters over TAG fields (field -> value).
type Filters map[string]string

// TagQuery renders an exact-match TAG clause with value escaping,
// usable as an FT.SEARCH query on its own.
func TagQuery(field, value string) string {
	return "@" + field + ":{" + tagEscaper.Replace(value) + "}"
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
	"/", "\\/",
	"?", "\\?",
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      Filters
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
type TextQuery struct {
	IndexName    string
	Query        string
	Filters      Filters
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
