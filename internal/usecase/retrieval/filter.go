package retrieval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/atlas-cloud/ragdex/internal/db"
	"github.com/atlas-cloud/ragdex/internal/domain"
)

// filterClause matches one `field eq 'value'` clause.
var filterClause = regexp.MustCompile(`^\s*(\w+)\s+eq\s+'((?:[^']|'')*)'\s*$`)

// filterableFields are the record fields exact-match filters may target.
var filterableFields = map[string]bool{
	"title":  true,
	"source": true,
}

// ParseFilter translates an expression like `title eq 'a.pdf' and
// source eq 'https://…'` into exact-match filters. Empty input means no
// filtering.
func ParseFilter(expr string) (db.Filters, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	filters := make(db.Filters)
	for _, clause := range strings.Split(expr, " and ") {
		m := filterClause.FindStringSubmatch(clause)
		if m == nil {
			return nil, fmt.Errorf("malformed filter clause %q: %w", clause, domain.ErrBadInput)
		}
		field := m[1]
		if !filterableFields[field] {
			return nil, fmt.Errorf("field %q is not filterable: %w", field, domain.ErrBadInput)
		}
		// '' is the escaped quote inside a quoted literal
		filters[field] = strings.ReplaceAll(m[2], "''", "'")
	}
	return filters, nil
}
