package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var docMarkerRe = regexp.MustCompile(`\[doc(\d+)\]`)

// RenumberCitations rewrites [docN] markers in answer text so they read
// [doc1], [doc2], ... in order of first appearance, and restricts candidates
// to the documents actually referenced.
//
// Markers are 1-based into candidates. Out-of-range markers ([doc0], or N
// beyond the candidate list) are dropped from the text; dropped is the count
// of such markers, reported so the caller can log them.
//
// Two passes: first collect the first-appearance order into a mapping, then
// rewrite in a single left-to-right pass. The text is never mutated while
// being scanned.
func RenumberCitations(answer string, candidates []SourceDocument) (string, []SourceDocument, int) {
	matches := docMarkerRe.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return answer, nil, 0
	}

	// Pass 1: mapping from original N to new 1-based index.
	mapping := make(map[int]int)
	var cited []SourceDocument
	dropped := 0
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(candidates) {
			dropped++
			continue
		}
		if _, ok := mapping[n]; !ok {
			mapping[n] = len(cited) + 1
			cited = append(cited, candidates[n-1])
		}
	}

	// Pass 2: rewrite.
	rewritten := docMarkerRe.ReplaceAllStringFunc(answer, func(marker string) string {
		n, err := strconv.Atoi(docMarkerRe.FindStringSubmatch(marker)[1])
		if err != nil {
			return ""
		}
		idx, ok := mapping[n]
		if !ok {
			return ""
		}
		return fmt.Sprintf("[doc%d]", idx)
	})

	return strings.TrimSpace(rewritten), cited, dropped
}
