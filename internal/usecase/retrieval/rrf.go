package retrieval

import (
	"sort"

	"github.com/atlas-cloud/ragdex/internal/repository/index"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges vector and keyword rankings via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) over the rankings where d appears.
// Equal fused scores are broken by the lexical (BM25) score.
func fuseRRF(vector, keyword []index.ScoredDocument, topK int) []index.ScoredDocument {
	type scored struct {
		doc     index.ScoredDocument
		score   float64
		lexical float64
	}

	merged := make(map[string]*scored)

	for rank, r := range vector {
		s := 1.0 / float64(rrfK+rank+1)
		merged[r.Doc.ID] = &scored{doc: r, score: s}
	}

	for rank, r := range keyword {
		s := 1.0 / float64(rrfK+rank+1)
		if existing, ok := merged[r.Doc.ID]; ok {
			existing.score += s
			existing.lexical = r.Score
		} else {
			merged[r.Doc.ID] = &scored{doc: r, score: s, lexical: r.Score}
		}
	}

	results := make([]*scored, 0, len(merged))
	for _, s := range merged {
		results = append(results, s)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].lexical > results[j].lexical
	})

	if len(results) > topK {
		results = results[:topK]
	}

	fused := make([]index.ScoredDocument, len(results))
	for i, s := range results {
		fused[i] = index.ScoredDocument{Doc: s.doc.Doc, Score: s.score}
	}
	return fused
}
