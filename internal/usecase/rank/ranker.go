// Package rank scores candidates exactly and orders them. It is pure: no IO,
// no clock, no backend — the ANN scores that got a candidate here are treated
// as provisional hints and recomputed locally.
package rank

import (
	"sort"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// Options controls one ranking pass.
type Options struct {
	TopK int
	// Weights mixes the vector and lexical signals. The zero value means
	// vector-only scoring.
	Weights domain.RankWeights
	// AllowTruncate scores dimension-mismatched candidates over the common
	// prefix instead of dropping them.
	AllowTruncate bool
	// LowConfidence marks every result as scored across encoder families.
	LowConfidence bool
	// LexicalScores holds raw BM25 scores keyed by record ID. Normalized by
	// the maximum before blending.
	LexicalScores map[string]float64
}

// Rank computes exact cosine scores against the full stored vectors, blends
// the lexical signal, and returns the top candidates in descending combined
// score. Ties break toward the more recently created record. Output length is
// min(TopK, scorable candidates).
func Rank(queryVector domain.Vector, records []domain.EmbeddingRecord, opts Options) []domain.ScoredCandidate {
	weights := opts.Weights
	if weights.Vector == 0 && weights.Lexical == 0 {
		weights = domain.RankWeights{Vector: 1}
	}

	lexNorm := normalizeLexical(opts.LexicalScores)

	candidates := make([]domain.ScoredCandidate, 0, len(records))
	for _, rec := range records {
		score, truncated, ok := vectorScore(queryVector, rec.Vector, opts.AllowTruncate)
		if !ok {
			continue
		}

		cand := domain.ScoredCandidate{
			Record:        rec,
			VectorScore:   score,
			Truncated:     truncated,
			LowConfidence: opts.LowConfidence,
		}

		combined := weights.Vector * score
		if lex, found := lexNorm[rec.ID]; found {
			cand.LexicalScore = &lex
			combined += weights.Lexical * lex
		}
		cand.CombinedScore = combined

		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CombinedScore != candidates[j].CombinedScore {
			return candidates[i].CombinedScore > candidates[j].CombinedScore
		}
		return candidates[i].Record.CreatedAt.After(candidates[j].Record.CreatedAt)
	})

	if opts.TopK > 0 && len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}
	return candidates
}

// vectorScore computes the exact similarity for one candidate. A dimension
// mismatch drops the candidate unless truncation is allowed.
func vectorScore(query, stored domain.Vector, allowTruncate bool) (score float64, truncated, ok bool) {
	if len(query) == len(stored) {
		s, err := domain.Cosine(query, stored)
		if err != nil {
			return 0, false, false
		}
		return s, false, true
	}

	if !allowTruncate {
		return 0, false, false
	}

	s, wasTruncated := domain.CosineTruncated(query, stored)
	return s, wasTruncated, true
}

// normalizeLexical scales raw BM25 scores into [0,1] by the maximum score.
func normalizeLexical(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}

	maxScore := 0.0
	for _, s := range raw {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore <= 0 {
		return nil
	}

	norm := make(map[string]float64, len(raw))
	for id, s := range raw {
		norm[id] = s / maxScore
	}
	return norm
}
