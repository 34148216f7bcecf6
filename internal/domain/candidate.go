package domain

// RankWeights mixes the vector and lexical signals into a combined score.
type RankWeights struct {
	Vector  float64
	Lexical float64
}

// DefaultRankWeights is the hybrid mix used when the caller enables lexical
// blending without supplying explicit weights.
var DefaultRankWeights = RankWeights{Vector: 0.7, Lexical: 0.3}

// ScoredCandidate is one ranked retrieval hit. Transient, never persisted.
type ScoredCandidate struct {
	Record        EmbeddingRecord
	VectorScore   float64
	LexicalScore  *float64
	CombinedScore float64
	// Truncated marks a score computed over mismatched dimensions via the
	// precision-losing truncation escape valve.
	Truncated bool
	// LowConfidence marks scores produced across incompatible encoder families.
	LowConfidence bool
	// Entity is the resolved source entity, nil when the reference could not
	// be resolved.
	Entity SourceEntity
}

// Resolved reports whether the candidate's source entity was found.
func (c ScoredCandidate) Resolved() bool { return c.Entity != nil }
