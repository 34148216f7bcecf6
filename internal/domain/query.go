package domain

import "fmt"

const (
	// DefaultTopK is the final result count when the caller does not specify one.
	DefaultTopK = 5
	// MaxTopK bounds caller-requested result counts.
	MaxTopK = 100
	// CandidateMultiplier scales topK into the default candidate pool size.
	CandidateMultiplier = 10
	// MinCandidateK floors the candidate pool so small topK values still rank
	// over a meaningful set.
	MinCandidateK = 50
)

// DefaultCandidateK derives the candidate pool size from topK.
func DefaultCandidateK(topK int) int {
	return max(topK*CandidateMultiplier, MinCandidateK)
}

// QueryContext carries one retrieval request through the pipeline. Created per
// request and discarded.
type QueryContext struct {
	RawInput       string
	InputModality  Modality
	TargetModality Modality
	Filters        Filter
	TopK           int
	CandidateK     int
}

// NewQueryContext validates inputs and applies topK/candidateK defaults.
// CandidateK never falls below TopK.
func NewQueryContext(rawInput string, input, target Modality, filters Filter, topK, candidateK int) (QueryContext, error) {
	if rawInput == "" {
		return QueryContext{}, fmt.Errorf("%w: empty query input", ErrValidation)
	}
	if !input.IsValid() {
		return QueryContext{}, fmt.Errorf("%w: unknown input modality %q", ErrValidation, input)
	}
	if !target.IsValid() {
		return QueryContext{}, fmt.Errorf("%w: unknown target modality %q", ErrValidation, target)
	}
	if topK < 0 || topK > MaxTopK {
		return QueryContext{}, fmt.Errorf("%w: topK must be in [0, %d], got %d", ErrValidation, MaxTopK, topK)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if candidateK == 0 {
		candidateK = DefaultCandidateK(topK)
	}
	if candidateK < topK {
		return QueryContext{}, fmt.Errorf("%w: candidateK %d below topK %d", ErrValidation, candidateK, topK)
	}
	return QueryContext{
		RawInput:       rawInput,
		InputModality:  input,
		TargetModality: target,
		Filters:        filters,
		TopK:           topK,
		CandidateK:     candidateK,
	}, nil
}
