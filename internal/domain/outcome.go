package domain

// OutcomeKind classifies one ANN index attempt.
type OutcomeKind int

const (
	// OutcomeFound means the index answered with at least one record.
	OutcomeFound OutcomeKind = iota
	// OutcomeEmpty means the index answered but matched nothing.
	OutcomeEmpty
	// OutcomeBackendError means the index could not answer at all.
	OutcomeBackendError
)

// RetrievalOutcome is the result of a single ANN query. The retrieval policy
// branches on Kind instead of sniffing error strings.
type RetrievalOutcome struct {
	Kind    OutcomeKind
	Records []EmbeddingRecord
	Err     error
}
