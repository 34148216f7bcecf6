package domain

// RAGTimings breaks down where a RAG request spent its time.
type RAGTimings struct {
	EmbedMs    int64 `json:"embed_ms"`
	RetrieveMs int64 `json:"retrieve_ms"`
	GenerateMs int64 `json:"generate_ms"`
	TotalMs    int64 `json:"total_ms"`
}

// RAGSource is the provenance of one context item in an answer.
type RAGSource struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Collection string  `json:"collection"`
	Score      float64 `json:"score"`
}

// RAGAnswer packages a generated answer with its context, provenance and
// timings. Created per request and discarded.
type RAGAnswer struct {
	Question      string
	ContextItems  []ScoredCandidate
	GeneratedText string
	Sources       []RAGSource
	Usage         TokenUsage
	Timings       RAGTimings
	Success       bool
	Err           string
}

// BatchRAGResult aggregates a batch of sequential RAG answers.
type BatchRAGResult struct {
	Answers   []RAGAnswer
	Succeeded int
	Failed    int
}
