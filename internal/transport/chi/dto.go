package chi

import (
	"time"

	"github.com/kestrel-cloud/ragdex/internal/domain"
	raguc "github.com/kestrel-cloud/ragdex/internal/usecase/rag"
	searchuc "github.com/kestrel-cloud/ragdex/internal/usecase/search"
)

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// filterRequest is the wire form of a record filter.
type filterRequest struct {
	Collection  string            `json:"collection,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedFrom *time.Time        `json:"created_from,omitempty"`
	CreatedTo   *time.Time        `json:"created_to,omitempty"`
}

func (f filterRequest) toDomain() domain.Filter {
	filter := domain.Filter{
		RefCollection: f.Collection,
		Metadata:      f.Metadata,
	}
	if f.CreatedFrom != nil {
		filter.CreatedFrom = *f.CreatedFrom
	}
	if f.CreatedTo != nil {
		filter.CreatedTo = *f.CreatedTo
	}
	return filter
}

type searchRequest struct {
	Query      string        `json:"query"`
	TopK       int           `json:"top_k,omitempty"`
	CandidateK int           `json:"candidate_k,omitempty"`
	Hybrid     bool          `json:"hybrid,omitempty"`
	Filters    filterRequest `json:"filters,omitempty"`
}

type multimodalSearchRequest struct {
	Input          string        `json:"input"`
	InputModality  string        `json:"input_modality"`
	TargetModality string        `json:"target_modality"`
	TopK           int           `json:"top_k,omitempty"`
	CandidateK     int           `json:"candidate_k,omitempty"`
	Filters        filterRequest `json:"filters,omitempty"`
}

type searchHit struct {
	ID            string             `json:"id"`
	Collection    string             `json:"collection"`
	Score         float64            `json:"score"`
	VectorScore   float64            `json:"vector_score"`
	LexicalScore  *float64           `json:"lexical_score,omitempty"`
	Truncated     bool               `json:"truncated,omitempty"`
	LowConfidence bool               `json:"low_confidence,omitempty"`
	Entity        domain.SourceEntity `json:"entity"`
}

type searchResponse struct {
	Success  bool        `json:"success"`
	Mode     string      `json:"mode"`
	Count    int         `json:"count"`
	Hits     []searchHit `json:"hits"`
	TimingMs timingInfo  `json:"timing_ms"`
}

type timingInfo struct {
	Embed  int64 `json:"embed"`
	Search int64 `json:"search"`
}

func searchResponseFrom(result searchuc.Result) searchResponse {
	hits := make([]searchHit, 0, len(result.Candidates))
	for _, cand := range result.Candidates {
		hits = append(hits, searchHit{
			ID:            cand.Entity.EntityID(),
			Collection:    cand.Entity.EntityCollection(),
			Score:         cand.CombinedScore,
			VectorScore:   cand.VectorScore,
			LexicalScore:  cand.LexicalScore,
			Truncated:     cand.Truncated,
			LowConfidence: cand.LowConfidence,
			Entity:        cand.Entity,
		})
	}

	return searchResponse{
		Success: true,
		Mode:    string(result.Mode),
		Count:   len(hits),
		Hits:    hits,
		TimingMs: timingInfo{
			Embed:  result.EmbedTime.Milliseconds(),
			Search: result.SearchTime.Milliseconds(),
		},
	}
}

type ragOptions struct {
	TopK    int           `json:"top_k,omitempty"`
	Hybrid  bool          `json:"hybrid,omitempty"`
	Filters filterRequest `json:"filters,omitempty"`
}

func (o ragOptions) options() raguc.Options {
	return raguc.Options{
		TopK:    o.TopK,
		Hybrid:  o.Hybrid,
		Filters: o.Filters.toDomain(),
	}
}

type ragRequest struct {
	Question string `json:"question"`
	ragOptions
}

type ragChatRequest struct {
	Messages []raguc.Turn `json:"messages"`
	ragOptions
}

type ragBatchRequest struct {
	Questions []string `json:"questions"`
	ragOptions
}

type ragResponse struct {
	Success   bool               `json:"success"`
	Question  string             `json:"question"`
	Answer    string             `json:"answer,omitempty"`
	Sources   []domain.RAGSource `json:"sources,omitempty"`
	Usage     tokenUsage         `json:"usage"`
	TimingMs  domain.RAGTimings  `json:"timing_ms"`
	Error     string             `json:"error,omitempty"`
}

type tokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func ragResponseFrom(answer domain.RAGAnswer) ragResponse {
	return ragResponse{
		Success:  answer.Success,
		Question: answer.Question,
		Answer:   answer.GeneratedText,
		Sources:  answer.Sources,
		Usage: tokenUsage{
			PromptTokens:     answer.Usage.PromptTokens,
			CompletionTokens: answer.Usage.CompletionTokens,
			TotalTokens:      answer.Usage.TotalTokens,
		},
		TimingMs: answer.Timings,
		Error:    answer.Err,
	}
}

type ragBatchResponse struct {
	Success   bool          `json:"success"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Answers   []ragResponse `json:"answers"`
}

func ragBatchResponseFrom(result domain.BatchRAGResult) ragBatchResponse {
	answers := make([]ragResponse, 0, len(result.Answers))
	for _, answer := range result.Answers {
		answers = append(answers, ragResponseFrom(answer))
	}
	return ragBatchResponse{
		Success:   true,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Answers:   answers,
	}
}
