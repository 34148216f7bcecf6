// Package rag orchestrates retrieval-augmented generation: retrieve and rank
// context for a question, build a grounded prompt, call the generation model
// once, and package the answer with provenance and timings.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/domain"
	"github.com/kestrel-cloud/ragdex/internal/usecase/search"
)

// systemInstruction pins the generation model to the retrieved context.
const systemInstruction = `You are a helpful assistant. Answer the user's question using ONLY the information in the provided context. Cite the context items you used by their number, e.g. [1]. If the context does not contain enough information to answer, say so explicitly instead of guessing.`

// Searcher executes the retrieval pipeline for the orchestrator.
type Searcher interface {
	Search(ctx context.Context, q domain.QueryContext, hybrid bool) (search.Result, error)
}

// Options tunes one RAG request.
type Options struct {
	TopK    int
	Filters domain.Filter
	// Hybrid blends the lexical signal into context selection.
	Hybrid bool
	// AuxContext is extra caller-supplied context appended after the
	// retrieved items (e.g. conversation history).
	AuxContext string
}

// Service answers questions over the indexed corpus.
type Service struct {
	searcher  Searcher
	generator domain.Generator

	timeout     time.Duration
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// Config wires the RAG service.
type Config struct {
	Searcher  Searcher
	Generator domain.Generator

	// Timeout bounds one complete Answer call.
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
	Logger      *zap.Logger
}

// New creates a RAG service.
func New(cfg Config) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Service{
		searcher:    cfg.Searcher,
		generator:   cfg.Generator,
		timeout:     timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Answer retrieves context for the question and generates a grounded answer.
// Zero usable candidates short-circuit before any generation call. The whole
// request is bounded by the configured deadline.
func (s *Service) Answer(ctx context.Context, question string, opts Options) domain.RAGAnswer {
	start := time.Now()
	answer := domain.RAGAnswer{Question: question}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q, err := domain.NewQueryContext(
		question, domain.ModalityText, domain.ModalityText, opts.Filters, opts.TopK, 0)
	if err != nil {
		return s.fail(answer, start, err)
	}

	result, err := s.searcher.Search(ctx, q, opts.Hybrid)
	if err != nil {
		return s.fail(answer, start, s.normalizeErr(ctx, err))
	}
	answer.Timings.EmbedMs = result.EmbedTime.Milliseconds()
	answer.Timings.RetrieveMs = result.SearchTime.Milliseconds()

	if len(result.Candidates) == 0 {
		return s.fail(answer, start, fmt.Errorf("question %q: %w", question, domain.ErrNoRelevantContext))
	}
	answer.ContextItems = result.Candidates

	genStart := time.Now()
	gen, err := s.generator.Generate(ctx, domain.GenerationRequest{
		SystemPrompt: systemInstruction,
		UserPrompt:   buildUserPrompt(question, result.Candidates, opts.AuxContext),
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
	})
	answer.Timings.GenerateMs = time.Since(genStart).Milliseconds()
	if err != nil {
		return s.fail(answer, start, s.normalizeErr(ctx, err))
	}

	answer.GeneratedText = gen.Text
	answer.Usage = gen.Usage
	answer.Sources = buildSources(result.Candidates)
	answer.Success = true
	answer.Timings.TotalMs = time.Since(start).Milliseconds()
	return answer
}

// ChatAnswer folds prior conversation turns into auxiliary context and
// answers the latest question.
func (s *Service) ChatAnswer(ctx context.Context, turns []Turn, opts Options) domain.RAGAnswer {
	question, history := splitTurns(turns)
	if question == "" {
		answer := domain.RAGAnswer{}
		return s.fail(answer, time.Now(), fmt.Errorf("%w: no user question in conversation", domain.ErrValidation))
	}

	if history != "" {
		if opts.AuxContext != "" {
			opts.AuxContext += "\n\n"
		}
		opts.AuxContext += "Conversation so far:\n" + history
	}
	return s.Answer(ctx, question, opts)
}

// BatchAnswer answers questions sequentially. Per-question failures are
// isolated; the batch always completes.
func (s *Service) BatchAnswer(ctx context.Context, questions []string, opts Options) domain.BatchRAGResult {
	result := domain.BatchRAGResult{Answers: make([]domain.RAGAnswer, 0, len(questions))}

	for _, question := range questions {
		answer := s.Answer(ctx, question, opts)
		if answer.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Answers = append(result.Answers, answer)
	}
	return result
}

// Turn is one message of a conversation.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// splitTurns separates the latest user question from the preceding history.
func splitTurns(turns []Turn) (question, history string) {
	lastUser := -1
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			lastUser = i
			break
		}
	}
	if lastUser == -1 {
		return "", ""
	}

	var b strings.Builder
	for _, turn := range turns[:lastUser] {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	return turns[lastUser].Content, strings.TrimSuffix(b.String(), "\n")
}

// buildUserPrompt assembles the numbered context block, optional auxiliary
// context, and the question.
func buildUserPrompt(question string, candidates []domain.ScoredCandidate, aux string) string {
	var b strings.Builder

	b.WriteString("Context:\n")
	for i, cand := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, cand.Entity.EntityTitle(), entityBody(cand.Entity))
	}

	if aux != "" {
		b.WriteString(aux)
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// entityBody extracts the text a context item contributes to the prompt.
func entityBody(entity domain.SourceEntity) string {
	switch e := entity.(type) {
	case *domain.Document:
		return e.Content
	case *domain.Image:
		return e.Description
	default:
		return ""
	}
}

func buildSources(candidates []domain.ScoredCandidate) []domain.RAGSource {
	sources := make([]domain.RAGSource, 0, len(candidates))
	for _, cand := range candidates {
		sources = append(sources, domain.RAGSource{
			ID:         cand.Entity.EntityID(),
			Title:      cand.Entity.EntityTitle(),
			Collection: cand.Entity.EntityCollection(),
			Score:      cand.CombinedScore,
		})
	}
	return sources
}

// normalizeErr maps an expired deadline onto the timeout sentinel.
func (s *Service) normalizeErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("deadline %s exceeded: %w", s.timeout, domain.ErrTimeout)
	}
	return err
}

// fail finalizes an unsuccessful answer.
func (s *Service) fail(answer domain.RAGAnswer, start time.Time, err error) domain.RAGAnswer {
	s.logger.Warn("RAG request failed",
		zap.String("question", answer.Question),
		zap.Error(err),
	)
	answer.Success = false
	answer.Err = err.Error()
	answer.Timings.TotalMs = time.Since(start).Milliseconds()
	return answer
}
