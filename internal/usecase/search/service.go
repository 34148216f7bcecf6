// Package search composes the retrieval pipeline: route, embed, retrieve,
// rank, resolve.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kestrel-cloud/ragdex/internal/domain"
	"github.com/kestrel-cloud/ragdex/internal/usecase/rank"
	"github.com/kestrel-cloud/ragdex/internal/usecase/retrieval"
	"github.com/kestrel-cloud/ragdex/internal/usecase/route"
)

// Planner resolves the execution plan for a modality pair.
type Planner interface {
	Plan(input, target domain.Modality) (route.Plan, error)
}

// Retriever fetches candidate records for a query vector.
type Retriever interface {
	Retrieve(ctx context.Context, vector domain.Vector, filter domain.Filter, indexes []string, candidateK int) ([]domain.EmbeddingRecord, retrieval.Mode, error)
}

// EmbeddingReader provides the stored-record reads the pipeline needs beyond
// retrieval: seed lookups and the lexical signal.
type EmbeddingReader interface {
	Get(ctx context.Context, modality domain.Modality, id string) (domain.EmbeddingRecord, error)
	LexicalScores(ctx context.Context, indexName, query string, filter domain.Filter, topK int) (map[string]float64, error)
}

// Resolver loads the source entity an embedding record references.
type Resolver interface {
	Resolve(ctx context.Context, rec domain.EmbeddingRecord) (domain.SourceEntity, error)
}

// ImageFetcher normalizes raw image inputs into bytes.
type ImageFetcher interface {
	Fetch(ctx context.Context, raw string) ([]byte, error)
}

// Result is one executed search with its pipeline timings.
type Result struct {
	Candidates []domain.ScoredCandidate
	Mode       retrieval.Mode
	EmbedTime  time.Duration
	SearchTime time.Duration
}

// Service executes searches.
type Service struct {
	planner    Planner
	retriever  Retriever
	embeddings EmbeddingReader
	resolver   Resolver
	images     ImageFetcher

	weights            domain.RankWeights
	resolveConcurrency int
	logger             *zap.Logger
}

// Config wires the search service.
type Config struct {
	Planner    Planner
	Retriever  Retriever
	Embeddings EmbeddingReader
	Resolver   Resolver
	Images     ImageFetcher

	// Weights is the hybrid vector/lexical mix.
	Weights domain.RankWeights
	// ResolveConcurrency bounds the reference-resolution fan-out.
	ResolveConcurrency int
	Logger             *zap.Logger
}

// New creates a search service.
func New(cfg Config) *Service {
	weights := cfg.Weights
	if weights.Vector == 0 && weights.Lexical == 0 {
		weights = domain.DefaultRankWeights
	}
	concurrency := cfg.ResolveConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	return &Service{
		planner:            cfg.Planner,
		retriever:          cfg.Retriever,
		embeddings:         cfg.Embeddings,
		resolver:           cfg.Resolver,
		images:             cfg.Images,
		weights:            weights,
		resolveConcurrency: concurrency,
		logger:             cfg.Logger,
	}
}

// Search executes one query end to end. hybrid blends the BM25 lexical signal
// into the ranking for text-to-text queries.
func (s *Service) Search(ctx context.Context, q domain.QueryContext, hybrid bool) (Result, error) {
	plan, err := s.planner.Plan(q.InputModality, q.TargetModality)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // validation error carries context
	}

	embedStart := time.Now()
	emb, err := s.embedQuery(ctx, plan, q)
	if err != nil {
		return Result{}, err
	}
	embedTime := time.Since(embedStart)

	searchStart := time.Now()
	filter := mergeFilter(q.Filters, plan.Filter)

	records, mode, err := s.retriever.Retrieve(ctx, emb.Vector, filter, plan.Indexes, q.CandidateK)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // retrieval error carries context
	}

	opts := rank.Options{
		TopK:          q.TopK,
		AllowTruncate: plan.AllowTruncate,
		LowConfidence: plan.LowConfidence,
	}
	if hybrid && q.InputModality == domain.ModalityText && q.TargetModality == domain.ModalityText {
		opts.Weights = s.weights
		opts.LexicalScores = s.lexicalScores(ctx, plan, q, filter)
	}

	candidates := rank.Rank(emb.Vector, records, opts)
	candidates = s.resolveAll(ctx, candidates)

	return Result{
		Candidates: candidates,
		Mode:       mode,
		EmbedTime:  embedTime,
		SearchTime: time.Since(searchStart),
	}, nil
}

// SimilarTo retrieves the nearest records to an already-stored entity,
// excluding the seed itself.
func (s *Service) SimilarTo(ctx context.Context, collection, id string, topK int) (Result, error) {
	modality, err := collectionModality(collection)
	if err != nil {
		return Result{}, err
	}
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	seed, err := s.embeddings.Get(ctx, modality, id)
	if err != nil {
		return Result{}, fmt.Errorf("seed %s/%s: %w", collection, id, err)
	}

	plan, err := s.planner.Plan(modality, modality)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // validation error carries context
	}

	searchStart := time.Now()
	candidateK := domain.DefaultCandidateK(topK)

	records, mode, err := s.retriever.Retrieve(ctx, seed.Vector, plan.Filter, plan.Indexes, candidateK)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // retrieval error carries context
	}

	// Rank one deeper so the excluded seed does not shrink the result.
	candidates := rank.Rank(seed.Vector, records, rank.Options{TopK: topK + 1})
	filtered := candidates[:0]
	for _, cand := range candidates {
		if cand.Record.ID != seed.ID {
			filtered = append(filtered, cand)
		}
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}

	filtered = s.resolveAll(ctx, filtered)

	return Result{
		Candidates: filtered,
		Mode:       mode,
		SearchTime: time.Since(searchStart),
	}, nil
}

// embedQuery runs the planned encoder over the raw input.
func (s *Service) embedQuery(ctx context.Context, plan route.Plan, q domain.QueryContext) (domain.Embedding, error) {
	if q.InputModality == domain.ModalityImage {
		data, err := s.images.Fetch(ctx, q.RawInput)
		if err != nil {
			return domain.Embedding{}, err //nolint:wrapcheck // fetcher error carries context
		}
		return plan.Encoder.EmbedImage(ctx, data)
	}
	return plan.Encoder.EmbedText(ctx, q.RawInput)
}

// lexicalScores fetches the best-effort BM25 signal. Failures degrade to
// vector-only ranking.
func (s *Service) lexicalScores(
	ctx context.Context, plan route.Plan, q domain.QueryContext, filter domain.Filter,
) map[string]float64 {
	if len(plan.Indexes) == 0 {
		return nil
	}

	scores, err := s.embeddings.LexicalScores(ctx, plan.Indexes[0], q.RawInput, filter, q.CandidateK)
	if err != nil {
		s.logger.Warn("Lexical scoring failed, ranking on vector signal only", zap.Error(err))
		return nil
	}
	return scores
}

// resolveAll loads source entities with a bounded fan-out and drops
// candidates whose reference cannot be resolved. Score order is preserved.
func (s *Service) resolveAll(ctx context.Context, candidates []domain.ScoredCandidate) []domain.ScoredCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.resolveConcurrency)

	entities := make([]domain.SourceEntity, len(candidates))
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			entity, err := s.resolver.Resolve(gctx, cand.Record)
			if err != nil {
				s.logger.Warn("Reference resolution failed",
					zap.String("record_id", cand.Record.ID),
					zap.String("ref_id", cand.Record.RefID),
					zap.Error(err),
				)
				return nil // unresolved candidates are dropped, never fatal
			}
			entities[i] = entity
			return nil
		})
	}
	_ = g.Wait()

	resolved := candidates[:0]
	for i, cand := range candidates {
		if entities[i] == nil {
			continue
		}
		cand.Entity = entities[i]
		resolved = append(resolved, cand)
	}
	return resolved
}

// mergeFilter overlays the plan's forced conditions on the caller's filter.
func mergeFilter(user, forced domain.Filter) domain.Filter {
	merged := user
	if forced.Modality != "" {
		merged.Modality = forced.Modality
	}
	if forced.RefCollection != "" {
		merged.RefCollection = forced.RefCollection
	}
	return merged
}

// collectionModality maps a reference collection to its record modality.
func collectionModality(collection string) (domain.Modality, error) {
	switch collection {
	case domain.CollectionDocuments:
		return domain.ModalityText, nil
	case domain.CollectionImages:
		return domain.ModalityImage, nil
	default:
		return "", fmt.Errorf("unknown collection %q: %w", collection, domain.ErrValidation)
	}
}
