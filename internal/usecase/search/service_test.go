package search

import (
	"context"
	"errors"
	"testing"

	"github.com/kestrel-cloud/ragdex/internal/domain"
	"github.com/kestrel-cloud/ragdex/internal/usecase/retrieval"
)

func TestSearch_TextToText(t *testing.T) {
	svc, deps := newTestService(t)

	deps.retriever.retrieveFn = func(
		_ context.Context, vector domain.Vector, filter domain.Filter, indexes []string, candidateK int,
	) ([]domain.EmbeddingRecord, retrieval.Mode, error) {
		if vector[0] != 1 {
			t.Errorf("vector = %v, want text encoder output", vector)
		}
		if filter.Modality != domain.ModalityText {
			t.Errorf("filter.Modality = %q, want text", filter.Modality)
		}
		if indexes[0] != "ragdex-text-idx" {
			t.Errorf("indexes = %v", indexes)
		}
		if candidateK != 50 {
			t.Errorf("candidateK = %d, want 50", candidateK)
		}
		return []domain.EmbeddingRecord{
			textRecord("far", domain.Vector{0, 1, 0}),
			textRecord("near", domain.Vector{1, 0.1, 0}),
			textRecord("exact", domain.Vector{1, 0, 0}),
		}, retrieval.ModeANN, nil
	}

	result, err := svc.Search(context.Background(), mustQuery(t, domain.ModalityText, domain.ModalityText, 2), false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Mode != retrieval.ModeANN {
		t.Errorf("Mode = %q", result.Mode)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(result.Candidates))
	}
	if result.Candidates[0].Record.ID != "exact" || result.Candidates[1].Record.ID != "near" {
		t.Errorf("order = [%s %s], want [exact near]",
			result.Candidates[0].Record.ID, result.Candidates[1].Record.ID)
	}
	if !result.Candidates[0].Resolved() {
		t.Error("candidate not resolved")
	}
}

func TestSearch_DropsUnresolvedWithoutBackfill(t *testing.T) {
	svc, deps := newTestService(t)

	deps.retriever.retrieveFn = func(
		_ context.Context, _ domain.Vector, _ domain.Filter, _ []string, _ int,
	) ([]domain.EmbeddingRecord, retrieval.Mode, error) {
		return []domain.EmbeddingRecord{
			textRecord("kept", domain.Vector{1, 0, 0}),
			textRecord("orphan", domain.Vector{1, 0.1, 0}),
			textRecord("backfill-bait", domain.Vector{0.5, 0.5, 0}),
		}, retrieval.ModeANN, nil
	}
	deps.resolver.resolveFn = func(_ context.Context, rec domain.EmbeddingRecord) (domain.SourceEntity, error) {
		if rec.ID == "orphan" {
			return nil, nil // dangling reference
		}
		return &domain.Document{ID: rec.RefID}, nil
	}

	result, err := svc.Search(context.Background(), mustQuery(t, domain.ModalityText, domain.ModalityText, 2), false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// topK was 2, orphan dropped: one result, no backfill from rank 3.
	if len(result.Candidates) != 1 || result.Candidates[0].Record.ID != "kept" {
		t.Fatalf("candidates = %v, want [kept]", result.Candidates)
	}
}

func TestSearch_HybridBlendsLexical(t *testing.T) {
	svc, deps := newTestService(t)

	deps.retriever.retrieveFn = func(
		_ context.Context, _ domain.Vector, _ domain.Filter, _ []string, _ int,
	) ([]domain.EmbeddingRecord, retrieval.Mode, error) {
		return []domain.EmbeddingRecord{
			textRecord("vec-best", domain.Vector{1, 0, 0}),
			textRecord("lex-best", domain.Vector{0.9, 0.4, 0}),
		}, retrieval.ModeANN, nil
	}
	deps.embeddings.lexicalScoresFn = func(
		_ context.Context, indexName, query string, _ domain.Filter, _ int,
	) (map[string]float64, error) {
		if indexName != "ragdex-text-idx" {
			t.Errorf("lexical index = %q", indexName)
		}
		if query != "what helps with headaches" {
			t.Errorf("lexical query = %q", query)
		}
		return map[string]float64{"lex-best": 7.0}, nil
	}

	result, err := svc.Search(context.Background(), mustQuery(t, domain.ModalityText, domain.ModalityText, 2), true)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// vec-best: 0.7*1.0 = 0.70; lex-best: 0.7*0.914 + 0.3*1.0 = 0.94
	if result.Candidates[0].Record.ID != "lex-best" {
		t.Errorf("first = %q, want lex-best", result.Candidates[0].Record.ID)
	}
	if result.Candidates[0].LexicalScore == nil {
		t.Error("LexicalScore not attached")
	}
}

func TestSearch_LexicalFailureDegradesToVectorOnly(t *testing.T) {
	svc, deps := newTestService(t)

	deps.retriever.retrieveFn = func(
		_ context.Context, _ domain.Vector, _ domain.Filter, _ []string, _ int,
	) ([]domain.EmbeddingRecord, retrieval.Mode, error) {
		return []domain.EmbeddingRecord{textRecord("a", domain.Vector{1, 0, 0})}, retrieval.ModeANN, nil
	}
	deps.embeddings.lexicalScoresFn = func(
		_ context.Context, _, _ string, _ domain.Filter, _ int,
	) (map[string]float64, error) {
		return nil, errors.New("no TEXT field")
	}

	result, err := svc.Search(context.Background(), mustQuery(t, domain.ModalityText, domain.ModalityText, 1), true)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(result.Candidates))
	}
}

func TestSearch_ImageToTextCrossesFamilies(t *testing.T) {
	svc, deps := newTestService(t)

	fetched := false
	deps.fetcher.fetchFn = func(_ context.Context, raw string) ([]byte, error) {
		fetched = true
		return []byte{0xFF}, nil
	}
	deps.retriever.retrieveFn = func(
		_ context.Context, vector domain.Vector, filter domain.Filter, indexes []string, _ int,
	) ([]domain.EmbeddingRecord, retrieval.Mode, error) {
		if len(vector) != 4 {
			t.Errorf("vector dims = %d, want clip encoder output", len(vector))
		}
		if filter.Modality != domain.ModalityText || indexes[0] != "ragdex-text-idx" {
			t.Errorf("filter=%+v indexes=%v, want text target", filter, indexes)
		}
		// Stored text vectors have 3 dims; query has 4. Truncation applies.
		return []domain.EmbeddingRecord{textRecord("t1", domain.Vector{0, 1, 0})}, retrieval.ModeANN, nil
	}

	result, err := svc.Search(context.Background(), mustQuery(t, domain.ModalityImage, domain.ModalityText, 1), false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !fetched {
		t.Error("image input was not fetched")
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(result.Candidates))
	}
	cand := result.Candidates[0]
	if !cand.Truncated || !cand.LowConfidence {
		t.Errorf("Truncated=%v LowConfidence=%v, want both true", cand.Truncated, cand.LowConfidence)
	}
}

func TestSearch_RetrievalErrorPropagates(t *testing.T) {
	svc, deps := newTestService(t)

	deps.retriever.retrieveFn = func(
		_ context.Context, _ domain.Vector, _ domain.Filter, _ []string, _ int,
	) ([]domain.EmbeddingRecord, retrieval.Mode, error) {
		return nil, retrieval.ModeScan, domain.ErrRetrievalUnavailable
	}

	_, err := svc.Search(context.Background(), mustQuery(t, domain.ModalityText, domain.ModalityText, 1), false)
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("err = %v, want domain.ErrRetrievalUnavailable", err)
	}
}

func TestSimilarTo_ExcludesSeed(t *testing.T) {
	svc, deps := newTestService(t)

	seed := textRecord("seed", domain.Vector{1, 0, 0})
	deps.embeddings.getFn = func(_ context.Context, modality domain.Modality, id string) (domain.EmbeddingRecord, error) {
		if modality != domain.ModalityText || id != "seed" {
			t.Errorf("Get(%q, %q)", modality, id)
		}
		return seed, nil
	}
	deps.retriever.retrieveFn = func(
		_ context.Context, vector domain.Vector, _ domain.Filter, _ []string, _ int,
	) ([]domain.EmbeddingRecord, retrieval.Mode, error) {
		return []domain.EmbeddingRecord{
			seed, // the seed always matches itself best
			textRecord("n1", domain.Vector{1, 0.1, 0}),
			textRecord("n2", domain.Vector{0.5, 0.5, 0}),
		}, retrieval.ModeANN, nil
	}

	result, err := svc.SimilarTo(context.Background(), domain.CollectionDocuments, "seed", 2)
	if err != nil {
		t.Fatalf("SimilarTo: %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(result.Candidates))
	}
	for _, cand := range result.Candidates {
		if cand.Record.ID == "seed" {
			t.Error("seed not excluded from results")
		}
	}
	if result.Candidates[0].Record.ID != "n1" {
		t.Errorf("first = %q, want n1", result.Candidates[0].Record.ID)
	}
}

func TestSimilarTo_UnknownCollection(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SimilarTo(context.Background(), "videos", "x", 5)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want domain.ErrValidation", err)
	}
}

func TestSimilarTo_MissingSeed(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SimilarTo(context.Background(), domain.CollectionDocuments, "ghost", 5)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want domain.ErrNotFound", err)
	}
}
