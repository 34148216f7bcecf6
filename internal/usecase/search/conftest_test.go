package search

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/domain"
	"github.com/kestrel-cloud/ragdex/internal/usecase/retrieval"
	"github.com/kestrel-cloud/ragdex/internal/usecase/route"
)

// stubEncoder returns a fixed vector for any input.
type stubEncoder struct {
	vector domain.Vector
}

func (s *stubEncoder) EmbedText(context.Context, string) (domain.Embedding, error) {
	return domain.Embedding{Vector: s.vector, Dims: len(s.vector), ModelID: "stub"}, nil
}

func (s *stubEncoder) EmbedImage(context.Context, []byte) (domain.Embedding, error) {
	return domain.Embedding{Vector: s.vector, Dims: len(s.vector), ModelID: "stub"}, nil
}

type mockRetriever struct {
	retrieveFn func(ctx context.Context, vector domain.Vector, filter domain.Filter, indexes []string, candidateK int) ([]domain.EmbeddingRecord, retrieval.Mode, error)
}

func (m *mockRetriever) Retrieve(
	ctx context.Context, vector domain.Vector, filter domain.Filter, indexes []string, candidateK int,
) ([]domain.EmbeddingRecord, retrieval.Mode, error) {
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, vector, filter, indexes, candidateK)
	}
	return nil, retrieval.ModeANN, nil
}

type mockEmbeddingReader struct {
	getFn           func(ctx context.Context, modality domain.Modality, id string) (domain.EmbeddingRecord, error)
	lexicalScoresFn func(ctx context.Context, indexName, query string, filter domain.Filter, topK int) (map[string]float64, error)
}

func (m *mockEmbeddingReader) Get(
	ctx context.Context, modality domain.Modality, id string,
) (domain.EmbeddingRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, modality, id)
	}
	return domain.EmbeddingRecord{}, domain.ErrNotFound
}

func (m *mockEmbeddingReader) LexicalScores(
	ctx context.Context, indexName, query string, filter domain.Filter, topK int,
) (map[string]float64, error) {
	if m.lexicalScoresFn != nil {
		return m.lexicalScoresFn(ctx, indexName, query, filter, topK)
	}
	return map[string]float64{}, nil
}

type mockResolver struct {
	resolveFn func(ctx context.Context, rec domain.EmbeddingRecord) (domain.SourceEntity, error)
}

func (m *mockResolver) Resolve(ctx context.Context, rec domain.EmbeddingRecord) (domain.SourceEntity, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, rec)
	}
	return &domain.Document{ID: rec.RefID, Title: "doc " + rec.RefID}, nil
}

type mockFetcher struct {
	fetchFn func(ctx context.Context, raw string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, raw)
	}
	return []byte{1, 2, 3}, nil
}

// testDeps bundles the mocks behind a ready-to-use service.
type testDeps struct {
	retriever  *mockRetriever
	embeddings *mockEmbeddingReader
	resolver   *mockResolver
	fetcher    *mockFetcher
	textVec    domain.Vector
	clipVec    domain.Vector
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()

	deps := &testDeps{
		retriever:  &mockRetriever{},
		embeddings: &mockEmbeddingReader{},
		resolver:   &mockResolver{},
		fetcher:    &mockFetcher{},
		textVec:    domain.Vector{1, 0, 0},
		clipVec:    domain.Vector{0, 1, 0, 0},
	}

	planner := route.New(
		&stubEncoder{vector: deps.textVec},
		&stubEncoder{vector: deps.clipVec},
		[]string{"ragdex-text-idx", "ragdex-idx"},
		[]string{"ragdex-image-idx", "ragdex-idx"},
	)

	svc := New(Config{
		Planner:            planner,
		Retriever:          deps.retriever,
		Embeddings:         deps.embeddings,
		Resolver:           deps.resolver,
		Images:             deps.fetcher,
		ResolveConcurrency: 4,
		Logger:             zap.NewNop(),
	})
	return svc, deps
}

func textRecord(id string, vec domain.Vector) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{
		ID:            id,
		Vector:        vec,
		Modality:      domain.ModalityText,
		RefID:         id,
		RefCollection: domain.CollectionDocuments,
		CreatedAt:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func mustQuery(t *testing.T, input, target domain.Modality, topK int) domain.QueryContext {
	t.Helper()
	q, err := domain.NewQueryContext("what helps with headaches", input, target, domain.Filter{}, topK, 0)
	if err != nil {
		t.Fatalf("NewQueryContext: %v", err)
	}
	return q
}
