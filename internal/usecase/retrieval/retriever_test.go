package retrieval

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// mockRepo implements Repository for tests.
type mockRepo struct {
	annQueryFn func(ctx context.Context, indexName string, vector domain.Vector, filter domain.Filter, k int) domain.RetrievalOutcome
	scanAllFn  func(ctx context.Context, filter domain.Filter) ([]domain.EmbeddingRecord, error)
}

func (m *mockRepo) AnnQuery(
	ctx context.Context, indexName string, vector domain.Vector, filter domain.Filter, k int,
) domain.RetrievalOutcome {
	if m.annQueryFn != nil {
		return m.annQueryFn(ctx, indexName, vector, filter, k)
	}
	return domain.RetrievalOutcome{Kind: domain.OutcomeEmpty}
}

func (m *mockRepo) ScanAll(ctx context.Context, filter domain.Filter) ([]domain.EmbeddingRecord, error) {
	if m.scanAllFn != nil {
		return m.scanAllFn(ctx, filter)
	}
	return nil, nil
}

func records(ids ...string) []domain.EmbeddingRecord {
	recs := make([]domain.EmbeddingRecord, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, domain.EmbeddingRecord{ID: id, Vector: domain.Vector{1, 0, 0}})
	}
	return recs
}

func ids(recs []domain.EmbeddingRecord) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.ID)
	}
	return out
}

var testIndexes = []string{"ragdex-text-idx", "ragdex-idx"}

func TestRetrieve_FirstIndexWins(t *testing.T) {
	repo := &mockRepo{
		annQueryFn: func(_ context.Context, indexName string, _ domain.Vector, _ domain.Filter, _ int) domain.RetrievalOutcome {
			if indexName != "ragdex-text-idx" {
				t.Errorf("queried %q before first index answered", indexName)
			}
			return domain.RetrievalOutcome{Kind: domain.OutcomeFound, Records: records("a", "b")}
		},
	}

	recs, mode, err := New(repo, zap.NewNop()).Retrieve(
		context.Background(), domain.Vector{1, 0, 0}, domain.Filter{}, testIndexes, 50)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if mode != ModeANN {
		t.Errorf("mode = %q, want ann", mode)
	}
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2", len(recs))
	}
}

func TestRetrieve_FallsThroughEmptyIndex(t *testing.T) {
	repo := &mockRepo{
		annQueryFn: func(_ context.Context, indexName string, _ domain.Vector, _ domain.Filter, _ int) domain.RetrievalOutcome {
			if indexName == "ragdex-text-idx" {
				return domain.RetrievalOutcome{Kind: domain.OutcomeEmpty}
			}
			return domain.RetrievalOutcome{Kind: domain.OutcomeFound, Records: records("c")}
		},
	}

	recs, mode, err := New(repo, zap.NewNop()).Retrieve(
		context.Background(), domain.Vector{1, 0, 0}, domain.Filter{}, testIndexes, 50)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if mode != ModeANN || len(recs) != 1 || recs[0].ID != "c" {
		t.Errorf("mode=%q recs=%v, want ann [c]", mode, ids(recs))
	}
}

func TestRetrieve_AnnErrorFallsBackToScan(t *testing.T) {
	stored := records("x", "y", "z")
	repo := &mockRepo{
		annQueryFn: func(_ context.Context, _ string, _ domain.Vector, _ domain.Filter, _ int) domain.RetrievalOutcome {
			return domain.RetrievalOutcome{Kind: domain.OutcomeBackendError, Err: errors.New("index gone")}
		},
		scanAllFn: func(_ context.Context, _ domain.Filter) ([]domain.EmbeddingRecord, error) {
			return stored, nil
		},
	}

	recs, mode, err := New(repo, zap.NewNop()).Retrieve(
		context.Background(), domain.Vector{1, 0, 0}, domain.Filter{}, testIndexes, 50)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if mode != ModeScan {
		t.Errorf("mode = %q, want scan", mode)
	}
	// Degraded mode still surfaces the same stored records.
	got := ids(recs)
	want := []string{"x", "y", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestRetrieve_ScanPassesFilterThrough(t *testing.T) {
	filter := domain.Filter{Modality: domain.ModalityImage}
	repo := &mockRepo{
		scanAllFn: func(_ context.Context, got domain.Filter) ([]domain.EmbeddingRecord, error) {
			if got.Modality != domain.ModalityImage {
				t.Errorf("filter = %+v, want image modality", got)
			}
			return records("img"), nil
		},
	}

	_, _, err := New(repo, zap.NewNop()).Retrieve(
		context.Background(), domain.Vector{1, 0, 0}, filter, testIndexes, 50)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
}

func TestRetrieve_CapsScanAtCandidateK(t *testing.T) {
	repo := &mockRepo{
		scanAllFn: func(_ context.Context, _ domain.Filter) ([]domain.EmbeddingRecord, error) {
			return records("a", "b", "c", "d"), nil
		},
	}

	recs, _, err := New(repo, zap.NewNop()).Retrieve(
		context.Background(), domain.Vector{1, 0, 0}, domain.Filter{}, testIndexes, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d records, want candidateK=2", len(recs))
	}
}

func TestRetrieve_AllPathsFailed(t *testing.T) {
	repo := &mockRepo{
		annQueryFn: func(_ context.Context, _ string, _ domain.Vector, _ domain.Filter, _ int) domain.RetrievalOutcome {
			return domain.RetrievalOutcome{Kind: domain.OutcomeBackendError, Err: errors.New("down")}
		},
		scanAllFn: func(_ context.Context, _ domain.Filter) ([]domain.EmbeddingRecord, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, _, err := New(repo, zap.NewNop()).Retrieve(
		context.Background(), domain.Vector{1, 0, 0}, domain.Filter{}, testIndexes, 50)
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("err = %v, want domain.ErrRetrievalUnavailable", err)
	}
}

func TestRetrieve_EmptyIndexesAndFailedScanIsEmptyResult(t *testing.T) {
	repo := &mockRepo{
		scanAllFn: func(_ context.Context, _ domain.Filter) ([]domain.EmbeddingRecord, error) {
			return nil, errors.New("scan broke")
		},
	}

	recs, _, err := New(repo, zap.NewNop()).Retrieve(
		context.Background(), domain.Vector{1, 0, 0}, domain.Filter{}, testIndexes, 50)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records, want 0", len(recs))
	}
}
