// Package embedding is the data-access layer for stored embedding records. It
// exposes the ANN operator as an explicit outcome, the exact full-scan read
// path, lexical scoring, and the ingestion writes.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/kestrel-cloud/ragdex/internal/db"
	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// store is the consumer interface for embedding records (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the embedding record reads and writes over a db store.
type Repo struct {
	store       store
	keyPrefix   string
	maxScanKeys int
}

// New creates an embedding repository. maxScanKeys caps how many keys the
// full-scan read path will load.
func New(s store, keyPrefix string, maxScanKeys int) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, maxScanKeys: maxScanKeys}
}

// AnnQuery runs one KNN search against the named index. Backend failures are
// folded into the outcome, never returned as errors.
func (r *Repo) AnnQuery(
	ctx context.Context, indexName string, vector domain.Vector, filter domain.Filter, k int,
) domain.RetrievalOutcome {
	q := &db.KNNQuery{
		IndexName: indexName,
		Vector:    vector,
		K:         k,
		Filter:    filter,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return domain.RetrievalOutcome{
			Kind: domain.OutcomeBackendError,
			Err:  fmt.Errorf("knn %s: %w", indexName, err),
		}
	}
	if sr == nil || len(sr.Entries) == 0 {
		return domain.RetrievalOutcome{Kind: domain.OutcomeEmpty}
	}

	records := make([]domain.EmbeddingRecord, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		rec, ok := hashToRecord(r.keyPrefix, entry.Key, entry.Fields)
		if !ok {
			continue
		}
		// The backend pre-filter cannot express arbitrary metadata keys, so
		// the full filter is re-applied here. Both paths must agree.
		if !filter.Matches(rec) {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return domain.RetrievalOutcome{Kind: domain.OutcomeEmpty}
	}

	return domain.RetrievalOutcome{Kind: domain.OutcomeFound, Records: records}
}

// ScanAll loads every stored embedding record matching the filter via plain
// key iteration. This is the exact degraded-mode read path: no index involved.
func (r *Repo) ScanAll(ctx context.Context, filter domain.Filter) ([]domain.EmbeddingRecord, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"emb:*")
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	if len(keys) > r.maxScanKeys {
		keys = keys[:r.maxScanKeys]
	}
	if len(keys) == 0 {
		return nil, nil
	}

	records := make([]domain.EmbeddingRecord, 0, len(keys))
	for start := 0; start < len(keys); start += scanBatchSize {
		end := min(start+scanBatchSize, len(keys))
		batch := keys[start:end]

		fieldMaps, err := r.store.HGetAllMulti(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("load embeddings: %w", err)
		}
		for i, fields := range fieldMaps {
			rec, ok := hashToRecord(r.keyPrefix, batch[i], fields)
			if !ok {
				continue
			}
			if !filter.Matches(rec) {
				continue
			}
			records = append(records, rec)
		}
	}

	return records, nil
}

// scanBatchSize bounds one pipelined HGETALL round trip.
const scanBatchSize = 200

// LexicalScores runs a BM25 query over the content field of the named index
// and returns scores keyed by record ID. A missing or text-less index yields
// an empty map, not an error: the lexical signal is best-effort.
func (r *Repo) LexicalScores(
	ctx context.Context, indexName, query string, filter domain.Filter, topK int,
) (map[string]float64, error) {
	q := &db.TextQuery{
		IndexName: indexName,
		Query:     query,
		Filter:    filter,
		TopK:      topK,
	}

	sr, err := r.store.SearchBM25(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return map[string]float64{}, nil
		}
		return nil, fmt.Errorf("bm25 %s: %w", indexName, err)
	}
	if sr == nil {
		return map[string]float64{}, nil
	}

	scores := make(map[string]float64, len(sr.Entries))
	for _, entry := range sr.Entries {
		if id, ok := idFromKey(r.keyPrefix, entry.Key); ok {
			scores[id] = entry.Score
		}
	}
	return scores, nil
}

// Get returns one stored embedding record by modality and ID.
func (r *Repo) Get(ctx context.Context, modality domain.Modality, id string) (domain.EmbeddingRecord, error) {
	key := recordKey(r.keyPrefix, modality, id)

	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.EmbeddingRecord{}, domain.ErrNotFound
		}
		return domain.EmbeddingRecord{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return domain.EmbeddingRecord{}, domain.ErrNotFound
	}

	rec, ok := hashToRecord(r.keyPrefix, key, fields)
	if !ok {
		return domain.EmbeddingRecord{}, fmt.Errorf("record %s: malformed fields", key)
	}
	return rec, nil
}

// Put writes one embedding record.
func (r *Repo) Put(ctx context.Context, rec domain.EmbeddingRecord) error {
	if err := r.store.HSet(ctx, recordKey(r.keyPrefix, rec.Modality, rec.ID), recordToHash(rec)); err != nil {
		return fmt.Errorf("put embedding %s: %w", rec.ID, err)
	}
	return nil
}

// PutMulti writes a batch of embedding records in one pipelined round trip.
func (r *Repo) PutMulti(ctx context.Context, recs []domain.EmbeddingRecord) error {
	if len(recs) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, db.HashSetItem{
			Key:    recordKey(r.keyPrefix, rec.Modality, rec.ID),
			Fields: recordToHash(rec),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("put embeddings: %w", err)
	}
	return nil
}
