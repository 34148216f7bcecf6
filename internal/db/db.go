// Package db defines the narrow backing-store contract the retrieval engine
// consumes: an ANN operator, a lexical (BM25) operator, and plain key reads
// for the exact full-scan fallback. The engine never assumes more than this.
package db

import (
	"context"
	"time"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// Store is the backing-store facade. Consumers depend on the narrow
// sub-interfaces, never on Store itself.
type Store interface {
	Pinger
	HashStore
	JSONStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds one key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash reads for the scan fallback and hash writes for
// ingestion collaborators.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// JSONStore provides JSON document reads (source entities) and writes
// (ingestion collaborators).
type JSONStore interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string) error
}

// Searcher provides the approximate (KNN) and lexical (BM25) query operators.
// Both may legitimately error or return empty when an index is absent; the
// retrieval layer owns the fallback policy.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
}

// Hash field names of stored embedding records. The FT schema, the KNN query
// grammar and the record codec must agree on these.
const (
	FieldVector    = "vec"
	FieldModality  = "modality"
	FieldModelID   = "model_id"
	FieldRefID     = "ref_id"
	FieldRefColl   = "ref_coll"
	FieldCreatedAt = "created_at"
	FieldContent   = "content"
	// MetaFieldPrefix prefixes flattened metadata keys in the hash.
	MetaFieldPrefix = "meta_"
	// scoreField is the FT.SEARCH KNN distance output alias.
	ScoreField = "__vec_score"
)

// KNNQuery is one ANN search against a named FT index.
type KNNQuery struct {
	IndexName    string
	Vector       domain.Vector
	K            int
	Filter       domain.Filter
	ReturnFields []string
}

// TextQuery is one BM25 search over the content TEXT field.
type TextQuery struct {
	IndexName string
	Query     string
	Filter    domain.Filter
	TopK      int
}

// SearchResult is the output of either search operator.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit: the record key, the backend's provisional
// score, and the returned hash fields.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
