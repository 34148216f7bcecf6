// Package retrieval owns the candidate retrieval policy: ordered ANN index
// attempts with an exact full-scan fallback as degraded mode.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/domain"
	"github.com/kestrel-cloud/ragdex/internal/metrics"
)

// Repository is the embedding record access the retriever consumes.
type Repository interface {
	AnnQuery(ctx context.Context, indexName string, vector domain.Vector, filter domain.Filter, k int) domain.RetrievalOutcome
	ScanAll(ctx context.Context, filter domain.Filter) ([]domain.EmbeddingRecord, error)
}

// Mode reports which read path produced the candidates.
type Mode string

const (
	// ModeANN means an index answered the query.
	ModeANN Mode = "ann"
	// ModeScan means the degraded full-scan path answered the query.
	ModeScan Mode = "scan"
)

// Retriever fetches candidate records for a query vector.
type Retriever struct {
	repo   Repository
	logger *zap.Logger
}

// New creates a candidate retriever.
func New(repo Repository, logger *zap.Logger) *Retriever {
	return &Retriever{repo: repo, logger: logger}
}

// Retrieve tries each index in priority order and falls back to a full
// filtered scan when no index yields candidates. Only when every index
// attempt errored and the scan also fails does retrieval itself fail.
func (r *Retriever) Retrieve(
	ctx context.Context, vector domain.Vector, filter domain.Filter,
	indexes []string, candidateK int,
) ([]domain.EmbeddingRecord, Mode, error) {
	start := time.Now()

	annErrored := false
	for _, indexName := range indexes {
		out := r.repo.AnnQuery(ctx, indexName, vector, filter, candidateK)
		switch out.Kind {
		case domain.OutcomeFound:
			metrics.RetrievalRequestsTotal.WithLabelValues(string(ModeANN), "success").Inc()
			metrics.RetrievalDuration.WithLabelValues(string(ModeANN)).Observe(time.Since(start).Seconds())
			return out.Records, ModeANN, nil
		case domain.OutcomeEmpty:
			continue
		case domain.OutcomeBackendError:
			annErrored = true
			r.logger.Warn("ANN index attempt failed",
				zap.String("index", indexName),
				zap.Error(out.Err),
			)
		}
	}

	reason := "ann_empty"
	if annErrored {
		reason = "ann_error"
	}
	metrics.RetrievalFallbacksTotal.WithLabelValues(reason).Inc()
	r.logger.Warn("Falling back to full scan, retrieval degraded",
		zap.String("reason", reason),
		zap.Strings("indexes", indexes),
	)

	records, err := r.repo.ScanAll(ctx, filter)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(string(ModeScan), "error").Inc()
		if annErrored {
			return nil, ModeScan, fmt.Errorf("scan fallback: %w: %w", err, domain.ErrRetrievalUnavailable)
		}
		// The indexes answered (empty) and only the redundant scan failed.
		return nil, ModeANN, nil
	}

	if len(records) > candidateK {
		records = records[:candidateK]
	}

	metrics.RetrievalRequestsTotal.WithLabelValues(string(ModeScan), "success").Inc()
	metrics.RetrievalDuration.WithLabelValues(string(ModeScan)).Observe(time.Since(start).Seconds())
	return records, ModeScan, nil
}
