package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// Instrumented wraps a cross-modal provider with logging. Transport metrics
// (requests, duration, errors) are recorded in transport/openai; this layer
// owns request-level logging only.
type Instrumented struct {
	inner    domain.CrossModalEmbedder
	provider string
	logger   *zap.Logger
}

// NewInstrumented wraps a provider with observability.
func NewInstrumented(inner domain.CrossModalEmbedder, provider string, logger *zap.Logger) *Instrumented {
	return &Instrumented{inner: inner, provider: provider, logger: logger}
}

// EmbedText delegates to the inner provider and logs the outcome.
func (p *Instrumented) EmbedText(ctx context.Context, text string) (domain.Embedding, error) {
	start := time.Now()
	emb, err := p.inner.EmbedText(ctx, text)
	return p.observe("text", start, len(text), emb, err)
}

// EmbedImage delegates to the inner provider and logs the outcome.
func (p *Instrumented) EmbedImage(ctx context.Context, data []byte) (domain.Embedding, error) {
	start := time.Now()
	emb, err := p.inner.EmbedImage(ctx, data)
	return p.observe("image", start, len(data), emb, err)
}

func (p *Instrumented) observe(
	modality string, start time.Time, inputLen int, emb domain.Embedding, err error,
) (domain.Embedding, error) {
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("modality", modality),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Embedding{}, fmt.Errorf("embed %s: %w", modality, err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("modality", modality),
		zap.Duration("duration", duration),
		zap.Int("input_len", inputLen),
		zap.Int("dimensions", emb.Dims),
	)
	return emb, nil
}
