// Package embedding owns the provider lifecycle policy: lazy idempotent
// initialization, the degenerate-output guard, and observability decoration.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// Factory builds the underlying embedding provider. It is invoked at most
// once per Lazy lifetime, on first use.
type Factory func(ctx context.Context) (domain.CrossModalEmbedder, error)

// Lazy defers provider construction to the first embed call. Concurrent first
// callers share one in-flight initialization; a failed initialization latches
// until Reset, so a broken model endpoint fails fast instead of being
// re-probed on every request. Cancellation of the initiating request is not
// latched: the next caller retries.
type Lazy struct {
	factory Factory

	group singleflight.Group

	mu      sync.RWMutex
	inst    domain.CrossModalEmbedder
	initErr error
}

// NewLazy creates a lazily initialized provider.
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// EmbedText implements domain.TextEmbedder.
func (l *Lazy) EmbedText(ctx context.Context, text string) (domain.Embedding, error) {
	p, err := l.provider(ctx)
	if err != nil {
		return domain.Embedding{}, err
	}

	emb, err := p.EmbedText(ctx, text)
	if err != nil {
		return domain.Embedding{}, err //nolint:wrapcheck // provider errors carry context
	}
	return checkDegenerate(emb)
}

// EmbedImage implements domain.ImageEmbedder.
func (l *Lazy) EmbedImage(ctx context.Context, data []byte) (domain.Embedding, error) {
	p, err := l.provider(ctx)
	if err != nil {
		return domain.Embedding{}, err
	}

	emb, err := p.EmbedImage(ctx, data)
	if err != nil {
		return domain.Embedding{}, err //nolint:wrapcheck // provider errors carry context
	}
	return checkDegenerate(emb)
}

// Reset clears a latched initialization failure so the next call retries.
func (l *Lazy) Reset() {
	l.mu.Lock()
	l.inst = nil
	l.initErr = nil
	l.mu.Unlock()
}

// provider returns the initialized instance, initializing on first use.
func (l *Lazy) provider(ctx context.Context) (domain.CrossModalEmbedder, error) {
	l.mu.RLock()
	inst, initErr := l.inst, l.initErr
	l.mu.RUnlock()

	if inst != nil {
		return inst, nil
	}
	if initErr != nil {
		return nil, initErr
	}

	v, err, _ := l.group.Do("init", func() (interface{}, error) {
		// Re-check under the lock: a previous flight may have finished
		// between the read above and this call.
		l.mu.RLock()
		inst, initErr := l.inst, l.initErr
		l.mu.RUnlock()
		if inst != nil {
			return inst, nil
		}
		if initErr != nil {
			return nil, initErr
		}

		built, err := l.factory(ctx)

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			// A canceled or expired caller deadline is that request's
			// failure, not the provider's. Latching it would leave every
			// later caller stuck behind a 503 until restart.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("provider init interrupted: %w", err)
			}
			l.initErr = fmt.Errorf("provider init: %w: %w", err, domain.ErrModelUnavailable)
			return nil, l.initErr
		}
		l.inst = built
		return built, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // latched init error already wrapped
	}

	return v.(domain.CrossModalEmbedder), nil
}

// checkDegenerate rejects near-zero vectors from a broken inference path.
func checkDegenerate(emb domain.Embedding) (domain.Embedding, error) {
	if emb.Vector.IsDegenerate() {
		return domain.Embedding{}, fmt.Errorf("model %s: %w", emb.ModelID, domain.ErrDegenerateEmbedding)
	}
	return emb, nil
}

// TextOnly adapts a text-only embedder to the cross-modal contract. Image
// input is a routing bug, not a provider failure.
type TextOnly struct {
	domain.TextEmbedder
}

// EmbedImage always rejects: a text encoder has no vision tower.
func (TextOnly) EmbedImage(context.Context, []byte) (domain.Embedding, error) {
	return domain.Embedding{}, fmt.Errorf("text encoder cannot embed images: %w", domain.ErrInvalidInput)
}
