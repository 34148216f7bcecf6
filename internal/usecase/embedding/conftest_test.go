package embedding

import (
	"context"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// mockEmbedder implements domain.CrossModalEmbedder for tests.
type mockEmbedder struct {
	embedTextFn  func(ctx context.Context, text string) (domain.Embedding, error)
	embedImageFn func(ctx context.Context, data []byte) (domain.Embedding, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) (domain.Embedding, error) {
	if m.embedTextFn != nil {
		return m.embedTextFn(ctx, text)
	}
	return validEmbedding(), nil
}

func (m *mockEmbedder) EmbedImage(ctx context.Context, data []byte) (domain.Embedding, error) {
	if m.embedImageFn != nil {
		return m.embedImageFn(ctx, data)
	}
	return validEmbedding(), nil
}

func validEmbedding() domain.Embedding {
	return domain.Embedding{
		Vector:  domain.Vector{0.5, -0.3, 0.2},
		Dims:    3,
		ModelID: "test-model",
	}
}
