package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// CLIPEmbedder embeds text and images into one joint space via an
// OpenAI-compatible CLIP serving endpoint. Image bytes are submitted as a
// base64 data URI, the convention CLIP serving layers accept on the
// embeddings input.
type CLIPEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	provider   string
	logger     *zap.Logger
}

// NewCLIPEmbedder creates a CLIP-family cross-modal embedding provider.
func NewCLIPEmbedder(cfg *Config) *CLIPEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &CLIPEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
}

// EmbedText implements domain.TextEmbedder with the CLIP text tower.
func (e *CLIPEmbedder) EmbedText(ctx context.Context, text string) (domain.Embedding, error) {
	return embedInput(ctx, e.client, e.model, e.dimensions, e.provider, string(domain.ModalityText), text)
}

// EmbedImage implements domain.ImageEmbedder with the CLIP vision tower.
func (e *CLIPEmbedder) EmbedImage(ctx context.Context, data []byte) (domain.Embedding, error) {
	input := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
	return embedInput(ctx, e.client, e.model, e.dimensions, e.provider, string(domain.ModalityImage), input)
}

// HealthCheck verifies the endpoint is reachable and authenticated.
func (e *CLIPEmbedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
