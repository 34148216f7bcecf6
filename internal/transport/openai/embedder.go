// Package openai adapts OpenAI-compatible model endpoints (embedding serving,
// CLIP serving, generation) to the domain contracts.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kestrel-cloud/ragdex/internal/domain"
	"github.com/kestrel-cloud/ragdex/internal/metrics"
)

// Embedder is a text embedding provider backed by an OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	provider   string
	logger     *zap.Logger
}

// Config holds one embedding provider's settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	// Provider is the metrics label for this endpoint (e.g. "text", "clip").
	Provider string
	Logger   *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible text embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
}

// EmbedText implements domain.TextEmbedder.
func (e *Embedder) EmbedText(ctx context.Context, text string) (domain.Embedding, error) {
	return embedInput(ctx, e.client, e.model, e.dimensions, e.provider, string(domain.ModalityText), text)
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// embedInput performs one embeddings call and normalizes the response.
func embedInput(
	ctx context.Context, client *openai.Client, model openai.EmbeddingModel,
	dimensions int, provider, modality, input string,
) (domain.Embedding, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{input},
		Model:          model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if dimensions > 0 {
		req.Dimensions = dimensions
	}

	start := time.Now()
	resp, err := client.CreateEmbeddings(ctx, req)
	latency := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, string(model), modality, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, string(model), "api_error").Inc()
		return domain.Embedding{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, string(model), modality, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, string(model), "empty_response").Inc()
		return domain.Embedding{}, fmt.Errorf("empty embedding response: %w", domain.ErrModelUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, string(model), modality, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, string(model), modality).Observe(latency.Seconds())

	vec := resp.Data[0].Embedding
	return domain.Embedding{
		Vector:  domain.Vector(vec),
		Dims:    len(vec),
		ModelID: string(model),
		Latency: latency,
	}, nil
}

// parseAPIError extracts a human-readable error from the API response. All
// errors are wrapped with domain.ErrModelUnavailable for correct 503 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrModelUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
