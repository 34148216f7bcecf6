package domain

import (
	"context"
	"time"
)

// Embedding is a normalized embedding model output. Provider adapters convert
// whatever shape their backend returns into this type at the boundary.
type Embedding struct {
	Vector  Vector
	Dims    int
	ModelID string
	Latency time.Duration
}

// TextEmbedder vectorizes text.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (Embedding, error)
}

// ImageEmbedder vectorizes raw image bytes.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, data []byte) (Embedding, error)
}

// CrossModalEmbedder embeds text and images into one joint space, so a text
// query can be scored against image candidates.
type CrossModalEmbedder interface {
	TextEmbedder
	ImageEmbedder
}

// TokenUsage is the token accounting reported by an external model call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerationRequest is one call to the external generation model.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

// GenerationResult is the generation model's reply.
type GenerationResult struct {
	Text  string
	Usage TokenUsage
}

// Generator is the external generation model contract.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}
