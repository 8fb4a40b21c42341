// Package embedder provides embedding providers for chunk vectorization.
package embedder

import (
	"context"
	"fmt"

	"github.com/gcpark/coderag/internal/config"
)

// Provider generates vector embeddings for text.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Embed generates embeddings for the given texts, one vector per text,
	// in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensions.
	Dimensions() int

	// MaxBatchSize returns the maximum batch size.
	MaxBatchSize() int

	// Available checks that the provider is reachable and usable.
	Available(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// New creates an embedding provider from configuration.
func New(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(OpenAIConfig{
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.Endpoint,
			BatchSize: cfg.BatchSize,
		}), nil
	case "ollama":
		return NewOllama(OllamaConfig{
			Model:     cfg.Model,
			Endpoint:  cfg.Endpoint,
			BatchSize: cfg.BatchSize,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
