package service

import (
	"context"
	"fmt"
	"math"

	"github.com/gould-simon/ai-accounting-job-matching/internal/config"
)

// EmbeddingProvider is the engine's view of the external embedding function.
// Rate and size limits are the adapter's concern; callers only see success or
// failure. ModelVersion identifies the embedding function and is recorded on
// every row the vector store holds.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelVersion() string
}

// NewProvider selects the configured embedding backend.
func NewProvider(cfg *config.EmbeddingConfig) (EmbeddingProvider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIService(cfg), nil
	case config.ProviderGemini:
		return NewGeminiService(cfg)
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

// validateVector rejects empty vectors and vectors containing NaN or Inf
// values. A partial or corrupt vector must never reach the cache or store.
func validateVector(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("invalid embedding value at index %d: %v", i, v)
		}
	}
	return nil
}
