package config

import (
	"os"
	"sync"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type EmbeddingConfig struct {
	// Provider selects the embedding backend: "openai" or "gemini".
	Provider string
	// Model doubles as the model_version recorded on every embedding row.
	Model          string
	Dimension      int
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	GeminiAPIKey   string
	RequestTimeout time.Duration
	MaxRetries     int

	// Cache bounds. Losing cache entries is always safe, only costly.
	CacheMaxEntries int
	CacheTTL        time.Duration
}

var (
	embeddingConfig *EmbeddingConfig
	embeddingOnce   sync.Once
)

func LoadEmbeddingConfig() *EmbeddingConfig {
	embeddingOnce.Do(func() {
		embeddingConfig = &EmbeddingConfig{
			Provider:        envString("EMBEDDING_PROVIDER", ProviderOpenAI),
			Model:           envString("EMBEDDING_MODEL", "text-embedding-ada-002"),
			Dimension:       envInt("EMBEDDING_DIMENSION", 1536),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:   envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
			RequestTimeout:  envDuration("EMBEDDING_REQUEST_TIMEOUT", 30*time.Second),
			MaxRetries:      envInt("EMBEDDING_MAX_RETRIES", 3),
			CacheMaxEntries: envInt("EMBEDDING_CACHE_MAX_ENTRIES", 10000),
			CacheTTL:        envDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		}
	})
	return embeddingConfig
}
