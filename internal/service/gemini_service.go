package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/config"
)

// GeminiService generates embeddings through the Gemini API. Alternative
// provider; selected with EMBEDDING_PROVIDER=gemini.
type GeminiService struct {
	client     *genai.Client
	model      string
	timeout    time.Duration
	maxRetries int
}

func NewGeminiService(cfg *config.EmbeddingConfig) (*GeminiService, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiService{
		client:     client,
		model:      cfg.Model,
		timeout:    cfg.RequestTimeout,
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (s *GeminiService) ModelVersion() string {
	return s.model
}

func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text for embedding cannot be empty", apperror.ErrEmbeddingGeneration)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	var vec []float32
	op := func() error {
		result, err := s.client.Models.EmbedContent(timeoutCtx, s.model, content, nil)
		if err != nil {
			if !isRetryableError(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		vec, err = extractEmbedding(result)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxRetries)), timeoutCtx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, apperror.Classify(apperror.ErrEmbeddingGeneration, err)
	}
	return vec, nil
}

func extractEmbedding(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini: no embeddings returned")
	}
	vec := resp.Embeddings[0].Values
	if err := validateVector(vec); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return vec, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if apiErr, ok := err.(*genai.APIError); ok {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		case 400, 401, 403, 404:
			return false
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "context deadline exceeded") {
		return false
	}

	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") ||
		strings.Contains(msg, "EOF")
}
