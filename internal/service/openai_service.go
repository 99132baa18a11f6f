package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/config"
)

// OpenAIService calls the OpenAI embeddings REST endpoint. This is the
// default provider; the catalog's embeddings were originally generated with
// text-embedding-ada-002 at 1536 dimensions.
type OpenAIService struct {
	client     *resty.Client
	model      string
	timeout    time.Duration
	maxRetries int
}

func NewOpenAIService(cfg *config.EmbeddingConfig) *OpenAIService {
	client := resty.New().
		SetBaseURL(cfg.OpenAIBaseURL).
		SetAuthToken(cfg.OpenAIAPIKey).
		SetHeader("Content-Type", "application/json")

	return &OpenAIService{
		client:     client,
		model:      cfg.Model,
		timeout:    cfg.RequestTimeout,
		maxRetries: cfg.MaxRetries,
	}
}

func (s *OpenAIService) ModelVersion() string {
	return s.model
}

func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var vec []float32
	op := func() error {
		resp, err := s.client.R().
			SetContext(timeoutCtx).
			SetBody(map[string]any{
				"model": s.model,
				"input": text,
			}).
			Post("/embeddings")
		if err != nil {
			// Transport-level failure, worth retrying within the deadline.
			return err
		}

		if resp.IsError() {
			msg := gjson.GetBytes(resp.Body(), "error.message").String()
			err := fmt.Errorf("openai: status %d: %s", resp.StatusCode(), msg)
			if retryableStatus(resp.StatusCode()) {
				return err
			}
			return backoff.Permanent(err)
		}

		values := gjson.GetBytes(resp.Body(), "data.0.embedding").Array()
		if len(values) == 0 {
			return backoff.Permanent(fmt.Errorf("openai: no embedding in response"))
		}
		vec = make([]float32, len(values))
		for i, v := range values {
			vec[i] = float32(v.Float())
		}
		if err := validateVector(vec); err != nil {
			return backoff.Permanent(fmt.Errorf("openai: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxRetries)), timeoutCtx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, apperror.Classify(apperror.ErrEmbeddingGeneration, err)
	}
	return vec, nil
}

func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
