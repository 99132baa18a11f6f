package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/config"
	"github.com/gould-simon/ai-accounting-job-matching/internal/util"
)

// Provider is the external embedding function the cache fronts.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Stats are monotonic counters for observability.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Coalesced int64 `json:"coalesced"`
	Failures  int64 `json:"failures"`
}

// EmbeddingCache is a content-addressed cache over an embedding provider.
// Identical normalized text under the same model version hashes to the same
// key, so repeated content costs one provider call. Eviction never affects
// correctness, only cost: a lost entry is recomputed on the next miss.
type EmbeddingCache struct {
	provider Provider
	entries  *expirable.LRU[string, []float32]
	group    singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
	failures  atomic.Int64
}

func NewEmbeddingCache(provider Provider, cfg *config.EmbeddingConfig) *EmbeddingCache {
	return &EmbeddingCache{
		provider: provider,
		entries:  expirable.NewLRU[string, []float32](cfg.CacheMaxEntries, nil, cfg.CacheTTL),
	}
}

// GetOrCompute returns the embedding for text, computing it via the provider
// on a cache miss. Concurrent misses on the same key are coalesced into a
// single in-flight provider call; every waiter receives that call's result.
// Provider failures are never cached.
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, text, modelVersion string) ([]float32, error) {
	normalized := util.NormalizeText(text)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty text", apperror.ErrEmbeddingGeneration)
	}

	key := util.HashText(normalized) + ":" + modelVersion
	if vec, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return vec, nil
	}

	vec, err, shared := c.group.Do(key, func() (any, error) {
		// Double-check: another flight may have filled the entry between the
		// lookup above and acquiring the flight.
		if cached, ok := c.entries.Get(key); ok {
			return cached, nil
		}
		c.misses.Add(1)

		computed, err := c.provider.Embed(ctx, normalized)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, computed)
		return computed, nil
	})
	if shared {
		c.coalesced.Add(1)
	}
	if err != nil {
		c.failures.Add(1)
		if errors.Is(err, apperror.ErrTimeout) {
			return nil, err
		}
		return nil, apperror.Classify(apperror.ErrEmbeddingGeneration, err)
	}
	return vec.([]float32), nil
}

// Len reports the current entry count.
func (c *EmbeddingCache) Len() int {
	return c.entries.Len()
}

func (c *EmbeddingCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
		Failures:  c.failures.Load(),
	}
}
