package config

import "sync"

type MatchingConfig struct {
	// MinSimilarity prunes candidates below the cutoff before ranking.
	MinSimilarity float64

	// Rank score = SimilarityWeight*similarity + boosts. Weights live here so
	// tuning never requires touching matching code.
	SimilarityWeight float64
	LocationBoost    float64
	ServiceBoost     float64

	DefaultLimit int
	MaxLimit     int

	// AllowStale keeps content-hash-mismatched embeddings rankable (flagged
	// per match) instead of excluding them outright.
	AllowStale bool
}

var (
	matchingConfig *MatchingConfig
	matchingOnce   sync.Once
)

func LoadMatchingConfig() *MatchingConfig {
	matchingOnce.Do(func() {
		matchingConfig = &MatchingConfig{
			MinSimilarity:    envFloat("MATCH_MIN_SIMILARITY", 0.7),
			SimilarityWeight: envFloat("MATCH_SIMILARITY_WEIGHT", 1.0),
			LocationBoost:    envFloat("MATCH_LOCATION_BOOST", 0.05),
			ServiceBoost:     envFloat("MATCH_SERVICE_BOOST", 0.03),
			DefaultLimit:     envInt("MATCH_DEFAULT_LIMIT", 10),
			MaxLimit:         envInt("MATCH_MAX_LIMIT", 50),
			AllowStale:       envBool("MATCH_ALLOW_STALE", true),
		}
	})
	return matchingConfig
}
