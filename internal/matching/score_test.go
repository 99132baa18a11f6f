package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRanker() *Ranker {
	return &Ranker{
		SimilarityWeight: 1.0,
		LocationBoost:    0.05,
		ServiceBoost:     0.03,
		MinSimilarity:    0.7,
	}
}

func TestRankOrdersBySimilarity(t *testing.T) {
	r := newTestRanker()
	cands := []Candidate{
		{JobID: 2, Similarity: 0.92},
		{JobID: 1, Similarity: 0.97},
		{JobID: 3, Similarity: 0.85},
	}

	ranked := r.Rank(cands, nil, 10, true)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(1), ranked[0].JobID)
	assert.Equal(t, int64(2), ranked[1].JobID)
	assert.Equal(t, int64(3), ranked[2].JobID)
}

func TestRankPrunesBelowThreshold(t *testing.T) {
	r := newTestRanker()
	cands := []Candidate{
		{JobID: 1, Similarity: 0.95},
		{JobID: 2, Similarity: 0.69},
		{JobID: 3, Similarity: 0.70},
	}

	ranked := r.Rank(cands, nil, 10, true)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(1), ranked[0].JobID)
	assert.Equal(t, int64(3), ranked[1].JobID)
}

func TestRankSkipsThresholdOnFilterOnlyPath(t *testing.T) {
	r := newTestRanker()
	cands := []Candidate{
		{JobID: 1, Similarity: 0},
		{JobID: 2, Similarity: 0},
	}

	ranked := r.Rank(cands, nil, 10, false)
	assert.Len(t, ranked, 2)
}

func TestRankTruncatesToK(t *testing.T) {
	r := newTestRanker()
	var cands []Candidate
	for i := 1; i <= 30; i++ {
		cands = append(cands, Candidate{JobID: int64(i), Similarity: 0.9})
	}

	ranked := r.Rank(cands, nil, 5, true)
	assert.Len(t, ranked, 5)
}

func TestRankExactLocationAndServiceBoost(t *testing.T) {
	r := newTestRanker()
	filters := []Filter{
		{Field: "location", Op: OpEq, Value: "London"},
		{Field: "service", Op: OpIn, Values: []string{"Audit"}},
	}
	cands := []Candidate{
		// Same similarity; only job 2 matches exactly on both fields.
		{JobID: 1, Similarity: 0.9, Location: "Greater London", Service: "Advisory"},
		{JobID: 2, Similarity: 0.9, Location: "london", Service: "AUDIT"},
	}

	ranked := r.Rank(cands, filters, 10, true)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(2), ranked[0].JobID)
	assert.InDelta(t, 0.98, ranked[0].RankScore, 1e-9)
	assert.InDelta(t, 0.90, ranked[1].RankScore, 1e-9)
}

func TestRankTieBreaksOnJobID(t *testing.T) {
	r := newTestRanker()
	cands := []Candidate{
		{JobID: 9, Similarity: 0.9},
		{JobID: 3, Similarity: 0.9},
		{JobID: 5, Similarity: 0.9},
	}

	ranked := r.Rank(cands, nil, 10, true)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(3), ranked[0].JobID)
	assert.Equal(t, int64(5), ranked[1].JobID)
	assert.Equal(t, int64(9), ranked[2].JobID)
}

func TestRankEmptyCandidates(t *testing.T) {
	r := newTestRanker()
	ranked := r.Rank(nil, nil, 10, true)
	assert.Empty(t, ranked)
}
