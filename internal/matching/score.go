package matching

import (
	"sort"
	"strings"
)

// Candidate is a job surfaced by the vector store, carrying the metadata the
// ranker and the response need.
type Candidate struct {
	JobID      int64
	Similarity float64
	Stale      bool
	JobTitle   string
	Seniority  string
	Service    string
	Industry   string
	Location   string
	Employment string
	SalaryMin  int64
	SalaryMax  int64
	Link       string
}

func (c Candidate) fieldValue(field string) string {
	switch field {
	case "location":
		return c.Location
	case "service":
		return c.Service
	case "seniority":
		return c.Seniority
	case "employment":
		return c.Employment
	case "industry":
		return c.Industry
	}
	return ""
}

// Ranked is a candidate with its final rank score.
type Ranked struct {
	Candidate
	RankScore float64
}

// Ranker combines vector similarity with structured boost factors. All
// weights come from configuration; the code carries no tuning constants.
type Ranker struct {
	SimilarityWeight float64
	LocationBoost    float64
	ServiceBoost     float64
	MinSimilarity    float64
}

// Rank prunes, scores, orders, and truncates candidates.
//
// applyThreshold is false on the filter-only path, where similarity is a
// uniform zero and pruning on it would empty the result.
// Ordering is deterministic: rank score descending, then job id ascending.
func (r *Ranker) Rank(cands []Candidate, filters []Filter, k int, applyThreshold bool) []Ranked {
	ranked := make([]Ranked, 0, len(cands))
	for _, c := range cands {
		if applyThreshold && c.Similarity < r.MinSimilarity {
			continue
		}
		score := r.SimilarityWeight * c.Similarity
		if exactFilterMatch(filters, "location", c.Location) {
			score += r.LocationBoost
		}
		if exactFilterMatch(filters, "service", c.Service) {
			score += r.ServiceBoost
		}
		ranked = append(ranked, Ranked{Candidate: c, RankScore: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RankScore != ranked[j].RankScore {
			return ranked[i].RankScore > ranked[j].RankScore
		}
		return ranked[i].JobID < ranked[j].JobID
	})

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// exactFilterMatch reports whether any eq/in filter on field matches the
// job's value exactly (case-insensitive, full string). The SQL layer passes
// substring matches through; the boost rewards the exact ones.
func exactFilterMatch(filters []Filter, field, value string) bool {
	if value == "" {
		return false
	}
	for _, f := range filters {
		if f.Field != field {
			continue
		}
		switch f.Op {
		case OpEq:
			if strings.EqualFold(f.Value, value) {
				return true
			}
		case OpIn:
			for _, v := range f.Values {
				if strings.EqualFold(v, value) {
					return true
				}
			}
		}
	}
	return false
}
