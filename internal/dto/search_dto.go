package dto

import "github.com/gould-simon/ai-accounting-job-matching/internal/matching"

type SearchRequest struct {
	RawText     string            `json:"raw_text"`
	Filters     []matching.Filter `json:"filters"`
	K           int               `json:"k"`
	RequesterID string            `json:"requester_id"`
}

type MatchResult struct {
	JobID      int64   `json:"job_id"`
	JobTitle   string  `json:"job_title"`
	Seniority  string  `json:"seniority,omitempty"`
	Service    string  `json:"service,omitempty"`
	Location   string  `json:"location,omitempty"`
	Employment string  `json:"employment,omitempty"`
	Link       string  `json:"link,omitempty"`
	Similarity float64 `json:"similarity"`
	RankScore  float64 `json:"rank_score"`
	Rank       int     `json:"rank"`
	Stale      bool    `json:"stale"`
}

type SearchResponse struct {
	QueryID  string        `json:"query_id"`
	Degraded bool          `json:"degraded"`
	Results  []MatchResult `json:"results"`
}

type RefreshResponse struct {
	Watermark   string `json:"watermark"`
	Attempted   int    `json:"attempted"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	MarkedStale int    `json:"marked_stale"`
}

type MatchHistoryResponse struct {
	QueryID string        `json:"query_id"`
	Matches []MatchResult `json:"matches"`
}
