package model

import (
	"time"

	"github.com/google/uuid"
)

// SearchQuery records one search request. Immutable once created, retained
// for audit and tuning.
type SearchQuery struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RawText     string    `gorm:"type:text" json:"raw_text"`
	Filters     string    `gorm:"type:jsonb" json:"filters"`
	RequesterID string    `gorm:"type:varchar(100);index" json:"requester_id"`
	Degraded    bool      `json:"degraded"`
	IssuedAt    time.Time `json:"issued_at"`
}

func (q *SearchQuery) TableName() string {
	return "search_queries"
}

// JobMatch is one ranked result of a SearchQuery. Append-only.
type JobMatch struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QueryID    uuid.UUID `gorm:"type:uuid;index" json:"query_id"`
	JobID      int64     `gorm:"index" json:"job_id"`
	Similarity float64   `json:"similarity"`
	RankScore  float64   `json:"rank_score"`
	Rank       int       `json:"rank"`
	Stale      bool      `json:"stale"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m *JobMatch) TableName() string {
	return "job_matches"
}
