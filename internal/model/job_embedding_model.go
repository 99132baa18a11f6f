package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// JobEmbedding owns the vector for one catalog job. At most one live row per
// job_id, enforced by the unique index and upsert-on-conflict writes. Rows are
// written only by the refresh pipeline; the match engine reads them.
type JobEmbedding struct {
	ID           int64           `gorm:"primaryKey" json:"id"`
	JobID        int64           `gorm:"uniqueIndex" json:"job_id"`
	Embedding    pgvector.Vector `gorm:"type:vector(1536)" json:"embedding"`
	ContentHash  string          `gorm:"type:varchar(64);index" json:"content_hash"`
	ModelVersion string          `gorm:"type:varchar(100)" json:"model_version"`
	// Stale marks an embedding whose source job changed or left the catalog.
	// Stale rows are never deleted; they remain as an audit trail and as an
	// optional ranking fallback during provider outages.
	Stale     bool      `gorm:"index" json:"stale"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *JobEmbedding) TableName() string {
	return "job_embeddings"
}

// RefreshCheckpoint is the persisted reconciliation cursor: the refresh
// pipeline has processed every catalog change up to Watermark. Single row.
type RefreshCheckpoint struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Watermark time.Time `json:"watermark"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *RefreshCheckpoint) TableName() string {
	return "refresh_checkpoints"
}
