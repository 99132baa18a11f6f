package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/matching"
	"github.com/gould-simon/ai-accounting-job-matching/internal/model"
)

const candidateColumns = `j.id AS job_id, je.stale, j.job_title, j.seniority, j.service,
	j.industry, j.location, j.employment, j.salary_min, j.salary_max, j.link`

// EmbeddingRepository is the vector store: pgvector-indexed embeddings keyed
// by job id, plus the refresh pipeline's persisted checkpoint.
type EmbeddingRepository struct {
	db        *gorm.DB
	dimension int
}

func NewEmbeddingRepository(db *gorm.DB, dimension int) *EmbeddingRepository {
	return &EmbeddingRepository{db: db, dimension: dimension}
}

// Upsert atomically replaces any prior embedding for jobID. ON CONFLICT keeps
// job_id unique under concurrent writers; the later write wins.
func (r *EmbeddingRepository) Upsert(ctx context.Context, jobID int64, vec []float32, contentHash, modelVersion string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if len(vec) != r.dimension {
		return fmt.Errorf("%w: got %d, store uses %d", apperror.ErrDimensionMismatch, len(vec), r.dimension)
	}

	now := time.Now()
	emb := model.JobEmbedding{
		JobID:        jobID,
		Embedding:    pgvector.NewVector(vec),
		ContentHash:  contentHash,
		ModelVersion: modelVersion,
		Stale:        false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "content_hash", "model_version", "stale", "updated_at"}),
	}).Create(&emb).Error
	return apperror.Classify(apperror.ErrVectorStoreUnavailable, err)
}

// QueryNearest returns the top-k jobs by cosine similarity to vec among rows
// matching the filters. Similarity is 1 - cosine distance, so higher is more
// similar. Ties break by job id ascending for deterministic ordering. An
// empty store yields an empty slice, not an error.
func (r *EmbeddingRepository) QueryNearest(ctx context.Context, vec []float32, k int, filters []matching.Filter, modelVersion string, includeStale bool) ([]matching.Candidate, error) {
	if len(vec) != r.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, store uses %d", apperror.ErrDimensionMismatch, len(vec), r.dimension)
	}

	conds, condArgs, err := matching.Compile(filters)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + candidateColumns + `,
	1 - (je.embedding <=> ?) AS similarity
	FROM job_embeddings je
	JOIN jobs j ON j.id = je.job_id
	WHERE j.is_indexed = true AND je.model_version = ?`)
	args := []any{pgvector.NewVector(vec), modelVersion}

	if !includeStale {
		sb.WriteString(" AND je.stale = false")
	}
	for i, cond := range conds {
		sb.WriteString(" AND " + cond)
		args = append(args, condArgs[i])
	}
	sb.WriteString(" ORDER BY similarity DESC, j.id ASC LIMIT ?")
	args = append(args, k)

	return r.scanCandidates(ctx, sb.String(), args)
}

// ListByFilters serves the filters-only search path: candidates come from the
// same embedded population but similarity plays no part, so every row carries
// a similarity of zero and ordering falls back to job id.
func (r *EmbeddingRepository) ListByFilters(ctx context.Context, filters []matching.Filter, limit int, modelVersion string, includeStale bool) ([]matching.Candidate, error) {
	conds, condArgs, err := matching.Compile(filters)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + candidateColumns + `,
	0 AS similarity
	FROM job_embeddings je
	JOIN jobs j ON j.id = je.job_id
	WHERE j.is_indexed = true AND je.model_version = ?`)
	args := []any{modelVersion}

	if !includeStale {
		sb.WriteString(" AND je.stale = false")
	}
	for i, cond := range conds {
		sb.WriteString(" AND " + cond)
		args = append(args, condArgs[i])
	}
	sb.WriteString(" ORDER BY j.id ASC LIMIT ?")
	args = append(args, limit)

	return r.scanCandidates(ctx, sb.String(), args)
}

type candidateRow struct {
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

func (r *EmbeddingRepository) scanCandidates(ctx context.Context, sql string, args []any) ([]matching.Candidate, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []candidateRow
	if err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, apperror.Classify(apperror.ErrVectorStoreUnavailable, err)
	}

	cands := make([]matching.Candidate, 0, len(rows))
	for _, row := range rows {
		cands = append(cands, matching.Candidate{
			JobID:      row.JobID,
			Similarity: row.Similarity,
			Stale:      row.Stale,
			JobTitle:   row.JobTitle,
			Seniority:  row.Seniority,
			Service:    row.Service,
			Industry:   row.Industry,
			Location:   row.Location,
			Employment: row.Employment,
			SalaryMin:  row.SalaryMin,
			SalaryMax:  row.SalaryMax,
			Link:       row.Link,
		})
	}
	return cands, nil
}

// GetByJobID returns the embedding row for jobID, or (nil, nil) when absent.
func (r *EmbeddingRepository) GetByJobID(ctx context.Context, jobID int64) (*model.JobEmbedding, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var emb model.JobEmbedding
	err := r.db.WithContext(ctx).First(&emb, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Classify(apperror.ErrVectorStoreUnavailable, err)
	}
	return &emb, nil
}

// MarkStale flags an embedding without deleting it. Used when the source job
// leaves the catalog or its content hash no longer matches.
func (r *EmbeddingRepository) MarkStale(ctx context.Context, jobID int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).
		Model(&model.JobEmbedding{}).
		Where("job_id = ?", jobID).
		Updates(map[string]any{"stale": true, "updated_at": time.Now()}).Error
	return apperror.Classify(apperror.ErrVectorStoreUnavailable, err)
}

// StaleJobIDs lists job ids whose embeddings are flagged stale, for the
// refresh pipeline's candidate set.
func (r *EmbeddingRepository) StaleJobIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.JobEmbedding{}).
		Where("stale = ?", true).
		Order("job_id ASC").
		Pluck("job_id", &ids).Error
	if err != nil {
		return nil, apperror.Classify(apperror.ErrVectorStoreUnavailable, err)
	}
	return ids, nil
}

// LoadCheckpoint returns the persisted watermark; the zero time means no
// reconciliation has completed yet.
func (r *EmbeddingRepository) LoadCheckpoint(ctx context.Context) (time.Time, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var cp model.RefreshCheckpoint
	err := r.db.WithContext(ctx).First(&cp, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, apperror.Classify(apperror.ErrVectorStoreUnavailable, err)
	}
	return cp.Watermark, nil
}

func (r *EmbeddingRepository) SaveCheckpoint(ctx context.Context, watermark time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cp := model.RefreshCheckpoint{ID: 1, Watermark: watermark, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"watermark", "updated_at"}),
	}).Create(&cp).Error
	return apperror.Classify(apperror.ErrVectorStoreUnavailable, err)
}
