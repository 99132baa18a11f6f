package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gould-simon/ai-accounting-job-matching/internal/model"
)

// CatalogRepository reads the external job catalog. The catalog is owned by
// another system; this repository is strictly read-only and intentionally has
// no create/update/delete methods.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListChangedSince returns jobs modified after the watermark, oldest first so
// the refresh pipeline can advance its cursor across a clean prefix. Rows that
// flipped to is_indexed=false are included: the pipeline turns those into
// stale marks.
func (r *CatalogRepository) ListChangedSince(ctx context.Context, watermark time.Time, limit int) ([]model.Job, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var jobs []model.Job
	err := r.db.WithContext(ctx).
		Where("updated_at > ?", watermark).
		Order("updated_at ASC, id ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("listing changed jobs: %w", err)
	}
	return jobs, nil
}

// Get returns the job, or (nil, nil) when the catalog no longer holds it —
// the removal signal the refresh pipeline turns into a stale mark.
func (r *CatalogRepository) Get(ctx context.Context, jobID int64) (*model.Job, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var job model.Job
	err := r.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %d: %w", jobID, err)
	}
	return &job, nil
}
