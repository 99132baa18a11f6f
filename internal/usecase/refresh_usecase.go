package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/model"
)

// CatalogReader is the read-only view of the external job catalog. The
// pipeline never writes through it.
type CatalogReader interface {
	ListChangedSince(ctx context.Context, watermark time.Time, limit int) ([]model.Job, error)
	Get(ctx context.Context, jobID int64) (*model.Job, error)
}

// RefreshStats summarizes one reconciliation run.
type RefreshStats struct {
	Attempted   int
	Succeeded   int
	Failed      int
	Skipped     int
	MarkedStale int
}

type RefreshUsecase struct {
	catalog      CatalogReader
	store        VectorStore
	embedder     Embedder
	modelVersion string
	batchSize    int
	logger       *zap.Logger

	running atomic.Bool
}

func NewRefreshUsecase(catalog CatalogReader, store VectorStore, embedder Embedder, modelVersion string, batchSize int, logger *zap.Logger) *RefreshUsecase {
	return &RefreshUsecase{
		catalog:      catalog,
		store:        store,
		embedder:     embedder,
		modelVersion: modelVersion,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Running reports whether a reconciliation is in flight.
func (uc *RefreshUsecase) Running() bool {
	return uc.running.Load()
}

// Run reconciles embeddings against the catalog starting from watermark and
// returns the advanced watermark alongside run statistics.
//
// Only one run may be in flight; a second caller gets
// apperror.ErrReconciliationConflict immediately.
//
// Candidates are processed oldest change first. The watermark advances only
// across the prefix of candidates that completed cleanly, and never lands on
// a failed candidate's timestamp, so a per-job failure parks the cursor and
// the job is retried next run. Previously stale embeddings are retried too,
// without moving the cursor.
//
// Removal is signaled by the catalog flipping is_indexed to false, which
// bumps updated_at and surfaces the row through the changed scan. A
// hard-deleted row whose embedding was never marked stale is not detected;
// the catalog owner soft-deletes.
func (uc *RefreshUsecase) Run(ctx context.Context, watermark time.Time) (time.Time, RefreshStats, error) {
	if !uc.running.CompareAndSwap(false, true) {
		return watermark, RefreshStats{}, apperror.ErrReconciliationConflict
	}
	defer uc.running.Store(false)

	var stats RefreshStats

	changed, err := uc.catalog.ListChangedSince(ctx, watermark, uc.batchSize)
	if err != nil {
		return watermark, stats, err
	}

	staleIDs, err := uc.store.StaleJobIDs(ctx)
	if err != nil {
		return watermark, stats, err
	}

	newWatermark := watermark
	prevWatermark := watermark
	advance := true
	seen := make(map[int64]bool, len(changed))

	for i := range changed {
		job := &changed[i]
		seen[job.ID] = true
		stats.Attempted++
		if uc.processJob(ctx, job, &stats) {
			if advance && job.UpdatedAt.After(newWatermark) {
				prevWatermark = newWatermark
				newWatermark = job.UpdatedAt
			}
		} else {
			// The next scan is strictly updated_at > watermark, so the
			// cursor must stay below this job's timestamp or a clean
			// sibling sharing it would push the failed job out of reach.
			if advance && newWatermark.Equal(job.UpdatedAt) {
				newWatermark = prevWatermark
			}
			advance = false
		}
	}

	// Stale retries sit at or before the watermark, so success or failure
	// here never moves the cursor.
	for _, id := range staleIDs {
		if seen[id] {
			continue
		}
		stats.Attempted++
		job, err := uc.catalog.Get(ctx, id)
		if err != nil {
			stats.Failed++
			uc.logger.Warn("catalog lookup failed for stale embedding",
				zap.Int64("job_id", id), zap.Error(err))
			continue
		}
		if job == nil {
			// Catalog row is gone and the embedding is already stale.
			stats.Skipped++
			continue
		}
		uc.processJob(ctx, job, &stats)
	}

	uc.logger.Info("refresh run complete",
		zap.Time("watermark", newWatermark),
		zap.Int("attempted", stats.Attempted),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("marked_stale", stats.MarkedStale))

	return newWatermark, stats, nil
}

// processJob reconciles a single job and reports whether it finished cleanly.
// A clean outcome is an upsert, an up-to-date skip, or a stale mark; failures
// are logged and isolated so the rest of the batch proceeds.
func (uc *RefreshUsecase) processJob(ctx context.Context, job *model.Job, stats *RefreshStats) bool {
	if !job.IsIndexed {
		if err := uc.store.MarkStale(ctx, job.ID); err != nil {
			stats.Failed++
			uc.logger.Warn("failed to mark embedding stale",
				zap.Int64("job_id", job.ID), zap.Error(err))
			return false
		}
		stats.MarkedStale++
		return true
	}

	hash := job.ContentHash()

	existing, err := uc.store.GetByJobID(ctx, job.ID)
	if err != nil {
		stats.Failed++
		uc.logger.Warn("failed to load existing embedding",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return false
	}
	if existing != nil && !existing.Stale &&
		existing.ContentHash == hash && existing.ModelVersion == uc.modelVersion {
		stats.Skipped++
		return true
	}

	vec, err := uc.embedder.GetOrCompute(ctx, job.EmbeddingText(), uc.modelVersion)
	if err != nil {
		stats.Failed++
		uc.logger.Warn("embedding generation failed",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return false
	}

	if err := uc.store.Upsert(ctx, job.ID, vec, hash, uc.modelVersion); err != nil {
		stats.Failed++
		uc.logger.Warn("embedding upsert failed",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return false
	}

	stats.Succeeded++
	return true
}
