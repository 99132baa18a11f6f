package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/model"
)

// SearchHistoryRepository persists queries and their result sets for audit
// and tuning. Append-only: nothing here mutates or deletes existing rows,
// and nothing ever writes to the catalog.
type SearchHistoryRepository struct {
	db       *gorm.DB
	failures atomic.Int64
}

func NewSearchHistoryRepository(db *gorm.DB) *SearchHistoryRepository {
	return &SearchHistoryRepository{db: db}
}

// RecordSearch writes the query and its matches in one transaction. Failures
// are counted so the audit path stays observable even though it never blocks
// result delivery.
func (r *SearchHistoryRepository) RecordSearch(ctx context.Context, query *model.SearchQuery, matches []model.JobMatch) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(query).Error; err != nil {
			return err
		}
		if len(matches) == 0 {
			return nil
		}
		return tx.CreateInBatches(matches, 100).Error
	})
	if err != nil {
		r.failures.Add(1)
		return fmt.Errorf("recording search %s: %w", query.ID, err)
	}
	return nil
}

// FailureCount reports how many history writes have failed since startup.
func (r *SearchHistoryRepository) FailureCount() int64 {
	return r.failures.Load()
}

// MatchesByQueryID reads back a persisted query and its ranked matches.
func (r *SearchHistoryRepository) MatchesByQueryID(ctx context.Context, queryID uuid.UUID) (*model.SearchQuery, []model.JobMatch, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var query model.SearchQuery
	err := r.db.WithContext(ctx).First(&query, "id = ?", queryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: query %s", apperror.ErrNotFound, queryID)
	}
	if err != nil {
		return nil, nil, err
	}

	var matches []model.JobMatch
	err = r.db.WithContext(ctx).
		Where("query_id = ?", queryID).
		Order("rank ASC").
		Find(&matches).Error
	if err != nil {
		return nil, nil, err
	}
	return &query, matches, nil
}
