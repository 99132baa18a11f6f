package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/config"
	"github.com/gould-simon/ai-accounting-job-matching/internal/dto"
	"github.com/gould-simon/ai-accounting-job-matching/internal/matching"
	"github.com/gould-simon/ai-accounting-job-matching/internal/model"
)

// VectorStore is the persistence surface the match and refresh flows need.
// *repository.EmbeddingRepository satisfies it.
type VectorStore interface {
	Upsert(ctx context.Context, jobID int64, vec []float32, contentHash, modelVersion string) error
	QueryNearest(ctx context.Context, vec []float32, k int, filters []matching.Filter, modelVersion string, includeStale bool) ([]matching.Candidate, error)
	ListByFilters(ctx context.Context, filters []matching.Filter, limit int, modelVersion string, includeStale bool) ([]matching.Candidate, error)
	GetByJobID(ctx context.Context, jobID int64) (*model.JobEmbedding, error)
	MarkStale(ctx context.Context, jobID int64) error
	StaleJobIDs(ctx context.Context) ([]int64, error)
}

// Embedder turns text into a vector, normally via the caching layer.
type Embedder interface {
	GetOrCompute(ctx context.Context, text, modelVersion string) ([]float32, error)
}

// HistoryRecorder persists queries and their matches for audit.
type HistoryRecorder interface {
	RecordSearch(ctx context.Context, query *model.SearchQuery, matches []model.JobMatch) error
	MatchesByQueryID(ctx context.Context, queryID uuid.UUID) (*model.SearchQuery, []model.JobMatch, error)
}

type MatchUsecase struct {
	store        VectorStore
	embedder     Embedder
	history      HistoryRecorder
	ranker       *matching.Ranker
	cfg          *config.MatchingConfig
	modelVersion string
	logger       *zap.Logger
}

func NewMatchUsecase(store VectorStore, embedder Embedder, history HistoryRecorder, cfg *config.MatchingConfig, modelVersion string, logger *zap.Logger) *MatchUsecase {
	return &MatchUsecase{
		store:    store,
		embedder: embedder,
		history:  history,
		ranker: &matching.Ranker{
			SimilarityWeight: cfg.SimilarityWeight,
			LocationBoost:    cfg.LocationBoost,
			ServiceBoost:     cfg.ServiceBoost,
			MinSimilarity:    cfg.MinSimilarity,
		},
		cfg:          cfg,
		modelVersion: modelVersion,
		logger:       logger,
	}
}

// overfetch widens the vector-store query so threshold pruning and re-ranking
// still leave k results to return.
func overfetch(k int) int {
	n := k * 3
	if m := k + 20; m > n {
		n = m
	}
	return n
}

// Search runs the full match flow: embed the query text, pull nearest
// candidates, prune and rank them, persist the outcome, and return the top k.
//
// An embedding failure does not fail the search. The flow falls back to
// filter-only retrieval and the response is flagged degraded. A vector store
// failure is terminal.
func (uc *MatchUsecase) Search(ctx context.Context, req dto.SearchRequest) (*dto.SearchResponse, error) {
	if err := matching.Validate(req.Filters); err != nil {
		return nil, err
	}

	k := req.K
	if k <= 0 {
		k = uc.cfg.DefaultLimit
	}
	if k > uc.cfg.MaxLimit {
		k = uc.cfg.MaxLimit
	}

	rawText := strings.TrimSpace(req.RawText)

	var (
		cands          []matching.Candidate
		degraded       bool
		applyThreshold bool
		err            error
	)

	switch {
	case rawText == "":
		// Filter-only browse. Similarity is uniformly zero, so the cutoff
		// must not apply.
		cands, err = uc.store.ListByFilters(ctx, req.Filters, overfetch(k), uc.modelVersion, uc.cfg.AllowStale)
	default:
		var vec []float32
		vec, err = uc.embedder.GetOrCompute(ctx, rawText, uc.modelVersion)
		switch {
		case err == nil:
			applyThreshold = true
			cands, err = uc.store.QueryNearest(ctx, vec, overfetch(k), req.Filters, uc.modelVersion, uc.cfg.AllowStale)
		case errors.Is(err, apperror.ErrEmbeddingGeneration) || errors.Is(err, apperror.ErrTimeout):
			uc.logger.Warn("embedding unavailable, serving degraded filter-only results",
				zap.String("requester_id", req.RequesterID),
				zap.Error(err))
			degraded = true
			cands, err = uc.store.ListByFilters(ctx, req.Filters, overfetch(k), uc.modelVersion, uc.cfg.AllowStale)
		}
	}
	if err != nil {
		return nil, err
	}

	ranked := uc.ranker.Rank(cands, req.Filters, k, applyThreshold)

	query, matches := uc.buildHistory(req, rawText, degraded, ranked)
	if err := uc.history.RecordSearch(ctx, query, matches); err != nil {
		// Audit is best effort. The caller still gets their results.
		uc.logger.Error("failed to record search history",
			zap.String("query_id", query.ID.String()),
			zap.Error(err))
	}

	resp := &dto.SearchResponse{
		QueryID:  query.ID.String(),
		Degraded: degraded,
		Results:  make([]dto.MatchResult, 0, len(ranked)),
	}
	for i, r := range ranked {
		resp.Results = append(resp.Results, dto.MatchResult{
			JobID:      r.JobID,
			JobTitle:   r.JobTitle,
			Seniority:  r.Seniority,
			Service:    r.Service,
			Location:   r.Location,
			Employment: r.Employment,
			Link:       r.Link,
			Similarity: r.Similarity,
			RankScore:  r.RankScore,
			Rank:       i + 1,
			Stale:      r.Stale,
		})
	}
	return resp, nil
}

// MatchesByQueryID replays a recorded search from the audit tables.
func (uc *MatchUsecase) MatchesByQueryID(ctx context.Context, queryID uuid.UUID) (*dto.MatchHistoryResponse, error) {
	query, matches, err := uc.history.MatchesByQueryID(ctx, queryID)
	if err != nil {
		return nil, err
	}
	resp := &dto.MatchHistoryResponse{
		QueryID: query.ID.String(),
		Matches: make([]dto.MatchResult, 0, len(matches)),
	}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, dto.MatchResult{
			JobID:      m.JobID,
			Similarity: m.Similarity,
			RankScore:  m.RankScore,
			Rank:       m.Rank,
			Stale:      m.Stale,
		})
	}
	return resp, nil
}

func (uc *MatchUsecase) buildHistory(req dto.SearchRequest, rawText string, degraded bool, ranked []matching.Ranked) (*model.SearchQuery, []model.JobMatch) {
	filtersJSON := "[]"
	if len(req.Filters) > 0 {
		if b, err := json.Marshal(req.Filters); err == nil {
			filtersJSON = string(b)
		}
	}

	query := &model.SearchQuery{
		ID:          uuid.New(),
		RawText:     rawText,
		Filters:     filtersJSON,
		RequesterID: req.RequesterID,
		Degraded:    degraded,
		IssuedAt:    time.Now().UTC(),
	}

	matches := make([]model.JobMatch, 0, len(ranked))
	for i, r := range ranked {
		matches = append(matches, model.JobMatch{
			ID:         uuid.New(),
			QueryID:    query.ID,
			JobID:      r.JobID,
			Similarity: r.Similarity,
			RankScore:  r.RankScore,
			Rank:       i + 1,
			Stale:      r.Stale,
		})
	}
	return query, matches
}
