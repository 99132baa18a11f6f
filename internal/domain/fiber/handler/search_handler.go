package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/cache"
	"github.com/gould-simon/ai-accounting-job-matching/internal/dto"
	"github.com/gould-simon/ai-accounting-job-matching/internal/middleware"
	"github.com/gould-simon/ai-accounting-job-matching/internal/scheduler"
	"github.com/gould-simon/ai-accounting-job-matching/internal/usecase"
	"github.com/gould-simon/ai-accounting-job-matching/internal/util"
)

type SearchHandler struct {
	match           *usecase.MatchUsecase
	refresh         *scheduler.RefreshScheduler
	cacheStats      func() cache.Stats
	historyFailures func() int64
}

func NewSearchHandler(match *usecase.MatchUsecase, refresh *scheduler.RefreshScheduler, cacheStats func() cache.Stats, historyFailures func() int64) *SearchHandler {
	return &SearchHandler{
		match:           match,
		refresh:         refresh,
		cacheStats:      cacheStats,
		historyFailures: historyFailures,
	}
}

func (h *SearchHandler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/v1")
	v1.Post("/search", middleware.RateLimiter(30, 1*time.Minute), h.Search)
	v1.Post("/refresh", middleware.RateLimiter(5, 1*time.Minute), h.Refresh)
	v1.Get("/matches/:query_id", h.Matches)
	v1.Get("/stats", h.Stats)
}

func (h *SearchHandler) Search(c *fiber.Ctx) error {
	var req dto.SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid request body",
		}, err)
	}

	resp, err := h.match.Search(c.UserContext(), req)
	if err != nil {
		return h.mapError(c, err, "search failed")
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "search completed",
		Data:    resp,
	})
}

// Refresh triggers one reconciliation out of band and reports its outcome. A
// run already in flight is a conflict, not a queued request.
func (h *SearchHandler) Refresh(c *fiber.Ctx) error {
	watermark, stats, err := h.refresh.TriggerNow(c.UserContext())
	if err != nil {
		return h.mapError(c, err, "refresh failed")
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "refresh completed",
		Data: dto.RefreshResponse{
			Watermark:   watermark.UTC().Format(time.RFC3339),
			Attempted:   stats.Attempted,
			Succeeded:   stats.Succeeded,
			Failed:      stats.Failed,
			Skipped:     stats.Skipped,
			MarkedStale: stats.MarkedStale,
		},
	})
}

func (h *SearchHandler) Matches(c *fiber.Ctx) error {
	queryID, err := uuid.Parse(c.Params("query_id"))
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "query_id must be a uuid",
		}, err)
	}

	resp, err := h.match.MatchesByQueryID(c.UserContext(), queryID)
	if err != nil {
		return h.mapError(c, err, "failed to load matches")
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "matches loaded",
		Data:    resp,
	})
}

func (h *SearchHandler) Stats(c *fiber.Ctx) error {
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "engine stats",
		Data: fiber.Map{
			"cache":                  h.cacheStats(),
			"history_write_failures": h.historyFailures(),
			"refresh_running":        h.refresh.Running(),
		},
	})
}

func (h *SearchHandler) mapError(c *fiber.Ctx, err error, message string) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, apperror.ErrReconciliationConflict):
		code = fiber.StatusConflict
	case errors.Is(err, apperror.ErrTimeout):
		code = fiber.StatusGatewayTimeout
	case errors.Is(err, apperror.ErrVectorStoreUnavailable):
		code = fiber.StatusServiceUnavailable
	case errors.Is(err, apperror.ErrDimensionMismatch),
		errors.Is(err, apperror.ErrEmbeddingGeneration):
		code = fiber.StatusBadGateway
	case errors.Is(err, apperror.ErrInvalidFilter):
		code = fiber.StatusBadRequest
	}
	return util.ErrorResponse(c, util.ErrorResponseFormat{
		Code:    code,
		Message: message,
	}, err)
}
