// Package scheduler drives periodic embedding reconciliation.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/config"
	"github.com/gould-simon/ai-accounting-job-matching/internal/usecase"
)

// Checkpointer persists the reconciliation cursor between runs and process
// restarts.
type Checkpointer interface {
	LoadCheckpoint(ctx context.Context) (time.Time, error)
	SaveCheckpoint(ctx context.Context, watermark time.Time) error
}

type RefreshScheduler struct {
	refresh    *usecase.RefreshUsecase
	checkpoint Checkpointer
	cfg        *config.RefreshConfig
	logger     *zap.Logger
	cron       *cron.Cron
}

func NewRefreshScheduler(refresh *usecase.RefreshUsecase, checkpoint Checkpointer, cfg *config.RefreshConfig, logger *zap.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		refresh:    refresh,
		checkpoint: checkpoint,
		cfg:        cfg,
		logger:     logger,
		cron:       cron.New(),
	}
}

// Start schedules periodic runs and kicks one off immediately so a fresh
// deployment does not wait a full interval for its first reconciliation.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("embedding refresh disabled")
		return nil
	}

	spec := "@every " + s.cfg.Interval.String()
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("embedding refresh scheduled", zap.Duration("interval", s.cfg.Interval))

	go s.RunOnce(ctx)
	return nil
}

// Running reports whether a reconciliation is in flight.
func (s *RefreshScheduler) Running() bool {
	return s.refresh.Running()
}

// Stop halts the cron loop and waits for an in-flight run to finish.
func (s *RefreshScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// TriggerNow loads the checkpoint, runs a reconciliation, and saves the
// advanced watermark. Returns the watermark and run statistics, or
// ErrReconciliationConflict when a run is already in flight.
func (s *RefreshScheduler) TriggerNow(ctx context.Context) (time.Time, usecase.RefreshStats, error) {
	watermark, err := s.checkpoint.LoadCheckpoint(ctx)
	if err != nil {
		return time.Time{}, usecase.RefreshStats{}, err
	}

	next, stats, err := s.refresh.Run(ctx, watermark)
	if err != nil {
		return watermark, stats, err
	}

	if next.After(watermark) {
		if err := s.checkpoint.SaveCheckpoint(ctx, next); err != nil {
			s.logger.Error("failed to save refresh checkpoint",
				zap.Time("watermark", next), zap.Error(err))
			return next, stats, err
		}
	}

	if stats.Failed > 0 {
		s.logger.Warn("refresh run had failures",
			zap.Int("failed", stats.Failed),
			zap.Time("watermark", next))
	}
	return next, stats, nil
}

// RunOnce is the cron entrypoint around TriggerNow. A run already in flight
// makes the tick a no-op: catching up and being told someone else is catching
// up are the same outcome.
func (s *RefreshScheduler) RunOnce(ctx context.Context) {
	if _, _, err := s.TriggerNow(ctx); err != nil {
		if errors.Is(err, apperror.ErrReconciliationConflict) {
			s.logger.Debug("refresh already running, skipping tick")
			return
		}
		s.logger.Error("refresh run failed", zap.Error(err))
	}
}
