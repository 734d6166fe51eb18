package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reddit_river/internal/domain"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context) (*domain.RunStats, error)
}

// Scheduler repeats a sync at a fixed interval until its context ends.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. A zero timeout leaves runs unbounded.
func NewScheduler(syncer Syncer, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err := s.syncer.Sync(syncCtx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyRunning):
		s.logger.Info("sync skipped, another run holds the lock")
	default:
		s.logger.Error("sync failed", "error", err)
	}
}
