// Package runner guards sync jobs so only one instance of each runs at a
// time, and reports their outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"reddit_river/internal/domain"
	"reddit_river/internal/lock"
)

// Job performs one run. runID identifies the run in logs and events.
type Job func(ctx context.Context, runID string) (*domain.RunStats, error)

type Runner struct {
	name     string
	lockPath string
	job      Job
	logger   *slog.Logger
}

func New(name, lockPath string, job Job, logger *slog.Logger) *Runner {
	return &Runner{
		name:     name,
		lockPath: lockPath,
		job:      job,
		logger:   logger.With("job", name),
	}
}

// Sync runs the job while holding its lock. It returns an error wrapping
// domain.ErrAlreadyRunning, without running the job, when the lock is held
// elsewhere.
func (r *Runner) Sync(ctx context.Context) (*domain.RunStats, error) {
	l, err := lock.Acquire(r.lockPath)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			r.logger.Warn("might be already running, giving up", "lock", r.lockPath)
			return nil, err
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		if err := l.Release(); err != nil {
			r.logger.Error("failed to release lock", "error", err)
		}
	}()

	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)

	stats, err := r.job(ctx, runID)
	if err != nil {
		logger.Error("run failed", "error", err)
		return stats, err
	}

	logger.Info("sync completed",
		"sources", stats.Sources,
		"failed", stats.Failed,
		"new", stats.New,
		"updated", stats.Updated,
		"total", stats.Total(),
		"errors", stats.Errors,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	return stats, nil
}
