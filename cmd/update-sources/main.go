package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"reddit_river/internal/app"
	"reddit_river/internal/domain"
	"reddit_river/internal/runner"
	"reddit_river/internal/scheduler"
	"reddit_river/internal/service"
	"reddit_river/internal/storage/sqlstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	watch := flag.Bool("watch", false, "keep running and sync at the configured interval")
	flag.Parse()

	os.Exit(run(*configPath, *watch))
}

func run(configPath string, watch bool) int {
	cfg, logger, err := app.Bootstrap(configPath)
	if err != nil {
		return 1
	}

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	db, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer db.Close()

	source, err := app.NewRedditSource(cfg.Reddit, logger)
	if err != nil {
		logger.Error("failed to create reddit source", "error", err)
		return 1
	}

	syncService := service.NewSourceSyncService(
		source,
		sqlstore.NewSourceStore(db),
		sqlstore.NewTransactionManager(db),
		logger,
		cfg.Sync,
	)

	job := func(ctx context.Context, runID string) (*domain.RunStats, error) {
		return syncService.Sync(ctx, service.RunConfig{RunID: runID})
	}
	r := runner.New(service.JobUpdateSources, cfg.LockPath(service.JobUpdateSources), job, logger)

	logger.Info("starting community sync", "source_pages", cfg.Sync.SourcePages, "watch", watch)

	if watch {
		sched := scheduler.NewScheduler(r, cfg.Sync.Interval, 0, logger)
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
			return 1
		}
		return 0
	}

	if _, err := r.Sync(ctx); err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			fmt.Fprintf(os.Stderr, "%s: might be already running, giving up\n", service.JobUpdateSources)
			return 0
		}
		return 1
	}
	return 0
}
