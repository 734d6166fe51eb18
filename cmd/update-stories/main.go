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
	noAutodisc := flag.Bool("noautodisc", false, "do not look for alternate versions of new stories")
	autodiscDebug := flag.Bool("autodisc-debug", false, "log every alternate version lookup")
	watch := flag.Bool("watch", false, "keep running and sync at the configured interval")
	flag.Parse()

	os.Exit(run(*configPath, !*noAutodisc, *autodiscDebug, *watch))
}

func run(configPath string, autodisc, autodiscDebug, watch bool) int {
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

	pub, closePublisher, err := app.NewPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		return 1
	}
	defer closePublisher()

	autodisc = autodisc && cfg.Discovery.IsEnabled()
	var discoverer service.Discoverer
	if autodisc {
		d, err := app.NewDiscoverer(cfg.Discovery, logger)
		if err != nil {
			logger.Error("failed to load discovery rules", "error", err)
			return 1
		}
		discoverer = d
	}

	reconciler := service.NewReconciler(
		sqlstore.NewEntryStore(db),
		sqlstore.NewTransactionManager(db),
		discoverer,
		pub,
		logger,
	)
	syncService := service.NewStorySyncService(
		source,
		sqlstore.NewSourceStore(db),
		reconciler,
		logger,
		cfg.Sync,
	)

	job := func(ctx context.Context, runID string) (*domain.RunStats, error) {
		return syncService.Sync(ctx, service.RunConfig{
			RunID:          runID,
			Discovery:      autodisc,
			DiscoveryDebug: autodiscDebug || cfg.Discovery.Debug,
		})
	}
	r := runner.New(service.JobUpdateStories, cfg.LockPath(service.JobUpdateStories), job, logger)

	logger.Info("starting story sync",
		"story_pages", cfg.Sync.StoryPages,
		"autodisc", autodisc,
		"watch", watch,
	)

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
			fmt.Fprintf(os.Stderr, "%s: might be already running, giving up\n", service.JobUpdateStories)
			return 0
		}
		return 1
	}
	return 0
}
