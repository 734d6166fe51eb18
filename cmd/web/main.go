package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"reddit_river/internal/app"
	"reddit_river/internal/storage/sqlstore"
	"reddit_river/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	os.Exit(run(*configPath))
}

func run(configPath string) int {
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

	server, err := web.NewServer(sqlstore.NewRiverStore(db), web.Config{
		DefaultSource:  cfg.Sync.DefaultSource,
		StoriesPerPage: cfg.Web.StoriesPerPage,
		StatsUsers:     cfg.Web.StatsUsers,
		StatsStories:   cfg.Web.StatsStories,
		StatsWindow:    cfg.Web.StatsWindow,
	}, logger)
	if err != nil {
		logger.Error("failed to create web server", "error", err)
		return 1
	}

	httpServer := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("web server listening", "addr", cfg.Web.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("web server error", "error", err)
		return 1
	}
	logger.Info("web server stopped")
	return 0
}
