// Package app holds the start-up wiring shared by the commands.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	"reddit_river/internal/config"
	"reddit_river/internal/discovery"
	"reddit_river/internal/logging"
	"reddit_river/internal/publisher"
	"reddit_river/internal/service"
	"reddit_river/internal/source/reddit"
	"reddit_river/internal/storage/sqlstore"
)

// Bootstrap loads the configuration and builds the logger it asks for. Load
// failures are logged with a default logger before returning.
func Bootstrap(configPath string) (*config.Config, *slog.Logger, error) {
	logger := logging.New("info", "json")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		return nil, nil, err
	}

	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

// OpenStore connects to the configured database and migrates it.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", "driver", cfg.Driver)
	return db, nil
}

func NewRedditSource(cfg config.RedditConfig, logger *slog.Logger) (*reddit.Source, error) {
	return reddit.New(reddit.Config{
		BaseURL:           cfg.BaseURL,
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
	}, logger)
}

// NewDiscoverer loads the rule file, if any, and builds the discoverer.
func NewDiscoverer(cfg config.DiscoveryConfig, logger *slog.Logger) (*discovery.Discoverer, error) {
	var rules *discovery.Rules
	if cfg.RulesFile != "" {
		var err error
		rules, err = discovery.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded discovery rules",
			"file", cfg.RulesFile,
			"ignores", len(rules.Ignores),
			"rewrites", len(rules.Rewrites),
			"lookups", len(rules.Lookups),
		)
	}
	return discovery.New(rules, discovery.Config{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
	}, logger), nil
}

// NewPublisher connects to RabbitMQ when it is configured. The returned
// publisher is nil otherwise, and close is always safe to call.
func NewPublisher(cfg config.RabbitMQConfig, logger *slog.Logger) (service.Publisher, func(), error) {
	if !cfg.Enabled() {
		logger.Info("rabbitmq not configured, events disabled")
		return nil, func() {}, nil
	}

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.URL,
		Exchange:   cfg.Exchange,
		RoutingKey: cfg.RoutingKey,
		QueueName:  cfg.QueueName,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return rabbitMQ, func() {
		if err := rabbitMQ.Close(); err != nil {
			logger.Error("failed to close rabbitmq", "error", err)
		}
	}, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
