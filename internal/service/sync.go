package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reddit_river/internal/config"
	"reddit_river/internal/domain"
)

const JobUpdateStories = "update_stories"

// StorySyncService syncs the story listings of every active source.
type StorySyncService struct {
	source     Source
	sources    SourceStore
	reconciler *Reconciler
	logger     *slog.Logger
	config     config.SyncConfig
}

func NewStorySyncService(
	source Source,
	sources SourceStore,
	reconciler *Reconciler,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *StorySyncService {
	return &StorySyncService{
		source:     source,
		sources:    sources,
		reconciler: reconciler,
		logger:     logger,
		config:     cfg,
	}
}

// Sync processes active sources one at a time in rank order. A source that
// fails is logged, counted and skipped.
func (s *StorySyncService) Sync(ctx context.Context, run RunConfig) (*domain.RunStats, error) {
	startTime := time.Now()

	active, err := s.sources.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}

	s.logger.Info("starting sync",
		"run_id", run.RunID,
		"sources", len(active),
		"pages", s.config.StoryPages,
		"discovery", run.Discovery,
	)

	stats := &domain.RunStats{
		Job:   JobUpdateStories,
		RunID: run.RunID,
	}

	for i := range active {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(startTime)
			return stats, err
		}

		source := &active[i]
		sourceStats, err := s.syncSource(ctx, run, source)
		if sourceStats != nil {
			stats.Add(sourceStats)
		} else {
			stats.Sources++
		}

		if err != nil {
			stats.Failed++
			s.logSourceError(source, err)
			continue
		}

		s.logger.Info("source synced",
			"source", source.RedditName,
			"new", sourceStats.New,
			"updated", sourceStats.Updated,
			"total", sourceStats.New+sourceStats.Updated,
			"swapped", sourceStats.Swapped,
			"vacated", sourceStats.Vacated,
			"duration", sourceStats.Duration,
		)
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

func (s *StorySyncService) syncSource(ctx context.Context, run RunConfig, source *domain.Source) (*domain.SyncStats, error) {
	fetched, err := s.fetchStories(ctx, source.RedditName)
	if err != nil {
		return nil, err
	}

	return s.reconciler.Reconcile(ctx, run, source, fetched)
}

// fetchStories concatenates up to StoryPages pages so rank runs across pages.
// Nothing is returned unless every page was fetched.
func (s *StorySyncService) fetchStories(ctx context.Context, selector string) ([]domain.RawEntry, error) {
	var entries []domain.RawEntry
	token := ""

	for page := 1; page <= s.config.StoryPages; page++ {
		resp, err := s.source.FetchStoryPage(ctx, selector, token)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		entries = append(entries, resp.Entries...)

		if resp.Next == "" {
			break
		}
		token = resp.Next
	}

	return entries, nil
}

func (s *StorySyncService) logSourceError(source *domain.Source, err error) {
	switch {
	case errors.Is(err, domain.ErrLayoutMismatch):
		s.logger.Warn("could not get stories, listing layout changed",
			"source", source.RedditName,
			"error", err,
		)
	case errors.Is(err, domain.ErrTransport):
		s.logger.Warn("could not get stories",
			"source", source.RedditName,
			"error", err,
		)
	default:
		s.logger.Error("source sync failed",
			"source", source.RedditName,
			"error", err,
		)
	}
}
