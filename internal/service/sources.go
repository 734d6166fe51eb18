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

const JobUpdateSources = "update_sources"

// SourceSyncService keeps the ranked community list in line with the
// community listing of the site.
type SourceSyncService struct {
	source    Source
	sources   SourceStore
	txManager TransactionManager
	logger    *slog.Logger
	config    config.SyncConfig
}

func NewSourceSyncService(
	source Source,
	sources SourceStore,
	txManager TransactionManager,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SourceSyncService {
	return &SourceSyncService{
		source:    source,
		sources:   sources,
		txManager: txManager,
		logger:    logger,
		config:    cfg,
	}
}

// Sync fetches the community listing and merges it. Fetch failures abort the
// run since there is nothing to fall back to.
func (s *SourceSyncService) Sync(ctx context.Context, run RunConfig) (*domain.RunStats, error) {
	startTime := time.Now()

	fetched, err := s.fetchCommunities(ctx)
	if err != nil {
		return nil, err
	}

	count, err := s.sources.CountRanked(ctx)
	if err != nil {
		return nil, fmt.Errorf("count sources: %w", err)
	}

	s.logger.Info("starting community sync",
		"run_id", run.RunID,
		"fetched", len(fetched),
		"known", count,
	)

	stats := &domain.RunStats{
		Job:     JobUpdateSources,
		RunID:   run.RunID,
		Sources: len(fetched),
	}

	if count == 0 {
		inserted := 0
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			seen := make(map[string]bool, len(fetched))
			for _, raw := range fetched {
				if seen[raw.RedditName] {
					continue
				}
				seen[raw.RedditName] = true
				inserted++
				if _, err := s.sources.Insert(txCtx, newSource(raw, inserted)); err != nil {
					return fmt.Errorf("insert %s: %w", raw.RedditName, err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		stats.New = inserted
		stats.Duration = time.Since(startTime)
		return stats, nil
	}

	for i, raw := range fetched {
		position := i + 1

		known, err := s.sources.GetByName(ctx, raw.RedditName)
		switch {
		case err == nil:
			err = s.updateKnown(ctx, known, raw, position)
			if err == nil {
				stats.Updated++
			}
		case errors.Is(err, domain.ErrNotFound):
			err = s.insertNew(ctx, raw, position, count)
			if err == nil {
				count++
				stats.New++
			}
		default:
			err = fmt.Errorf("find source: %w", err)
		}
		if err != nil {
			stats.Duration = time.Since(startTime)
			return stats, fmt.Errorf("%s: %w", raw.RedditName, err)
		}
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

func (s *SourceSyncService) fetchCommunities(ctx context.Context) ([]domain.RawSource, error) {
	var communities []domain.RawSource
	token := ""

	for page := 1; page <= s.config.SourcePages; page++ {
		resp, err := s.source.FetchSourcePage(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("fetch community page %d: %w", page, err)
		}

		communities = append(communities, resp.Sources...)

		if resp.Next == "" {
			break
		}
		token = resp.Next
	}

	return communities, nil
}

func (s *SourceSyncService) updateKnown(ctx context.Context, known *domain.Source, raw domain.RawSource, position int) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.sources.UpdateStats(txCtx, known.ID, raw.Name, raw.Description, raw.Subscribers); err != nil {
			return fmt.Errorf("update stats: %w", err)
		}

		if known.Position == position {
			return nil
		}

		occupant, err := s.sources.FindByPosition(txCtx, position)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("find occupant: %w", err)
		}

		if err := s.sources.UpdatePosition(txCtx, known.ID, position); err != nil {
			return fmt.Errorf("move source: %w", err)
		}
		if occupant != nil && occupant.ID != known.ID {
			if err := s.sources.UpdatePosition(txCtx, occupant.ID, known.Position); err != nil {
				return fmt.Errorf("move occupant: %w", err)
			}
		}
		return nil
	})
}

// insertNew moves whatever holds position to the end of the list and puts
// the new community there.
func (s *SourceSyncService) insertNew(ctx context.Context, raw domain.RawSource, position, count int) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		occupant, err := s.sources.FindByPosition(txCtx, position)
		switch {
		case err == nil:
			if err := s.sources.UpdatePosition(txCtx, occupant.ID, count+1); err != nil {
				return fmt.Errorf("move occupant: %w", err)
			}
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("find occupant: %w", err)
		}

		if _, err := s.sources.Insert(txCtx, newSource(raw, position)); err != nil {
			return fmt.Errorf("insert source: %w", err)
		}
		return nil
	})
}

func newSource(raw domain.RawSource, position int) *domain.Source {
	return &domain.Source{
		RedditName:  raw.RedditName,
		Name:        raw.Name,
		Description: raw.Description,
		Subscribers: raw.Subscribers,
		Position:    position,
		Active:      true,
	}
}
