package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reddit_river/internal/domain"
)

// RunConfig carries the per-run switches of a sync run.
type RunConfig struct {
	RunID          string
	Discovery      bool
	DiscoveryDebug bool
}

// Reconciler merges a freshly fetched ordering of one source into the store.
type Reconciler struct {
	entries    EntryStore
	txManager  TransactionManager
	discoverer Discoverer
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewReconciler creates a reconciler. discoverer and publisher may be nil.
func NewReconciler(
	entries EntryStore,
	txManager TransactionManager,
	discoverer Discoverer,
	publisher Publisher,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		entries:    entries,
		txManager:  txManager,
		discoverer: discoverer,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Reconcile walks fetched in order; the entry at index i ranks i+1. Known
// entries get fresh counts and swap places with the entry holding their new
// rank. New entries push the entry holding their rank to InfinityPosition.
// Entries missing from fetched are not touched.
//
// On error the stats cover the entries processed before the failure.
func (r *Reconciler) Reconcile(ctx context.Context, run RunConfig, source *domain.Source, fetched []domain.RawEntry) (*domain.SyncStats, error) {
	startTime := time.Now()
	logger := r.logger.With("source", source.RedditName)

	stats := &domain.SyncStats{
		Source:  source.RedditName,
		Fetched: len(fetched),
	}

	for i := range fetched {
		raw := &fetched[i]
		position := i + 1

		existing, err := r.entries.FindByIdentity(ctx, source.ID, raw.Title, raw.URL)
		switch {
		case err == nil:
			err = r.update(ctx, run, source, existing, raw, position, stats)
		case errors.Is(err, domain.ErrNotFound):
			err = r.insert(ctx, run, source, raw, position, stats, logger)
		default:
			err = fmt.Errorf("find entry: %w", err)
		}
		if err != nil {
			stats.Duration = time.Since(startTime)
			return stats, fmt.Errorf("position %d: %w", position, err)
		}
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

func (r *Reconciler) update(
	ctx context.Context,
	run RunConfig,
	source *domain.Source,
	existing *domain.Entry,
	raw *domain.RawEntry,
	position int,
	stats *domain.SyncStats,
) error {
	swapped := false

	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := r.entries.UpdateCounts(txCtx, existing.ID, raw.Score, raw.Comments); err != nil {
			return fmt.Errorf("update counts: %w", err)
		}

		if existing.Position == position {
			return nil
		}

		occupant, err := r.entries.FindByPosition(txCtx, source.ID, position)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("find occupant: %w", err)
		}

		if err := r.entries.UpdatePosition(txCtx, existing.ID, position); err != nil {
			return fmt.Errorf("move entry: %w", err)
		}
		if occupant != nil && occupant.ID != existing.ID {
			if err := r.entries.UpdatePosition(txCtx, occupant.ID, existing.Position); err != nil {
				return fmt.Errorf("move occupant: %w", err)
			}
			swapped = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	stats.Updated++
	if swapped {
		stats.Swapped++
	}

	entry := *existing
	entry.Score = raw.Score
	entry.Comments = raw.Comments
	entry.Position = position
	r.publish(ctx, run, domain.ActionUpdate, source, &entry, stats)

	return nil
}

func (r *Reconciler) insert(
	ctx context.Context,
	run RunConfig,
	source *domain.Source,
	raw *domain.RawEntry,
	position int,
	stats *domain.SyncStats,
	logger *slog.Logger,
) error {
	now := r.now().UTC()
	origin := raw.CreatedAt
	if origin.IsZero() {
		origin = now
	}

	entry := &domain.Entry{
		SourceID:     source.ID,
		ExternalID:   raw.ExternalID,
		Title:        raw.Title,
		URL:          raw.URL,
		AlternateURL: r.alternateURL(ctx, run, raw.URL, logger),
		Score:        raw.Score,
		Comments:     raw.Comments,
		Author:       raw.Author,
		Position:     position,
		DateOrigin:   origin,
		DateAdded:    now,
	}

	vacated := false

	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		occupant, err := r.entries.FindByPosition(txCtx, source.ID, position)
		switch {
		case err == nil:
			if err := r.entries.UpdatePosition(txCtx, occupant.ID, domain.InfinityPosition); err != nil {
				return fmt.Errorf("vacate position: %w", err)
			}
			vacated = true
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("find occupant: %w", err)
		}

		if _, err := r.entries.Insert(txCtx, entry); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	stats.New++
	if vacated {
		stats.Vacated++
	}

	r.publish(ctx, run, domain.ActionCreate, source, entry, stats)

	return nil
}

// alternateURL returns "" when discovery is off or failed and nil when it
// found nothing.
func (r *Reconciler) alternateURL(ctx context.Context, run RunConfig, url string, logger *slog.Logger) *string {
	empty := ""
	if !run.Discovery || r.discoverer == nil {
		return &empty
	}

	level := slog.LevelDebug
	if run.DiscoveryDebug {
		level = slog.LevelInfo
	}

	logger.Log(ctx, level, "autodiscovering", "url", url)
	res := r.discoverer.Discover(ctx, url)

	switch {
	case res.Err != nil:
		logger.Log(ctx, level, "autodiscovery failed", "url", url, "error", res.Err)
		return &empty
	case !res.Found:
		logger.Log(ctx, level, "autodiscovered nothing", "url", url)
		return nil
	default:
		logger.Log(ctx, level, "autodiscovered", "url", url, "alternate_url", res.URL)
		alt := res.URL
		return &alt
	}
}

func (r *Reconciler) publish(ctx context.Context, run RunConfig, action string, source *domain.Source, entry *domain.Entry, stats *domain.SyncStats) {
	if r.publisher == nil {
		return
	}

	event := &domain.EntryEvent{
		Action: action,
		Source: source.RedditName,
		RunID:  run.RunID,
		Entry:  *entry,
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		stats.Errors++
		r.logger.Warn("failed to publish entry event",
			"source", source.RedditName,
			"action", action,
			"title", entry.Title,
			"error", err,
		)
		return
	}
	stats.Published++
}
