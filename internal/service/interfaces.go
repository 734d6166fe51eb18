package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"reddit_river/internal/discovery"
	"reddit_river/internal/domain"
)

type EntryStore interface {
	FindByIdentity(ctx context.Context, sourceID int64, title, url string) (*domain.Entry, error)
	FindByPosition(ctx context.Context, sourceID int64, position int) (*domain.Entry, error)
	Insert(ctx context.Context, entry *domain.Entry) (int64, error)
	UpdateCounts(ctx context.Context, id int64, score, comments int) error
	UpdatePosition(ctx context.Context, id int64, position int) error
}

type SourceStore interface {
	ListActive(ctx context.Context) ([]domain.Source, error)
	GetByName(ctx context.Context, redditName string) (*domain.Source, error)
	FindByPosition(ctx context.Context, position int) (*domain.Source, error)
	CountRanked(ctx context.Context) (int, error)
	Insert(ctx context.Context, source *domain.Source) (int64, error)
	UpdateStats(ctx context.Context, id int64, name, description string, subscribers int64) error
	UpdatePosition(ctx context.Context, id int64, position int) error
}

// Source is the listing adapter of the content site.
type Source interface {
	FetchStoryPage(ctx context.Context, selector, token string) (*domain.StoryPage, error)
	FetchSourcePage(ctx context.Context, token string) (*domain.SourcePage, error)
}

type Discoverer interface {
	Discover(ctx context.Context, url string) discovery.Result
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, event *domain.EntryEvent) error
	Close() error
}
