package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"reddit_river/internal/domain"
)

const sourceColumns = `id, reddit_name, name, description, subscribers, position, active`

type SourceStore struct {
	db *sqlx.DB
}

func NewSourceStore(db *sqlx.DB) *SourceStore {
	return &SourceStore{db: db}
}

// ListActive returns active sources in rank order, the front page first.
func (s *SourceStore) ListActive(ctx context.Context) ([]domain.Source, error) {
	query := s.db.Rebind(`SELECT ` + sourceColumns + ` FROM sources WHERE active = ? ORDER BY position, id`)

	var sources []domain.Source
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &sources, query, true); err != nil {
		return nil, err
	}
	return sources, nil
}

// ListRanked returns active communities in rank order, without the front page.
func (s *SourceStore) ListRanked(ctx context.Context) ([]domain.Source, error) {
	query := s.db.Rebind(`SELECT ` + sourceColumns + ` FROM sources
		WHERE active = ? AND reddit_name <> ? ORDER BY position, id`)

	var sources []domain.Source
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &sources, query, true, domain.FrontPage); err != nil {
		return nil, err
	}
	return sources, nil
}

func (s *SourceStore) GetByName(ctx context.Context, redditName string) (*domain.Source, error) {
	query := s.db.Rebind(`SELECT ` + sourceColumns + ` FROM sources WHERE reddit_name = ?`)

	var sources []domain.Source
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &sources, query, redditName); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, domain.ErrNotFound
	}
	return &sources[0], nil
}

// FindByPosition returns the community ranked at position.
func (s *SourceStore) FindByPosition(ctx context.Context, position int) (*domain.Source, error) {
	query := s.db.Rebind(`SELECT ` + sourceColumns + ` FROM sources
		WHERE position = ? AND reddit_name <> ?`)

	var sources []domain.Source
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &sources, query, position, domain.FrontPage); err != nil {
		return nil, err
	}
	switch len(sources) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		return &sources[0], nil
	default:
		return nil, fmt.Errorf("%w: %d sources at position %d", domain.ErrIntegrity, len(sources), position)
	}
}

// CountRanked counts communities, the front page excluded.
func (s *SourceStore) CountRanked(ctx context.Context) (int, error) {
	query := s.db.Rebind(`SELECT COUNT(*) FROM sources WHERE reddit_name <> ?`)

	var count int
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count, query, domain.FrontPage); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SourceStore) Insert(ctx context.Context, source *domain.Source) (int64, error) {
	query := s.db.Rebind(`
		INSERT INTO sources (reddit_name, name, description, subscribers, position, active)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &id, query,
		source.RedditName,
		source.Name,
		source.Description,
		source.Subscribers,
		source.Position,
		source.Active,
	)
	if err != nil {
		return 0, err
	}
	source.ID = id
	return id, nil
}

// UpdateStats refreshes the mutable listing attributes of a community.
func (s *SourceStore) UpdateStats(ctx context.Context, id int64, name, description string, subscribers int64) error {
	query := s.db.Rebind(`UPDATE sources SET name = ?, description = ?, subscribers = ? WHERE id = ?`)

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, name, description, subscribers, id)
	return err
}

func (s *SourceStore) UpdatePosition(ctx context.Context, id int64, position int) error {
	query := s.db.Rebind(`UPDATE sources SET position = ? WHERE id = ?`)

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, position, id)
	return err
}
