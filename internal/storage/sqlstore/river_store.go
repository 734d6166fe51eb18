package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"reddit_river/internal/domain"
)

// RiverStore serves the read-only queries of the web front end.
type RiverStore struct {
	db *sqlx.DB
}

func NewRiverStore(db *sqlx.DB) *RiverStore {
	return &RiverStore{db: db}
}

// ListStories returns a page of a source's stories in display order.
func (s *RiverStore) ListStories(ctx context.Context, redditName string, limit, offset int) ([]domain.Entry, error) {
	query := s.db.Rebind(`
		SELECT st.id, st.source_id, st.external_id, st.title, st.url, st.alternate_url,
			st.score, st.comments, st.author, st.position, st.date_origin, st.date_added
		FROM entries st
		JOIN sources su ON st.source_id = su.id
		WHERE su.reddit_name = ?
		ORDER BY st.position, st.date_added DESC
		LIMIT ? OFFSET ?`)

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, redditName, limit, offset); err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

// TopAuthors ranks authors by the number of stories they got into a source.
func (s *RiverStore) TopAuthors(ctx context.Context, redditName string, limit int) ([]domain.AuthorStats, error) {
	query := s.db.Rebind(`
		SELECT st.author AS author, COUNT(*) AS stories
		FROM entries st
		JOIN sources su ON st.source_id = su.id
		WHERE su.reddit_name = ?
		GROUP BY st.author
		ORDER BY stories DESC, st.author
		LIMIT ?`)

	var stats []domain.AuthorStats
	if err := sqlx.SelectContext(ctx, s.db, &stats, query, redditName, limit); err != nil {
		return nil, err
	}
	return stats, nil
}

// TopStories returns the highest scored stories posted since the given time.
func (s *RiverStore) TopStories(ctx context.Context, redditName string, since time.Time, limit int) ([]domain.Entry, error) {
	query := s.db.Rebind(`
		SELECT st.id, st.source_id, st.external_id, st.title, st.url, st.alternate_url,
			st.score, st.comments, st.author, st.position, st.date_origin, st.date_added
		FROM entries st
		JOIN sources su ON st.source_id = su.id
		WHERE su.reddit_name = ? AND st.date_origin >= ?
		ORDER BY st.score DESC, st.id
		LIMIT ?`)

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, redditName, since.Unix(), limit); err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}

// Communities lists the active communities shown on the community page.
func (s *RiverStore) Communities(ctx context.Context) ([]domain.Source, error) {
	return NewSourceStore(s.db).ListRanked(ctx)
}

// SourceExists reports whether a source with the short name is stored.
func (s *RiverStore) SourceExists(ctx context.Context, redditName string) (bool, error) {
	_, err := NewSourceStore(s.db).GetByName(ctx, redditName)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
