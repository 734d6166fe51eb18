package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"reddit_river/internal/domain"
)

const entryColumns = `id, source_id, external_id, title, url, alternate_url, score, comments,
	author, position, date_origin, date_added`

// entryRow keeps timestamps as unix seconds so both dialects share one schema.
type entryRow struct {
	ID           int64   `db:"id"`
	SourceID     int64   `db:"source_id"`
	ExternalID   string  `db:"external_id"`
	Title        string  `db:"title"`
	URL          string  `db:"url"`
	AlternateURL *string `db:"alternate_url"`
	Score        int     `db:"score"`
	Comments     int     `db:"comments"`
	Author       string  `db:"author"`
	Position     int     `db:"position"`
	DateOrigin   int64   `db:"date_origin"`
	DateAdded    int64   `db:"date_added"`
}

func (r entryRow) toDomain() domain.Entry {
	return domain.Entry{
		ID:           r.ID,
		SourceID:     r.SourceID,
		ExternalID:   r.ExternalID,
		Title:        r.Title,
		URL:          r.URL,
		AlternateURL: r.AlternateURL,
		Score:        r.Score,
		Comments:     r.Comments,
		Author:       r.Author,
		Position:     r.Position,
		DateOrigin:   time.Unix(r.DateOrigin, 0).UTC(),
		DateAdded:    time.Unix(r.DateAdded, 0).UTC(),
	}
}

func toEntries(rows []entryRow) []domain.Entry {
	entries := make([]domain.Entry, len(rows))
	for i, r := range rows {
		entries[i] = r.toDomain()
	}
	return entries
}

type EntryStore struct {
	db *sqlx.DB
}

func NewEntryStore(db *sqlx.DB) *EntryStore {
	return &EntryStore{db: db}
}

// FindByIdentity looks an entry up by its natural key.
func (s *EntryStore) FindByIdentity(ctx context.Context, sourceID int64, title, url string) (*domain.Entry, error) {
	query := s.db.Rebind(`SELECT ` + entryColumns + ` FROM entries
		WHERE source_id = ? AND title = ? AND url = ?`)

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, sourceID, title, url); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	entry := rows[0].toDomain()
	return &entry, nil
}

// FindByPosition returns the entry holding position within a source. More than
// one row at a real position is reported as ErrIntegrity.
func (s *EntryStore) FindByPosition(ctx context.Context, sourceID int64, position int) (*domain.Entry, error) {
	query := s.db.Rebind(`SELECT ` + entryColumns + ` FROM entries
		WHERE source_id = ? AND position = ?`)

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, sourceID, position); err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		entry := rows[0].toDomain()
		return &entry, nil
	default:
		return nil, fmt.Errorf("%w: %d entries of source %d at position %d",
			domain.ErrIntegrity, len(rows), sourceID, position)
	}
}

func (s *EntryStore) Insert(ctx context.Context, entry *domain.Entry) (int64, error) {
	query := s.db.Rebind(`
		INSERT INTO entries (
			source_id, external_id, title, url, alternate_url, score, comments,
			author, position, date_origin, date_added
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &id, query,
		entry.SourceID,
		entry.ExternalID,
		entry.Title,
		entry.URL,
		entry.AlternateURL,
		entry.Score,
		entry.Comments,
		entry.Author,
		entry.Position,
		entry.DateOrigin.Unix(),
		entry.DateAdded.Unix(),
	)
	if err != nil {
		return 0, err
	}
	entry.ID = id
	return id, nil
}

func (s *EntryStore) UpdateCounts(ctx context.Context, id int64, score, comments int) error {
	query := s.db.Rebind(`UPDATE entries SET score = ?, comments = ? WHERE id = ?`)

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, score, comments, id)
	return err
}

func (s *EntryStore) UpdatePosition(ctx context.Context, id int64, position int) error {
	query := s.db.Rebind(`UPDATE entries SET position = ? WHERE id = ?`)

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, position, id)
	return err
}

// ListBySource returns every entry of a source ordered by position.
func (s *EntryStore) ListBySource(ctx context.Context, sourceID int64) ([]domain.Entry, error) {
	query := s.db.Rebind(`SELECT ` + entryColumns + ` FROM entries
		WHERE source_id = ? ORDER BY position, id`)

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, sourceID); err != nil {
		return nil, err
	}
	return toEntries(rows), nil
}
