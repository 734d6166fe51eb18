package domain

import "time"

// InfinityPosition marks an entry that fell out of the tracked window.
// At 10000 new front page stories a day it takes centuries to collide with a real rank.
const InfinityPosition = 1000000000

// Entry is one persisted story belonging to a Source.
type Entry struct {
	ID           int64     `db:"id"`
	SourceID     int64     `db:"source_id"`
	ExternalID   string    `db:"external_id"`
	Title        string    `db:"title"`
	URL          string    `db:"url"`
	AlternateURL *string   `db:"alternate_url"` // nil: discovery found nothing, "": not attempted
	Score        int       `db:"score"`
	Comments     int       `db:"comments"`
	Author       string    `db:"author"`
	Position     int       `db:"position"`
	DateOrigin   time.Time `db:"date_origin"`
	DateAdded    time.Time `db:"date_added"`
}

// Ranked reports whether the entry holds a real position.
func (e *Entry) Ranked() bool {
	return e.Position < InfinityPosition
}

// RawEntry is one story as presented by a listing page. Its rank is implied by
// its index in the fetched sequence.
type RawEntry struct {
	ExternalID string
	Title      string
	URL        string
	Score      int
	Comments   int
	Author     string
	CreatedAt  time.Time
}

// StoryPage is one parsed page of a story listing.
type StoryPage struct {
	Entries []RawEntry
	Next    string
}
