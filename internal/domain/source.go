package domain

// FrontPage is the reserved short name of the site-wide front page listing.
// It is seeded by the initial migration and never takes part in community ranking.
const FrontPage = "front_page"

// Source is a tracked sub-community.
type Source struct {
	ID          int64  `db:"id"`
	RedditName  string `db:"reddit_name"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Subscribers int64  `db:"subscribers"`
	Position    int    `db:"position"`
	Active      bool   `db:"active"`
}

// RawSource is one community as presented by the community listing.
type RawSource struct {
	RedditName  string
	Name        string
	Description string
	Subscribers int64
}

// SourcePage is one parsed page of the community listing.
type SourcePage struct {
	Sources []RawSource
	Next    string
}
