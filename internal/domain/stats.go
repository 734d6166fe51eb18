package domain

// AuthorStats counts the stories one author got into a source.
type AuthorStats struct {
	Author  string `db:"author"`
	Stories int    `db:"stories"`
}
