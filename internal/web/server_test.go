package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"reddit_river/internal/domain"
	"reddit_river/internal/storage/sqlstore"
)

type ServerTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *sqlx.DB
	sources *sqlstore.SourceStore
	entries *sqlstore.EntryStore
	handler http.Handler
	now     time.Time
}

func (s *ServerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Now().UTC().Truncate(time.Second)

	db, err := sqlstore.Open(s.ctx, "sqlite", ":memory:")
	s.Require().NoError(err)
	s.db = db
	s.sources = sqlstore.NewSourceStore(db)
	s.entries = sqlstore.NewEntryStore(db)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server, err := NewServer(sqlstore.NewRiverStore(db), Config{
		DefaultSource:  domain.FrontPage,
		StoriesPerPage: 2,
		StatsUsers:     10,
		StatsStories:   15,
		StatsWindow:    7 * 24 * time.Hour,
	}, logger)
	s.Require().NoError(err)
	server.now = func() time.Time { return s.now }
	s.handler = server.Handler()
}

func (s *ServerTestSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) addSource(name string, position int) int64 {
	id, err := s.sources.Insert(s.ctx, &domain.Source{
		RedditName: name, Name: name + " talk", Subscribers: 12345, Position: position, Active: true,
	})
	s.Require().NoError(err)
	return id
}

func (s *ServerTestSuite) addEntry(sourceID int64, title, author string, position, score int, alt *string) {
	_, err := s.entries.Insert(s.ctx, &domain.Entry{
		SourceID:     sourceID,
		Title:        title,
		URL:          "https://www.example.com/" + title,
		AlternateURL: alt,
		Score:        score,
		Author:       author,
		Position:     position,
		DateOrigin:   s.now.Add(-time.Hour),
		DateAdded:    s.now,
	})
	s.Require().NoError(err)
}

func (s *ServerTestSuite) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) TestFrontPage_ListsStories() {
	mobile := "https://m.example.com/first"
	s.addEntry(0, "first", "alice", 1, 10, &mobile)
	s.addEntry(0, "second", "bob", 2, 5, nil)

	rec := s.get("/")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	s.Contains(body, "front page")
	s.Contains(body, `1. <a href="https://m.example.com/first">first</a>`)
	s.Contains(body, `<a href="https://www.example.com/first">original</a>`)
	s.Contains(body, `2. <a href="https://www.example.com/second">second</a>`)
	s.Contains(body, "(example.com)")
	s.Contains(body, "1 hour ago")
	s.NotContains(body, "next &raquo;")
}

func (s *ServerTestSuite) TestFrontPage_Pagination() {
	for i, title := range []string{"a", "b", "c"} {
		s.addEntry(0, title, "alice", i+1, 1, nil)
	}

	first := s.get("/").Body.String()
	s.Contains(first, `href="/page/2"`)
	s.NotContains(first, "prev")

	second := s.get("/page/2").Body.String()
	s.Contains(second, `3. <a href="https://www.example.com/c">c</a>`)
	s.Contains(second, `<a href="/">&laquo; prev</a>`)
	s.NotContains(second, "next &raquo;")

	s.Equal(first, s.get("/page/0").Body.String())
	s.Equal(first, s.get("/page/abc").Body.String())
}

func (s *ServerTestSuite) TestRiver_Pages() {
	id := s.addSource("pics", 1)
	for i, title := range []string{"a", "b", "c", "d", "e"} {
		s.addEntry(id, title, "alice", i+1, 1, nil)
	}

	rec := s.get("/r/pics")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `href="/r/pics/page/2"`)
	s.Contains(rec.Body.String(), `href="/stats/pics"`)

	s.Equal(http.StatusOK, s.get("/r/pics/").Code)

	third := s.get("/r/pics/page/3").Body.String()
	s.Contains(third, `href="/r/pics/page/2"`)
	s.Contains(third, "5. ")

	second := s.get("/r/pics/page/2").Body.String()
	s.Contains(second, `<a href="/r/pics">&laquo; prev</a>`)
}

func (s *ServerTestSuite) TestRiver_UnknownSource() {
	s.Equal(http.StatusNotFound, s.get("/r/nope").Code)
	s.Equal(http.StatusNotFound, s.get("/stats/nope").Code)
}

func (s *ServerTestSuite) TestReddits() {
	s.addSource("programming", 2)
	s.addSource("pics", 1)

	rec := s.get("/reddits")
	s.Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	s.Contains(body, `<a href="/r/pics">pics talk</a>`)
	s.Contains(body, "12,345 subscribers")
	s.Less(strings.Index(body, "/r/pics"), strings.Index(body, "/r/programming"))
	s.NotContains(body, "/r/front_page")
}

func (s *ServerTestSuite) TestStats() {
	s.addEntry(0, "a", "alice", 1, 10, nil)
	s.addEntry(0, "b", "alice", 2, 99, nil)
	s.addEntry(0, "c", "bob", 3, 50, nil)

	rec := s.get("/stats")
	s.Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	s.Contains(body, "alice <span class=\"meta\">2 stories</span>")
	s.Contains(body, "Top stories of the last 7 days")
	s.Less(strings.Index(body, ">b</a>"), strings.Index(body, ">c</a>"))
	s.Less(strings.Index(body, ">c</a>"), strings.Index(body, ">a</a>"))
}

func (s *ServerTestSuite) TestAboutAndMethods() {
	s.Equal(http.StatusOK, s.get("/about").Code)
	s.Equal(http.StatusNotFound, s.get("/missing").Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func TestNiceHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/a", "example.com"},
		{"http://ww2.example.com", "example.com"},
		{"http://www3.example.co.uk/x", "example.co.uk"},
		{"https://news.example.org/", "news.example.org"},
		{"https://example.com:8080/", "example.com"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, niceHost(tt.in), tt.in)
	}
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, 1, parsePage(""))
	assert.Equal(t, 1, parsePage("0"))
	assert.Equal(t, 1, parsePage("-3"))
	assert.Equal(t, 1, parsePage("x"))
	assert.Equal(t, 4, parsePage("4"))
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "/", pageURL("/", 1))
	assert.Equal(t, "/page/3", pageURL("/", 3))
	assert.Equal(t, "/r/pics", pageURL("/r/pics", 1))
	assert.Equal(t, "/r/pics/page/2", pageURL("/r/pics", 2))
}
