// Package web serves the read-only river pages over HTTP.
package web

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"reddit_river/internal/domain"
)

// RiverStore is the read side of the store used by the pages.
type RiverStore interface {
	ListStories(ctx context.Context, redditName string, limit, offset int) ([]domain.Entry, error)
	TopAuthors(ctx context.Context, redditName string, limit int) ([]domain.AuthorStats, error)
	TopStories(ctx context.Context, redditName string, since time.Time, limit int) ([]domain.Entry, error)
	Communities(ctx context.Context) ([]domain.Source, error)
	SourceExists(ctx context.Context, redditName string) (bool, error)
}

type Config struct {
	DefaultSource  string
	StoriesPerPage int
	StatsUsers     int
	StatsStories   int
	StatsWindow    time.Duration
}

type Server struct {
	store     RiverStore
	cfg       Config
	templates *templates
	logger    *slog.Logger
	now       func() time.Time
}

func NewServer(store RiverStore, cfg Config, logger *slog.Logger) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	if cfg.StoriesPerPage <= 0 {
		cfg.StoriesPerPage = 25
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = domain.FrontPage
	}
	return &Server{
		store:     store,
		cfg:       cfg,
		templates: tmpl,
		logger:    logger.With("component", "web"),
		now:       time.Now,
	}, nil
}

// Handler returns the routed handler for all pages.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleFrontPage)
	mux.HandleFunc("GET /page/{n}", s.handleFrontPage)
	mux.HandleFunc("GET /r/{name}", s.handleRiver)
	mux.HandleFunc("GET /r/{name}/{$}", s.handleRiver)
	mux.HandleFunc("GET /r/{name}/page/{n}", s.handleRiver)
	mux.HandleFunc("GET /reddits", s.handleReddits)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /stats/{name}", s.handleStats)
	mux.HandleFunc("GET /about", s.handleAbout)
	return mux
}

type storyView struct {
	Rank     int
	Title    string
	URL      string
	Mobile   string
	Score    int
	Comments int
	Author   string
	Posted   time.Time
}

type storiesPage struct {
	Title    string
	Stories  []storyView
	PrevURL  string
	NextURL  string
	StatsURL string
}

func (s *Server) handleFrontPage(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r.PathValue("n"))
	s.renderStories(w, r, s.cfg.DefaultSource, "/", "", page)
}

func (s *Server) handleRiver(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ok, err := s.store.SourceExists(r.Context(), name)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	base := "/r/" + url.PathEscape(name)
	s.renderStories(w, r, name, base, "/stats/"+url.PathEscape(name), parsePage(r.PathValue("n")))
}

func (s *Server) renderStories(w http.ResponseWriter, r *http.Request, source, base, statsURL string, page int) {
	size := s.cfg.StoriesPerPage
	offset := (page - 1) * size

	// One extra row tells whether a next page exists.
	entries, err := s.store.ListStories(r.Context(), source, size+1, offset)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	data := storiesPage{Title: title(source), StatsURL: statsURL}
	if len(entries) > size {
		entries = entries[:size]
		data.NextURL = pageURL(base, page+1)
	}
	if page > 1 {
		data.PrevURL = pageURL(base, page-1)
	}
	for i, e := range entries {
		v := storyView{
			Rank:     offset + i + 1,
			Title:    e.Title,
			URL:      e.URL,
			Score:    e.Score,
			Comments: e.Comments,
			Author:   e.Author,
			Posted:   e.DateOrigin,
		}
		if e.AlternateURL != nil {
			v.Mobile = *e.AlternateURL
		}
		data.Stories = append(data.Stories, v)
	}

	s.render(w, r, s.templates.Stories, data)
}

func (s *Server) handleReddits(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.Communities(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, s.templates.Reddits, map[string]any{
		"Title":   "subreddits",
		"Sources": sources,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")
	if name == "" {
		name = s.cfg.DefaultSource
	}

	ok, err := s.store.SourceExists(ctx, name)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	authors, err := s.store.TopAuthors(ctx, name, s.cfg.StatsUsers)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	stories, err := s.store.TopStories(ctx, name, s.now().Add(-s.cfg.StatsWindow), s.cfg.StatsStories)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.render(w, r, s.templates.Stats, map[string]any{
		"Title":   "stats: " + title(name),
		"Authors": authors,
		"Stories": stories,
		"Window":  windowText(s.cfg.StatsWindow),
	})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, s.templates.About, map[string]any{"Title": "about"})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// parsePage turns a path segment into a 1-based page number.
func parsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func pageURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	if base == "/" {
		return fmt.Sprintf("/page/%d", page)
	}
	return fmt.Sprintf("%s/page/%d", base, page)
}

func title(source string) string {
	if source == domain.FrontPage {
		return "front page"
	}
	return source
}

func windowText(d time.Duration) string {
	days := int(d.Hours() / 24)
	switch {
	case days == 1:
		return "day"
	case days > 1:
		return fmt.Sprintf("%d days", days)
	default:
		return d.String()
	}
}

var wwwPrefix = regexp.MustCompile(`www?\d*\.`)

// niceHost returns the host of a story link without its www-style prefix.
func niceHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return wwwPrefix.ReplaceAllString(u.Hostname(), "")
}
