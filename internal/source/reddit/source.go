package reddit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"reddit_river/internal/domain"
)

const (
	SourceID = "reddit"

	communitiesPath = "/subreddits/"

	maxPageSize = 8 << 20
)

// Config holds reddit source configuration.
type Config struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// Source fetches story and community listings from old-style reddit pages.
type Source struct {
	httpClient     *http.Client
	baseURL        *url.URL
	userAgent      string
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new reddit source.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid reddit base url %q", domain.ErrConfig, cfg.BaseURL)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        base,
		userAgent:      cfg.UserAgent,
		limiter:        rate.NewLimiter(limit, 1),
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}, nil
}

// FetchStoryPage fetches one page of the story listing for selector, which is
// a community short name or domain.FrontPage. An empty token requests the
// first page; otherwise token is the next page URL of a previous page.
func (s *Source) FetchStoryPage(ctx context.Context, selector, token string) (*domain.StoryPage, error) {
	pageURL := token
	if pageURL == "" {
		pageURL = s.storyListingURL(selector)
	}

	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	page, err := parseStoryPage(bytes.NewReader(body), s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	s.logger.Debug("fetched story page",
		"selector", selector,
		"url", pageURL,
		"entries", len(page.Entries),
		"has_next", page.Next != "",
	)

	return page, nil
}

// FetchSourcePage fetches one page of the community listing.
func (s *Source) FetchSourcePage(ctx context.Context, token string) (*domain.SourcePage, error) {
	pageURL := token
	if pageURL == "" {
		pageURL = s.baseURL.ResolveReference(&url.URL{Path: communitiesPath}).String()
	}

	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	page, err := parseSourcePage(bytes.NewReader(body), s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	s.logger.Debug("fetched community page",
		"url", pageURL,
		"communities", len(page.Sources),
		"has_next", page.Next != "",
	)

	return page, nil
}

func (s *Source) storyListingURL(selector string) string {
	path := "/"
	if selector != "" && selector != domain.FrontPage {
		path = "/r/" + url.PathEscape(selector) + "/"
	}
	return s.baseURL.ResolveReference(&url.URL{Path: path}).String()
}

// fetch returns the page body. Every failure wraps domain.ErrTransport.
func (s *Source) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		body, err = s.doRequest(ctx, pageURL)
		if err == nil {
			return body, nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"url", pageURL,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrTransport, ctx.Err())
		case <-time.After(backoff):
		}
	}

	if s.maxAttempts > 1 {
		return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
	}
	return nil, err
}

func (s *Source) doRequest(ctx context.Context, pageURL string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: wait for rate limit: %v", domain.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrTransport, err)
	}

	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: execute request: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status: %d", domain.ErrTransport, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrTransport, err)
	}

	return body, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}
