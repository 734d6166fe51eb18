package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const maxPageSize = 4 << 20

// Config holds discovery configuration.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Result is the outcome of one discovery attempt. Err is set when the
// attempt failed; Found is false both then and when nothing matched.
type Result struct {
	URL   string
	Found bool
	Err   error
}

// Discoverer looks for mobile or print friendly versions of pages.
type Discoverer struct {
	rules      *Rules
	lookups    []Lookup
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

func New(rules *Rules, cfg Config, logger *slog.Logger) *Discoverer {
	if rules == nil {
		rules = &Rules{}
	}

	lookups := make([]Lookup, 0, len(rules.Lookups)+1)
	lookups = append(lookups, handheldLookup{})
	lookups = append(lookups, rules.Lookups...)

	return &Discoverer{
		rules:   rules,
		lookups: lookups,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "discovery"),
	}
}

// Discover returns the alternate URL of rawURL. It never panics or returns
// an error to the caller; failures are reported in Result.Err.
func (d *Discoverer) Discover(ctx context.Context, rawURL string) Result {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{Err: fmt.Errorf("parse url: %w", err)}
	}

	for _, ignore := range d.rules.Ignores {
		if ignore.MatchString(rawURL) {
			d.logger.Debug("url ignored", "url", rawURL, "pattern", ignore.String())
			return Result{}
		}
	}

	for _, rw := range d.rules.Rewrites {
		if rw.Applies(u.Host) {
			return Result{URL: rw.Apply(rawURL), Found: true}
		}
	}

	doc, base, err := d.fetch(ctx, rawURL)
	if err != nil {
		return Result{Err: err}
	}

	for _, lookup := range d.lookups {
		match := doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return lookup.Matches(s)
		}).First()
		if match.Length() == 0 {
			continue
		}

		href, ok := lookup.Extract(match)
		if !ok {
			return Result{}
		}

		ref, err := url.Parse(href)
		if err != nil {
			return Result{Err: fmt.Errorf("parse alternate href %q: %w", href, err)}
		}
		return Result{URL: base.ResolveReference(ref).String(), Found: true}
	}

	return Result{}
}

func (d *Discoverer) fetch(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageSize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, fmt.Errorf("decode page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse page: %w", err)
	}

	return doc, resp.Request.URL, nil
}
