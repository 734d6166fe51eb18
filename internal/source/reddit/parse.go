package reddit

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"reddit_river/internal/domain"
)

var communityHref = regexp.MustCompile(`/r/([^/]+)/?`)

// parseStoryPage extracts link entries of an old-style listing page in the
// order they are presented. Promoted links are skipped.
func parseStoryPage(r io.Reader, base *url.URL) (*domain.StoryPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read html: %v", domain.ErrLayoutMismatch, err)
	}

	table := doc.Find("#siteTable").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no #siteTable on listing page", domain.ErrLayoutMismatch)
	}

	page := &domain.StoryPage{}
	var parseErr error

	table.ChildrenFiltered("div.thing.link").EachWithBreak(func(i int, thing *goquery.Selection) bool {
		if thing.HasClass("promoted") || thing.AttrOr("data-promoted", "") == "true" {
			return true
		}

		entry, err := parseStory(thing, base)
		if err != nil {
			parseErr = fmt.Errorf("entry %d: %w", i+1, err)
			return false
		}
		page.Entries = append(page.Entries, *entry)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	page.Next = nextPage(doc, base)
	return page, nil
}

func parseStory(thing *goquery.Selection, base *url.URL) (*domain.RawEntry, error) {
	fullname, ok := thing.Attr("data-fullname")
	if !ok || fullname == "" {
		return nil, fmt.Errorf("%w: link without data-fullname", domain.ErrLayoutMismatch)
	}

	titleLink := thing.Find("a.title").First()
	title := strings.Join(strings.Fields(titleLink.Text()), " ")
	if title == "" {
		return nil, fmt.Errorf("%w: link %s has no title", domain.ErrLayoutMismatch, fullname)
	}

	href := thing.AttrOr("data-url", "")
	if href == "" {
		href = titleLink.AttrOr("href", "")
	}
	if href == "" {
		return nil, fmt.Errorf("%w: link %s has no url", domain.ErrLayoutMismatch, fullname)
	}
	link, err := base.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: link %s has bad url %q", domain.ErrLayoutMismatch, fullname, href)
	}

	score, err := intAttr(thing, "data-score")
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", fullname, err)
	}
	comments, err := intAttr(thing, "data-comments-count")
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", fullname, err)
	}

	var createdAt time.Time
	if ts := thing.AttrOr("data-timestamp", ""); ts != "" {
		ms, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: link %s has bad timestamp %q", domain.ErrLayoutMismatch, fullname, ts)
		}
		createdAt = time.UnixMilli(ms).UTC()
	}

	return &domain.RawEntry{
		ExternalID: fullname,
		Title:      title,
		URL:        link.String(),
		Score:      score,
		Comments:   comments,
		Author:     thing.AttrOr("data-author", ""),
		CreatedAt:  createdAt,
	}, nil
}

// parseSourcePage extracts communities of the community listing page.
func parseSourcePage(r io.Reader, base *url.URL) (*domain.SourcePage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read html: %v", domain.ErrLayoutMismatch, err)
	}

	table := doc.Find("#siteTable").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no #siteTable on community page", domain.ErrLayoutMismatch)
	}

	page := &domain.SourcePage{}
	var parseErr error

	table.ChildrenFiltered("div.thing.subreddit").EachWithBreak(func(i int, thing *goquery.Selection) bool {
		src, err := parseCommunity(thing)
		if err != nil {
			parseErr = fmt.Errorf("community %d: %w", i+1, err)
			return false
		}
		page.Sources = append(page.Sources, *src)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	page.Next = nextPage(doc, base)
	return page, nil
}

func parseCommunity(thing *goquery.Selection) (*domain.RawSource, error) {
	titleLink := thing.Find("a.title").First()
	if titleLink.Length() == 0 {
		return nil, fmt.Errorf("%w: community without title link", domain.ErrLayoutMismatch)
	}

	m := communityHref.FindStringSubmatch(titleLink.AttrOr("href", ""))
	if m == nil {
		return nil, fmt.Errorf("%w: title link has no community short name", domain.ErrLayoutMismatch)
	}
	redditName := m[1]

	// Title text reads "name: Display Name".
	name := strings.TrimSpace(titleLink.Text())
	name = strings.TrimSpace(strings.TrimPrefix(name, redditName+":"))
	if name == "" {
		name = redditName
	}

	var subscribers int64
	if number := thing.Find("span.score span.number").First(); number.Length() > 0 {
		raw := strings.NewReplacer(",", "", ".", "", " ", "").Replace(strings.TrimSpace(number.Text()))
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: community %s has bad subscriber count %q",
				domain.ErrLayoutMismatch, redditName, number.Text())
		}
		subscribers = n
	}

	description := strings.Join(strings.Fields(thing.Find(".description .md").First().Text()), " ")

	return &domain.RawSource{
		RedditName:  redditName,
		Name:        name,
		Description: description,
		Subscribers: subscribers,
	}, nil
}

func nextPage(doc *goquery.Document, base *url.URL) string {
	href, ok := doc.Find("span.next-button a").First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	next, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return next.String()
}

// intAttr reads an integer attribute; a missing attribute counts as zero.
func intAttr(s *goquery.Selection, name string) (int, error) {
	raw, ok := s.Attr(name)
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q", domain.ErrLayoutMismatch, name, raw)
	}
	return n, nil
}
