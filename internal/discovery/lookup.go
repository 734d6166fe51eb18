package discovery

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Lookup finds an alternate version link on a page.
type Lookup interface {
	// Matches reports whether the element is the link this lookup is after.
	Matches(s *goquery.Selection) bool
	// Extract returns the link target of a matching element.
	Extract(s *goquery.Selection) (string, bool)
}

// handheldLookup finds <link rel="alternate" media="handheld" href="...">.
type handheldLookup struct{}

func (handheldLookup) Matches(s *goquery.Selection) bool {
	return goquery.NodeName(s) == "link" && strings.Contains(s.AttrOr("media", ""), "handheld")
}

func (handheldLookup) Extract(s *goquery.Selection) (string, bool) {
	href, ok := s.Attr("href")
	if !ok || href == "" {
		return "", false
	}
	return href, true
}

// linkTextLookup finds an <a> whose text, or the alt/title of an image
// inside it, equals text.
type linkTextLookup struct {
	text string
}

var (
	linkPrefixes = []string{"http://", "https://", "/", "../", "./", "?"}

	// Matches the first quoted site path inside a javascript: href, such as
	// javascript:printopen('/print/story-1').
	jsPath = regexp.MustCompile(`"(/[^"]+?)"|'(/[^']+?)'`)
)

func (l linkTextLookup) Matches(s *goquery.Selection) bool {
	if goquery.NodeName(s) != "a" {
		return false
	}

	for c := s.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if text, ok := soleString(c); ok {
			if normalize(text) == l.text {
				return true
			}
			continue
		}
		if c.Type != html.ElementNode {
			continue
		}
		for _, attr := range c.Attr {
			if (attr.Key == "alt" || attr.Key == "title") && normalize(attr.Val) == l.text {
				return true
			}
		}
	}
	return false
}

func (l linkTextLookup) Extract(s *goquery.Selection) (string, bool) {
	href, ok := s.Attr("href")
	if !ok {
		return "", false
	}

	for _, prefix := range linkPrefixes {
		if strings.HasPrefix(href, prefix) {
			return strings.ReplaceAll(href, "&amp;", "&"), true
		}
	}

	m := jsPath.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	path := m[1]
	if path == "" {
		path = m[2]
	}
	return strings.ReplaceAll(path, "&amp;", "&"), true
}

// soleString returns the text of a node that consists of exactly one string,
// descending through elements with a single child.
func soleString(n *html.Node) (string, bool) {
	for {
		switch n.Type {
		case html.TextNode:
			return n.Data, true
		case html.ElementNode:
			if n.FirstChild == nil || n.FirstChild != n.LastChild {
				return "", false
			}
			n = n.FirstChild
		default:
			return "", false
		}
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
