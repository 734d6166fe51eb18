package discovery

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"reddit_river/internal/domain"
)

// DirectiveKind enumerates the rule file directives.
type DirectiveKind int

const (
	PrintLink DirectiveKind = iota + 1
	RewriteURL
	IgnoreURL
)

func (k DirectiveKind) String() string {
	switch k {
	case PrintLink:
		return "PRINT_LINK"
	case RewriteURL:
		return "REWRITE_URL"
	case IgnoreURL:
		return "IGNORE_URL"
	default:
		return fmt.Sprintf("DirectiveKind(%d)", int(k))
	}
}

func directiveKind(name string) (DirectiveKind, bool) {
	switch name {
	case "PRINT_LINK":
		return PrintLink, true
	case "REWRITE_URL":
		return RewriteURL, true
	case "IGNORE_URL":
		return IgnoreURL, true
	default:
		return 0, false
	}
}

// Rewrite replaces From with To in URLs whose host matches Host.
type Rewrite struct {
	Host *regexp.Regexp
	From *regexp.Regexp
	To   string
}

func (r Rewrite) Applies(host string) bool {
	return r.Host.MatchString(host)
}

func (r Rewrite) Apply(rawURL string) string {
	return r.From.ReplaceAllString(rawURL, r.To)
}

// Rules is a parsed rule file. Text lookups keep file order.
type Rules struct {
	Ignores  []*regexp.Regexp
	Rewrites []Rewrite
	Lookups  []Lookup
}

var (
	fieldSep     = regexp.MustCompile(`\s+`)
	quotedText   = regexp.MustCompile(`^["'](.+)['"]$`)
	backrefToken = regexp.MustCompile(`\\(\d+)`)
)

// LoadRules parses the rule file at path.
func LoadRules(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open rules: %v", domain.ErrConfig, err)
	}
	defer f.Close()

	return ParseRules(f, path)
}

// ParseRules parses line-oriented directives. Blank lines and lines starting
// with # are skipped. Errors wrap domain.ErrConfig and name the line.
func ParseRules(r io.Reader, name string) (*Rules, error) {
	rules := &Rules{}
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := rules.parseLine(line); err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %v", domain.ErrConfig, name, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfig, name, err)
	}

	return rules, nil
}

func (r *Rules) parseLine(line string) error {
	parts := fieldSep.Split(line, 2)
	if len(parts) != 2 {
		return fmt.Errorf("unknown line %q", line)
	}

	kind, ok := directiveKind(parts[0])
	if !ok {
		return fmt.Errorf("unknown directive %q", parts[0])
	}

	args := strings.TrimSpace(parts[1])
	switch kind {
	case PrintLink:
		return r.parsePrintLink(args)
	case RewriteURL:
		return r.parseRewriteURL(args)
	case IgnoreURL:
		return r.parseIgnoreURL(args)
	}
	return nil
}

func (r *Rules) parsePrintLink(args string) error {
	m := quotedText.FindStringSubmatch(args)
	if m == nil {
		return fmt.Errorf("%s expects quoted link text, got %q", PrintLink, args)
	}
	r.Lookups = append(r.Lookups, linkTextLookup{text: strings.ToLower(m[1])})
	return nil
}

func (r *Rules) parseRewriteURL(args string) error {
	fields := fieldSep.Split(args, -1)
	if len(fields) != 3 {
		return fmt.Errorf("%s expects host, from and to patterns, got %d fields", RewriteURL, len(fields))
	}

	host, err := regexp.Compile(fields[0])
	if err != nil {
		return fmt.Errorf("%s host pattern: %v", RewriteURL, err)
	}
	from, err := regexp.Compile(fields[1])
	if err != nil {
		return fmt.Errorf("%s from pattern: %v", RewriteURL, err)
	}

	r.Rewrites = append(r.Rewrites, Rewrite{
		Host: host,
		From: from,
		To:   backrefToken.ReplaceAllString(fields[2], `$${$1}`),
	})
	return nil
}

func (r *Rules) parseIgnoreURL(args string) error {
	re, err := regexp.Compile(args)
	if err != nil {
		return fmt.Errorf("%s pattern: %v", IgnoreURL, err)
	}
	r.Ignores = append(r.Ignores, re)
	return nil
}
