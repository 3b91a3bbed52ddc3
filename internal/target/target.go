// Package target implements typed navigation-target resolution: folding a
// user-provided URL, a base URL, a cached last URL, and CDP-current-page
// availability into one closed Target value with provenance, replacing a
// historical "__CURRENT_PAGE__" sentinel string with a real sum type.
package target

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is the resolved navigation intention: either Navigate(url) or CurrentPage.
type Target interface {
	isTarget()
}

// Navigate is a Target that names an absolute URL to go to.
type Navigate struct {
	URL *url.URL
}

func (Navigate) isTarget() {}

// CurrentPageTarget is a Target meaning "operate on whatever page is already open".
type CurrentPageTarget struct{}

func (CurrentPageTarget) isTarget() {}

// Source records where a resolved target's URL came from, for diagnostics.
type Source string

const (
	SourceExplicit              Source = "explicit"
	SourceContextLastURL        Source = "context_last_url"
	SourceBaseURL               Source = "base_url"
	SourceCDPCurrentPageDefault Source = "cdp_current_page"
)

// Policy governs how resolution handles a missing URL.
type Policy int

const (
	// AllowCurrentPage lets CDP mode default to the open page when no URL is available.
	AllowCurrentPage Policy = iota
	// RequireUrl rejects CurrentPage as a resolution outcome.
	RequireUrl
)

// Resolved is a fully resolved target plus its provenance.
type Resolved struct {
	Target Target
	Source Source
}

// URL returns the navigation URL, or nil for CurrentPage.
func (r Resolved) URL() *url.URL {
	if nav, ok := r.Target.(Navigate); ok {
		return nav.URL
	}
	return nil
}

// URLString returns the navigation URL as a string, or "" for CurrentPage.
func (r Resolved) URLString() string {
	if u := r.URL(); u != nil {
		return u.String()
	}
	return ""
}

// IsCurrentPage reports whether this target is CurrentPage.
func (r Resolved) IsCurrentPage() bool {
	_, ok := r.Target.(CurrentPageTarget)
	return ok
}

// PreferredURL projects CurrentPage back to lastURL for page-selection
// heuristics inside the broker; it never changes the resolved target itself.
func (r Resolved) PreferredURL(lastURL string) string {
	if nav, ok := r.Target.(Navigate); ok {
		return nav.URL.String()
	}
	return lastURL
}

// Resolve implements the precedence order:
//  1. provided (absolute, or relative joined with baseURL) -> Explicit
//  2. hasCDP && policy == AllowCurrentPage -> CurrentPage / CdpCurrentPageDefault
//  3. lastURL (absolute, or relative joined with baseURL) -> ContextLastUrl
//  4. baseURL (must be absolute) -> BaseUrl
//  5. error
func Resolve(provided, baseURL, lastURL string, hasCDP bool, policy Policy) (Resolved, error) {
	if provided != "" {
		u, err := applyBaseURL(provided, baseURL)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Target: Navigate{URL: u}, Source: SourceExplicit}, nil
	}

	if hasCDP && policy == AllowCurrentPage {
		return Resolved{Target: CurrentPageTarget{}, Source: SourceCDPCurrentPageDefault}, nil
	}

	if lastURL != "" {
		u, err := applyBaseURL(lastURL, baseURL)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Target: Navigate{URL: u}, Source: SourceContextLastURL}, nil
	}

	if baseURL != "" {
		if !isAbsolute(baseURL) {
			return Resolved{}, fmt.Errorf("base URL %q must be absolute", baseURL)
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return Resolved{}, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
		}
		return Resolved{Target: Navigate{URL: u}, Source: SourceBaseURL}, nil
	}

	return Resolved{}, fmt.Errorf("no URL provided and no URL in context; navigate first or provide a URL explicitly")
}

func applyBaseURL(raw, base string) (*url.URL, error) {
	if isAbsolute(raw) {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		return u, nil
	}

	if base == "" {
		return nil, fmt.Errorf("relative URL %q requires a base URL (use --base-url or set in context)", raw)
	}

	baseU, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	rel, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to join %q with base %q: %w", raw, base, err)
	}
	return baseU.ResolveReference(rel), nil
}

func isAbsolute(raw string) bool {
	for _, scheme := range []string{"http://", "https://", "ws://", "wss://", "file://", "data:"} {
		if strings.HasPrefix(raw, scheme) {
			return true
		}
	}
	return false
}

// selectorChars are the characters that, if present in a positional
// argument, strongly suggest it's a CSS selector rather than a URL.
const selectorChars = ".#>~+:[]*"

var knownTagNames = map[string]bool{
	"html": true, "body": true, "head": true, "div": true, "span": true,
	"a": true, "p": true, "button": true, "input": true, "form": true,
	"table": true, "tr": true, "td": true, "th": true, "ul": true, "ol": true,
	"li": true, "img": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "nav": true, "header": true, "footer": true,
	"section": true, "article": true, "label": true, "select": true,
	"textarea": true, "iframe": true, "canvas": true, "video": true,
}

// LooksLikeSelector classifies an ambiguous positional argument: it is a
// selector iff, after trimming, it is nonempty, does not look like a URL,
// and either contains a selector character or matches a known HTML tag name
// case-insensitively. Otherwise it is treated as a URL.
func LooksLikeSelector(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	if isAbsolute(trimmed) {
		return false
	}
	if strings.ContainsAny(trimmed, selectorChars) {
		return true
	}
	return knownTagNames[strings.ToLower(trimmed)]
}
