// Package scrape fetches candidate company pages through a chain of
// scraping backends.
package scrape

import (
	"context"
	"net/url"
	"strings"
)

// Result holds the text of one scraped page and the backend that produced it.
type Result struct {
	URL        string
	Title      string
	Content    string
	Source     string // e.g. "local_http", "jina", "firecrawl"
	StatusCode int
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}

// isHTTPURL reports whether raw is an absolute http(s) URL with a host.
func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
