// Package jina is a client for the Jina Reader (r.jina.ai) and Search
// (s.jina.ai) APIs.
package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultReadURL   = "https://r.jina.ai"
	defaultSearchURL = "https://s.jina.ai"
)

// Client reads pages as markdown and runs web searches.
type Client interface {
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// ReadResponse is the Reader reply envelope.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData is the page Jina rendered.
type ReadData struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Usage       ReadUsage `json:"usage"`
}

// ReadUsage is the token count Jina billed for a read.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// SearchResponse is the Search reply envelope.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult is one search hit. Content holds the page as markdown when
// Jina fetched it alongside the hit.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jina: %s unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// SearchOption tunes one search.
type SearchOption func(url.Values, http.Header)

// WithCountry biases results toward a country code ("ar").
func WithCountry(gl string) SearchOption {
	return func(q url.Values, _ http.Header) { q.Set("gl", gl) }
}

// WithSiteFilter restricts results to one domain.
func WithSiteFilter(domain string) SearchOption {
	return func(_ url.Values, h http.Header) { h.Set("X-Site", domain) }
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Reader host (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.readURL = u }
}

// WithSearchBaseURL overrides the Search host (for testing).
func WithSearchBaseURL(u string) Option {
	return func(c *httpClient) { c.searchURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps requests per second. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = nil
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithLocale sets the browser locale Jina renders pages with and the
// language of search results ("es").
func WithLocale(lang string) Option {
	return func(c *httpClient) { c.locale = lang }
}

// WithReadTimeout bounds how long Jina waits for a page to load.
func WithReadTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.readTimeout = d }
}

type httpClient struct {
	apiKey      string
	readURL     string
	searchURL   string
	locale      string
	readTimeout time.Duration
	http        *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a Jina client throttled to 2 req/s.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		readURL:   defaultReadURL,
		searchURL: defaultSearchURL,
		http:      &http.Client{Timeout: 45 * time.Second},
		limiter:   rate.NewLimiter(2, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.readURL+"/"+targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create read request")
	}
	req.Header.Set("X-Return-Format", "markdown")
	req.Header.Set("X-Retain-Images", "none")
	if c.locale != "" {
		req.Header.Set("X-Locale", c.locale)
	}
	if c.readTimeout > 0 {
		req.Header.Set("X-Timeout", strconv.Itoa(int(c.readTimeout.Seconds())))
	}

	out := new(ReadResponse)
	status, body, err := c.call(req, out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &StatusError{Op: "read", StatusCode: status, Body: body}
	}
	return out, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	q := url.Values{"q": {query}}
	if c.locale != "" {
		q.Set("hl", c.locale)
	}
	h := http.Header{}
	for _, o := range opts {
		o(q, h)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create search request")
	}
	for k, v := range h {
		req.Header[k] = v
	}

	out := new(SearchResponse)
	status, body, err := c.call(req, out)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return out, nil
	case http.StatusUnprocessableEntity:
		// Jina answers 422 when the query has no results.
		return &SearchResponse{Code: status}, nil
	default:
		return nil, &StatusError{Op: "search", StatusCode: status, Body: body}
	}
}

// call throttles, sends req, and decodes a 200 body into out. Other
// statuses come back with the raw body for the caller to report.
func (c *httpClient) call(req *http.Request, out any) (int, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return 0, "", eris.Wrap(err, "jina: rate limit")
		}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", eris.Wrap(err, "jina: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", eris.Wrap(err, "jina: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, string(body), nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, "", eris.Wrap(err, "jina: unmarshal response")
	}
	return resp.StatusCode, "", nil
}
