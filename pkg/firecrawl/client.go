// Package firecrawl is a client for the Firecrawl single-page scrape API.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.firecrawl.dev/v1"

// Client scrapes one page at a time.
type Client interface {
	Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error)
}

// ScrapeRequest is the body for POST /scrape. Timeout and WaitFor are in
// milliseconds.
type ScrapeRequest struct {
	URL             string    `json:"url"`
	Formats         []string  `json:"formats,omitempty"`
	OnlyMainContent bool      `json:"onlyMainContent,omitempty"`
	IncludeTags     []string  `json:"includeTags,omitempty"`
	ExcludeTags     []string  `json:"excludeTags,omitempty"`
	WaitFor         int       `json:"waitFor,omitempty"`
	Timeout         int       `json:"timeout,omitempty"`
	Location        *Location `json:"location,omitempty"`
}

// Location makes Firecrawl fetch through a proxy in the given country with
// matching Accept-Language.
type Location struct {
	Country   string   `json:"country,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// ScrapeResponse is the decoded reply.
type ScrapeResponse struct {
	Success bool     `json:"success"`
	Data    PageData `json:"data"`
	Error   string   `json:"error,omitempty"`
}

// PageData is the scraped page. Title, URL, and StatusCode are filled from
// the metadata block when the top level omits them.
type PageData struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Markdown   string   `json:"markdown"`
	Links      []string `json:"links,omitempty"`
	StatusCode int      `json:"statusCode"`
	Metadata   Metadata `json:"metadata"`
}

// Metadata is the page metadata Firecrawl reports.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Language    string `json:"language"`
	SourceURL   string `json:"sourceURL"`
	StatusCode  int    `json:"statusCode"`
}

// APIError is returned for non-2xx replies.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
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

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Firecrawl client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	if req.URL == "" {
		return nil, eris.New("firecrawl: scrape: empty url")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "firecrawl: rate limit")
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "firecrawl: scrape: marshal request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "firecrawl: scrape: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "firecrawl: scrape: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "firecrawl: scrape: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	out := new(ScrapeResponse)
	if err := json.Unmarshal(body, out); err != nil {
		return nil, eris.Wrap(err, "firecrawl: scrape: decode response")
	}
	out.Data.fillFromMetadata()
	return out, nil
}

func (d *PageData) fillFromMetadata() {
	if d.Title == "" {
		d.Title = d.Metadata.Title
	}
	if d.URL == "" {
		d.URL = d.Metadata.SourceURL
	}
	if d.StatusCode == 0 {
		d.StatusCode = d.Metadata.StatusCode
	}
}
