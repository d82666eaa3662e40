package scrape

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/jina"
)

// JinaAdapter wraps a Jina Reader client as a Scraper with a circuit breaker.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.Breaker
}

// NewJinaAdapter creates a JinaAdapter. While the breaker is open the
// adapter reports itself unsupported so the chain falls through at once.
func NewJinaAdapter(client jina.Client, cfg resilience.BreakerConfig) *JinaAdapter {
	return &JinaAdapter{
		client:  client,
		breaker: resilience.NewBreaker("jina", cfg),
	}
}

// Name implements Scraper.
func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return !j.breaker.Open()
}

// Scrape fetches a URL via Jina Reader and validates the response.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if err := j.breaker.Allow(); err != nil {
		return nil, err
	}

	resp, err := j.client.Read(ctx, targetURL)
	if err != nil {
		j.breaker.Record(err)
		return nil, err
	}

	if err := checkReadResponse(resp); err != nil {
		// A wall belongs to the site; Jina itself answered.
		var be *BlockedError
		if errors.As(err, &be) {
			j.breaker.Record(nil)
		} else {
			j.breaker.Record(err)
		}
		return nil, err
	}

	j.breaker.Record(nil)
	return &Result{
		URL:        resp.Data.URL,
		Title:      resp.Data.Title,
		Content:    resp.Data.Content,
		Source:     "jina",
		StatusCode: resp.Code,
	}, nil
}

// checkReadResponse rejects replies that carry no usable page: an upstream
// error code, near-empty content, or a wall Jina rendered as markdown.
func checkReadResponse(resp *jina.ReadResponse) error {
	if resp == nil {
		return eris.New("jina: empty response")
	}
	if resp.Code != 0 && resp.Code != 200 {
		return eris.Errorf("jina: upstream code %d", resp.Code)
	}
	content := strings.TrimSpace(resp.Data.Content)
	if b := contentBlock(content); b != BlockNone {
		return &BlockedError{Backend: "jina", Block: b}
	}
	if utf8.RuneCountInString(content) < 100 {
		return eris.New("jina: empty page")
	}
	return nil
}
