package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain runs backends cheapest first and keeps the first page with text.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain over scrapers in the order given.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// Names lists the backends in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.scrapers))
	for i, s := range c.scrapers {
		names[i] = s.Name()
	}
	return names
}

// Scrape fetches targetURL from the first backend that can serve it. When
// every backend fails, the error carries each backend's failure.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if !isHTTPURL(targetURL) {
		return nil, eris.Errorf("scrape: not an http url: %q", targetURL)
	}

	var failures []error
	for _, s := range c.scrapers {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "scrape: cancelled")
		}
		if !s.Supports(targetURL) {
			continue
		}

		res, err := s.Scrape(ctx, targetURL)
		if err == nil && (res == nil || strings.TrimSpace(res.Content) == "") {
			err = errors.New("empty content")
		}
		if err != nil {
			fields := []zap.Field{zap.String("scraper", s.Name()), zap.String("url", targetURL), zap.Error(err)}
			var be *BlockedError
			if errors.As(err, &be) {
				fields = append(fields, zap.String("block", string(be.Block)))
			}
			zap.L().Debug("scrape: backend failed, falling through", fields...)
			if !strings.HasPrefix(err.Error(), s.Name()+":") {
				err = fmt.Errorf("%s: %w", s.Name(), err)
			}
			failures = append(failures, err)
			continue
		}

		if res.URL == "" {
			res.URL = targetURL
		}
		return res, nil
	}

	if len(failures) == 0 {
		return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
	}
	return nil, eris.Wrap(errors.Join(failures...), "scrape: all scrapers failed")
}
