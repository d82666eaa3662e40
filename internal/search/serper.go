package search

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/serper"
)

// SerperOptions tunes the Serper request.
type SerperOptions struct {
	Country  string // gl, default "ar"
	Language string // hl, default "es"
	Num      int    // results per query, default 10
}

// Serper searches Google through the Serper API. The reply body is passed
// on untouched; it already has the {"organic": [...]} shape.
type Serper struct {
	client serper.Client
	opts   SerperOptions
}

// NewSerper creates a Serper searcher.
func NewSerper(client serper.Client, opts SerperOptions) *Serper {
	if opts.Country == "" {
		opts.Country = "ar"
	}
	if opts.Language == "" {
		opts.Language = "es"
	}
	if opts.Num <= 0 {
		opts.Num = 10
	}
	return &Serper{client: client, opts: opts}
}

// Name implements Searcher.
func (s *Serper) Name() string { return "serper" }

// Search implements Searcher.
func (s *Serper) Search(ctx context.Context, query string) (Raw, error) {
	resp, err := s.client.Search(ctx, serper.SearchRequest{
		Query:    query,
		Country:  s.opts.Country,
		Language: s.opts.Language,
		Num:      s.opts.Num,
	})
	if err != nil {
		var se *serper.StatusError
		if errors.As(err, &se) {
			err = resilience.MarkHTTP(err, se.StatusCode, 0)
		}
		return Raw{}, eris.Wrap(err, "search: serper")
	}
	return Raw{Body: string(resp.Raw)}, nil
}
