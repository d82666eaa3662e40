package search

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/jina"
)

// snippetRunes bounds the snippet taken from a Jina result's page content.
const snippetRunes = 300

// Jina searches through Jina Search and reshapes the hits into the
// {"organic": [{title, link, snippet}]} form Serper returns.
type Jina struct {
	client  jina.Client
	country string
}

// NewJina creates a Jina searcher biased toward country (e.g. "ar").
func NewJina(client jina.Client, country string) *Jina {
	return &Jina{client: client, country: country}
}

// Name implements Searcher.
func (j *Jina) Name() string { return "jina" }

// Search implements Searcher.
func (j *Jina) Search(ctx context.Context, query string) (Raw, error) {
	var opts []jina.SearchOption
	if j.country != "" {
		opts = append(opts, jina.WithCountry(j.country))
	}
	resp, err := j.client.Search(ctx, query, opts...)
	if err != nil {
		var se *jina.StatusError
		if errors.As(err, &se) {
			err = resilience.MarkHTTP(err, se.StatusCode, 0)
		}
		return Raw{}, eris.Wrap(err, "search: jina")
	}

	organic := make([]any, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := strings.TrimSpace(r.Description)
		if snippet == "" {
			snippet = truncateRunes(strings.TrimSpace(r.Content), snippetRunes)
		}
		organic = append(organic, map[string]any{
			"title":   r.Title,
			"link":    r.URL,
			"snippet": snippet,
		})
	}
	return Raw{Object: map[string]any{"organic": organic}}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
