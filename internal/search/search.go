// Package search issues web searches for candidate companies and hands the
// raw reply to the research stage.
package search

import "context"

// Raw is a search reply as received: either JSON text or an object a
// provider already decoded.
type Raw struct {
	Body   string
	Object map[string]any
}

// Value returns the form suited to llmjson.ParseSearch.
func (r Raw) Value() any {
	if r.Object != nil {
		return r.Object
	}
	return r.Body
}

// Searcher runs one web search.
type Searcher interface {
	Search(ctx context.Context, query string) (Raw, error)
	Name() string
}

// Func adapts a function to Searcher.
type Func func(ctx context.Context, query string) (Raw, error)

// Search implements Searcher.
func (f Func) Search(ctx context.Context, query string) (Raw, error) { return f(ctx, query) }

// Name implements Searcher.
func (f Func) Name() string { return "func" }
