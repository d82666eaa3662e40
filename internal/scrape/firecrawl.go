package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/pkg/firecrawl"
)

// FirecrawlAdapter is the last backend in the chain. It renders JavaScript
// and gets past most walls, at a per-page price.
type FirecrawlAdapter struct {
	client   firecrawl.Client
	location *firecrawl.Location
}

// NewFirecrawlAdapter creates a FirecrawlAdapter that fetches from country
// ("ar") with the given language ("es"). Empty values leave Firecrawl's
// defaults in place.
func NewFirecrawlAdapter(client firecrawl.Client, country, language string) *FirecrawlAdapter {
	a := &FirecrawlAdapter{client: client}
	if country != "" {
		cc := strings.ToUpper(country)
		a.location = &firecrawl.Location{Country: cc}
		if language != "" {
			a.location.Languages = []string{strings.ToLower(language) + "-" + cc}
		}
	}
	return a
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports implements Scraper.
func (f *FirecrawlAdapter) Supports(u string) bool { return isHTTPURL(u) }

// Scrape implements Scraper. The whole page is kept, footer included,
// since that is where contact details usually sit.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:         targetURL,
		Formats:     []string{"markdown"},
		ExcludeTags: []string{"nav", "script", "style"},
		Location:    f.location,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.Errorf("firecrawl: scrape not successful: %s", strings.TrimSpace(resp.Error))
	}
	if strings.TrimSpace(resp.Data.Markdown) == "" {
		return nil, eris.New("firecrawl: empty page")
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &Result{
		URL:        pageURL,
		Title:      resp.Data.Title,
		Content:    resp.Data.Markdown,
		Source:     f.Name(),
		StatusCode: resp.Data.StatusCode,
	}, nil
}
