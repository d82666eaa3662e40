package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/tracelog"
)

func newResearch(t *testing.T, s search.Searcher, sc PageScraper, c *scriptedCompleter, trace *tracelog.Writer) *ResearchStage {
	t.Helper()
	r := NewResearchStage(s, sc, c, testValidator(t), testPolicy(), trace)
	r.now = func() time.Time { return fixedNow }
	return r
}

func names(cs []model.CompanyData) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.CompanyName
	}
	return out
}

func TestResearch_CapsCandidates(t *testing.T) {
	sc := &fakeScraper{}
	c := &scriptedCompleter{}
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		c.push(extractionReply(n))
	}

	r := newResearch(t, staticSearch(organic(7)), sc, c, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	assert.Len(t, got, MaxCandidates)
	assert.Len(t, sc.calls, MaxCandidates)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names(got))
}

func TestResearch_MiddleScrapeFailureIsolated(t *testing.T) {
	sc := &fakeScraper{fail: map[string]error{
		"https://e2.example.com/": errors.New("connection reset"),
	}}
	c := (&scriptedCompleter{}).push(extractionReply("first")).push(extractionReply("third"))

	r := newResearch(t, staticSearch(organic(3)), sc, c, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	require.Len(t, got, 2)
	assert.Equal(t, []string{"first", "third"}, names(got))
	assert.Len(t, sc.calls, 3)
	assert.Len(t, c.prompts, 2)
}

func TestResearch_StampsAndOverridesFields(t *testing.T) {
	c := (&scriptedCompleter{}).push(extractionReply("acme"))

	r := newResearch(t, staticSearch(organic(1)), &fakeScraper{}, c, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	require.Len(t, got, 1)
	co := got[0]
	assert.Equal(t, "acme", co.CompanyName)
	assert.Equal(t, "https://e1.example.com/", model.StringOr(co.Website, ""))
	assert.Equal(t, model.SourceScrape, co.Source)
	assert.Equal(t, "2026-10-19T13:00:00Z", co.FechaConsulta)
	assert.Equal(t, "Software", co.Industry)
	assert.Equal(t, "Córdoba", co.Province)
	assert.Equal(t, "Fabrica de software", model.StringOr(co.About, ""))
	assert.Equal(t, "https://instagram.com/acme", model.StringOr(co.Instagram, ""))
	assert.Nil(t, co.Facebook)
	assert.Nil(t, co.Email)

	require.NotEmpty(t, c.prompts)
	assert.Contains(t, c.prompts[0], "page of https://e1.example.com/")
}

func TestResearch_ValidationFailureSkipsCandidate(t *testing.T) {
	c := (&scriptedCompleter{}).
		push(`{"company_name": null, "description": "sin datos"}`).
		push(extractionReply("second"))

	r := newResearch(t, staticSearch(organic(2)), &fakeScraper{}, c, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	assert.Equal(t, []string{"second"}, names(got))
}

func TestResearch_PlaceholderNameSkipsCandidate(t *testing.T) {
	c := (&scriptedCompleter{}).
		push(`{"company_name": "null", "description": "sin datos"}`).
		push(`{"company_name": "N/A", "description": "sin datos"}`).
		push(extractionReply("third"))

	r := newResearch(t, staticSearch(organic(3)), &fakeScraper{}, c, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	assert.Equal(t, []string{"third"}, names(got))
}

func TestResearch_SearchedProvinceWins(t *testing.T) {
	c := (&scriptedCompleter{}).
		push(`{"company_name": "acme", "province": "Buenos Aires", "industry": "Logística"}`)

	r := newResearch(t, staticSearch(organic(1)), &fakeScraper{}, c, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	require.Len(t, got, 1)
	assert.Equal(t, "Córdoba", got[0].Province)
	assert.Equal(t, "Logística", got[0].Industry)
}

func TestResearch_MalformedAndFailedCompletions(t *testing.T) {
	c := (&scriptedCompleter{}).
		push("lo siento, no puedo ayudar").
		fail(errors.New("overloaded")).
		push(extractionReply("third"))

	r := newResearch(t, staticSearch(organic(3)), &fakeScraper{}, c, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	assert.Equal(t, []string{"third"}, names(got))
}

func TestResearch_SearchExhausted(t *testing.T) {
	calls := 0
	s := search.Func(func(context.Context, string) (search.Raw, error) {
		calls++
		return search.Raw{}, resilience.NewTransientError(errors.New("upstream 503"), 503)
	})
	sc := &fakeScraper{}

	r := newResearch(t, s, sc, &scriptedCompleter{}, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, 3, calls)
	assert.Empty(t, sc.calls)
}

func TestResearch_SearchRetriedThenSucceeds(t *testing.T) {
	calls := 0
	s := search.Func(func(context.Context, string) (search.Raw, error) {
		calls++
		if calls == 1 {
			return search.Raw{}, resilience.NewTransientError(errors.New("upstream 502"), 502)
		}
		return organic(1), nil
	})
	c := (&scriptedCompleter{}).push(extractionReply("acme"))

	r := newResearch(t, s, &fakeScraper{}, c, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"acme"}, names(got))
}

func TestResearch_MissingOrganicYieldsNothing(t *testing.T) {
	sc := &fakeScraper{}
	r := newResearch(t, staticSearch(search.Raw{Body: `{"other_key": []}`}), sc, &scriptedCompleter{}, nil)

	got := r.Run(context.Background(), testCriteria(), testProfile())
	assert.Empty(t, got)
	assert.Empty(t, sc.calls)
}

func TestResearch_QueryEmbedsCriteria(t *testing.T) {
	var query string
	s := search.Func(func(_ context.Context, q string) (search.Raw, error) {
		query = q
		return organic(0), nil
	})

	r := newResearch(t, s, &fakeScraper{}, &scriptedCompleter{}, nil)
	r.Run(context.Background(), testCriteria(), testProfile())

	assert.Contains(t, query, "Software")
	assert.Contains(t, query, "Córdoba")
	assert.Contains(t, query, "IA, datos, CRM")
}

func TestResearch_DirectURLMode(t *testing.T) {
	searched := false
	s := search.Func(func(context.Context, string) (search.Raw, error) {
		searched = true
		return search.Raw{}, nil
	})
	sc := &fakeScraper{}
	c := (&scriptedCompleter{}).push(extractionReply("a")).push(extractionReply("b")).push(extractionReply("c"))

	crit := testCriteria()
	crit.CompanyURLs = []string{
		"https://a.example.com/", " ", "https://b.example.com/",
		"https://c.example.com/", "https://d.example.com/",
	}

	r := newResearch(t, s, sc, c, nil)
	got := r.Run(context.Background(), crit, testProfile())

	assert.False(t, searched)
	assert.Equal(t, []string{"https://a.example.com/", "https://b.example.com/", "https://c.example.com/"}, sc.calls)
	assert.Len(t, got, 3)
}

func TestResearch_DuplicateLinksSkipped(t *testing.T) {
	raw := search.Raw{Object: map[string]any{"organic": []any{
		map[string]any{"title": "A", "link": "https://a.example.com/"},
		map[string]any{"title": "A again", "link": "https://a.example.com/"},
	}}}
	sc := &fakeScraper{}
	c := (&scriptedCompleter{}).push(extractionReply("a"))

	r := newResearch(t, staticSearch(raw), sc, c, nil)
	got := r.Run(context.Background(), testCriteria(), testProfile())

	assert.Len(t, got, 1)
	assert.Len(t, sc.calls, 1)
}

func TestResearch_WritesTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), tracelog.DefaultFileName)
	sc := &fakeScraper{fail: map[string]error{"https://e2.example.com/": errors.New("boom")}}
	c := (&scriptedCompleter{}).push(extractionReply("a"))

	r := newResearch(t, staticSearch(organic(2)), sc, c, tracelog.New(path))
	r.Run(context.Background(), testCriteria(), testProfile())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	log := string(b)
	for _, step := range []string{
		StepQueryBuilt, StepSearched, StepCandidatesExtracted,
		StepScraped, StepExtracted, StepValidated, StepFailed, StepDone,
	} {
		assert.Contains(t, log, `"step":"`+step+`"`, step)
	}
	assert.Equal(t, 8, strings.Count(log, "\n"))
}

func TestCandidates_DropsIncompleteHits(t *testing.T) {
	got := Candidates([]map[string]any{
		{"link": "https://notitle.example.com/"},
		{"title": "Sin link"},
		{"title": "  ", "link": "https://blank.example.com/"},
		{"title": "Ok", "link": "https://ok.example.com/", "snippet": "s"},
	})
	assert.Equal(t, []model.Candidate{{Title: "Ok", Link: "https://ok.example.com/", Snippet: "s"}}, got)
}

func TestCandidates_TruncatesBeforeFiltering(t *testing.T) {
	hits := []map[string]any{
		{"link": "https://notitle.example.com/"},
	}
	for i := 0; i < 6; i++ {
		hits = append(hits, map[string]any{"title": "T", "link": "https://x.example.com/"})
	}
	assert.Len(t, Candidates(hits), MaxCandidates-1)
}

func TestFlattenExtraction(t *testing.T) {
	got := flattenExtraction(map[string]any{
		"company_name": "Acme",
		"description":  "desc",
		"social_media": map[string]any{"instagram": "ig", "facebook": "fb", "twitter": "tw"},
	})
	assert.Equal(t, map[string]any{
		"company_name": "Acme",
		"about":        "desc",
		"instagram":    "ig",
		"facebook":     "fb",
	}, got)

	got = flattenExtraction(map[string]any{"about": "kept", "description": "dropped"})
	assert.Equal(t, "kept", got["about"])
	assert.NotContains(t, got, "description")
}
