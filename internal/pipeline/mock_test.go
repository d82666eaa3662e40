package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/schema"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// mockLeadStore is a testify mock of store.Store.
type mockLeadStore struct {
	mock.Mock
}

var _ store.Store = (*mockLeadStore)(nil)

func (m *mockLeadStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockLeadStore) Close() error {
	return m.Called().Error(0)
}

func (m *mockLeadStore) Insert(ctx context.Context, c model.CompanyData) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockLeadStore) Find(ctx context.Context, key model.LeadKey) (*model.CompanyData, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CompanyData), args.Error(1)
}

func (m *mockLeadStore) Exists(ctx context.Context, key model.LeadKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockLeadStore) List(ctx context.Context, filter store.LeadFilter) ([]model.CompanyData, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CompanyData), args.Error(1)
}

func (m *mockLeadStore) SaveRun(ctx context.Context, run *model.RunResult) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockLeadStore) GetRun(ctx context.Context, runID string) (*model.RunResult, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunResult), args.Error(1)
}

func (m *mockLeadStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.RunResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RunResult), args.Error(1)
}

// fakeScraper returns "page of <url>" for every URL not listed in fail.
type fakeScraper struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*scrape.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.fail[url]; err != nil {
		return nil, err
	}
	return &scrape.Result{URL: url, Content: "page of " + url, Source: "fake"}, nil
}

// scriptedCompleter returns its replies in order and records prompts.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

type reply struct {
	text string
	err  error
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", fmt.Errorf("scriptedCompleter: no reply for call %d", len(s.prompts))
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

func (s *scriptedCompleter) push(text string) *scriptedCompleter {
	s.replies = append(s.replies, reply{text: text})
	return s
}

func (s *scriptedCompleter) fail(err error) *scriptedCompleter {
	s.replies = append(s.replies, reply{err: err})
	return s
}

var fixedNow = time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)

func testValidator(t *testing.T) *schema.Validator {
	t.Helper()
	v, err := schema.NewValidator()
	require.NoError(t, err)
	return v
}

func testPolicy() resilience.Policy {
	return resilience.Policy{MaxAttempts: 3}
}

// organic builds a search reply with n hits on example.com subdomains.
func organic(n int) search.Raw {
	hits := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		hits = append(hits, map[string]any{
			"title":   fmt.Sprintf("Empresa %d", i),
			"link":    fmt.Sprintf("https://e%d.example.com/", i),
			"snippet": "snippet",
		})
	}
	return search.Raw{Object: map[string]any{"organic": hits}}
}

func staticSearch(raw search.Raw) search.Searcher {
	return search.Func(func(context.Context, string) (search.Raw, error) { return raw, nil })
}

func extractionReply(name string) string {
	return fmt.Sprintf("```json\n{\"company_name\": %q, \"website\": \"https://wrong.example.org\", "+
		"\"description\": \"Fabrica de software\", \"email\": null, "+
		"\"social_media\": {\"instagram\": \"https://instagram.com/%s\", \"facebook\": null, \"linkedin\": null}}\n```",
		name, name)
}

func testCriteria() model.SearchCriteria {
	return model.SearchCriteria{Industry: "Software", Province: "Córdoba", Keywords: []string{"CRM"}}
}

func testProfile() *model.UserProfile {
	return &model.UserProfile{
		Name:        "Ana Pérez",
		Role:        "Consultora",
		CompanyName: model.Ptr("DataLab"),
		Email:       "ana@example.com",
		Keywords:    []string{"IA", "datos"},
	}
}

func testCompany(name string) model.CompanyData {
	return model.CompanyData{
		CompanyName:   name,
		Industry:      "Software",
		Province:      "Córdoba",
		Website:       model.Ptr("https://acme.example.com/"),
		About:         model.Ptr("Fabrica de software"),
		Source:        model.SourceScrape,
		FechaConsulta: "2026-10-19T13:00:00Z",
	}
}

func testEmail() model.EmailData {
	return model.EmailData{
		EmailSubject: "Oferta",
		EmailBody:    "Hola",
		Keywords:     []string{"crm"},
		GeneratedAt:  "2026-10-19T13:00:00Z",
	}
}
