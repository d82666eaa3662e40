package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/profile"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/schema"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/internal/tracelog"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/firecrawl"
	"github.com/sells-group/leadgen-cli/pkg/jina"
	"github.com/sells-group/leadgen-cli/pkg/perplexity"
	"github.com/sells-group/leadgen-cli/pkg/serper"
)

// Completion stages; each picks its own model.
const (
	stageExtraction = "extraction"
	stageEmail      = "email"
)

// leadEnv holds the store, profile repository and pipeline stages shared by
// the run and serve commands.
type leadEnv struct {
	Store     store.Store
	Profiles  *profile.Repository
	Validator *schema.Validator

	research *pipeline.ResearchStage
	email    *pipeline.EmailStage
	report   *pipeline.ReportStage
}

// Close releases resources held by the environment.
func (e *leadEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Pipeline assembles a pipeline from the environment's stages.
func (e *leadEnv) Pipeline(skipExisting bool) *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithRunStore(e.Store),
		pipeline.WithReportDir(cfg.Output.Dir),
	}
	if skipExisting {
		opts = append(opts, pipeline.WithSkipExisting(e.Store))
	}
	return pipeline.New(e.research, e.email, e.report, opts...)
}

// Run loads the saved profile and runs the pipeline for criteria. A missing
// profile aborts before any search is issued.
func (e *leadEnv) Run(ctx context.Context, criteria model.SearchCriteria, skipExisting bool) (*model.RunResult, error) {
	p, err := e.Profiles.Load()
	if err != nil {
		return nil, err
	}
	return e.Pipeline(skipExisting).Run(ctx, criteria, p)
}

// initValidator builds the schema validator, parsing phone numbers in the
// search country's region.
func initValidator() (*schema.Validator, error) {
	v, err := schema.NewValidator(schema.WithPhoneRegion(cfg.Search.Country))
	if err != nil {
		return nil, eris.Wrap(err, "init validator")
	}
	return v, nil
}

// retryPolicy is the policy applied to search and store calls.
func retryPolicy(service, operation string) resilience.Policy {
	p := resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.DelaySecs)
	p.OnRetry = resilience.RetryLogger(service, operation)
	return p
}

// initStore opens the configured store, applies migrations and wraps it with
// the retry policy.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dir := filepath.Dir(dsn); !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "create store dir %s", dir)
			}
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		pool := cfg.Store.Pool
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return store.WithRetry(st, retryPolicy(cfg.Store.Driver, "lead")), nil
}

func scrapeTimeout() time.Duration {
	if cfg.Scrape.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Scrape.TimeoutSecs) * time.Second
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: scrapeTimeout()}
}

func newJinaClient() jina.Client {
	opts := []jina.Option{
		jina.WithBaseURL(cfg.Jina.BaseURL),
		// Jina needs headroom past the page load timeout it is given.
		jina.WithHTTPClient(&http.Client{Timeout: scrapeTimeout() + 15*time.Second}),
		jina.WithLocale(cfg.Search.Language),
		jina.WithReadTimeout(scrapeTimeout()),
	}
	if cfg.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	if cfg.Jina.RateLimit > 0 {
		opts = append(opts, jina.WithRateLimit(cfg.Jina.RateLimit))
	}
	return jina.NewClient(cfg.Jina.Key, opts...)
}

// newSearcher returns the configured web search provider.
func newSearcher() (search.Searcher, error) {
	switch cfg.Search.Provider {
	case "serper":
		opts := []serper.Option{
			serper.WithBaseURL(cfg.Serper.BaseURL),
			serper.WithHTTPClient(newHTTPClient()),
		}
		if cfg.Serper.RateLimit > 0 {
			opts = append(opts, serper.WithRateLimit(cfg.Serper.RateLimit))
		}
		return search.NewSerper(serper.NewClient(cfg.Serper.Key, opts...), search.SerperOptions{
			Country:  cfg.Search.Country,
			Language: cfg.Search.Language,
			Num:      cfg.Search.Num,
		}), nil
	case "jina":
		return search.NewJina(newJinaClient(), cfg.Search.Country), nil
	default:
		return nil, eris.Errorf("unsupported search provider: %s", cfg.Search.Provider)
	}
}

// newScraper builds the scrape chain: the local fetcher when enabled, then
// Jina Reader behind a circuit breaker, then Firecrawl when a key is set.
func newScraper() *scrape.Chain {
	var scrapers []scrape.Scraper
	if cfg.Scrape.LocalFirst {
		scrapers = append(scrapers, scrape.NewLocalScraper())
	}
	breaker := resilience.FromBreakerConfig(cfg.Breaker.Threshold, cfg.Breaker.WindowSecs, cfg.Breaker.CooldownSecs)
	scrapers = append(scrapers, scrape.NewJinaAdapter(newJinaClient(), breaker))
	if cfg.Firecrawl.Key != "" {
		fc := firecrawl.NewClient(cfg.Firecrawl.Key,
			firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL),
			firecrawl.WithHTTPClient(&http.Client{Timeout: scrapeTimeout() + 30*time.Second}),
			firecrawl.WithRateLimit(cfg.Firecrawl.RateLimit),
		)
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(fc, cfg.Search.Country, cfg.Search.Language))
	}
	return scrape.NewChain(scrapers...)
}

// newCompleter returns the completion backend for a stage.
func newCompleter(stage string) (llm.Completer, error) {
	params := llm.Params{MaxTokens: cfg.LLM.MaxTokens}
	temp := cfg.LLM.Temperature
	params.Temperature = &temp

	switch cfg.LLM.Provider {
	case "anthropic":
		params.Model = cfg.Anthropic.ExtractionModel
		if stage == stageEmail {
			params.Model = cfg.Anthropic.EmailModel
		}
		opts := []anthropicpkg.Option{anthropicpkg.WithMaxRetries(cfg.Retry.MaxAttempts - 1)}
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		return llm.NewAnthropic(anthropicpkg.NewClient(cfg.Anthropic.Key, opts...), params, stage), nil
	case "perplexity":
		params.Model = cfg.Perplexity.Model
		params.SearchDomains = cfg.Perplexity.SearchDomains
		params.SearchRecency = cfg.Perplexity.SearchRecency
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
			perplexity.WithRateLimit(cfg.Perplexity.RateLimit),
		)
		return llm.NewPerplexity(client, params), nil
	default:
		return nil, eris.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// initStoreEnv opens the store and profile repository without any API
// clients, for lookups that never call out.
func initStoreEnv(ctx context.Context) (*leadEnv, error) {
	v, err := initValidator()
	if err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	return &leadEnv{
		Store:     st,
		Profiles:  profile.NewRepository(cfg.Output.Dir, v),
		Validator: v,
	}, nil
}

// initPipeline sets up the store, API clients and pipeline stages. Callers
// should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*leadEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "create output dir %s", cfg.Output.Dir)
	}

	searcher, err := newSearcher()
	if err != nil {
		return nil, err
	}
	extractor, err := newCompleter(stageExtraction)
	if err != nil {
		return nil, err
	}
	writer, err := newCompleter(stageEmail)
	if err != nil {
		return nil, err
	}

	env, err := initStoreEnv(ctx)
	if err != nil {
		return nil, err
	}

	chain := newScraper()
	trace := tracelog.New(filepath.Join(cfg.Output.Dir, cfg.Output.TraceFile))
	env.research = pipeline.NewResearchStage(searcher, chain, extractor, env.Validator,
		retryPolicy(searcher.Name(), "search"), trace)
	env.email = pipeline.NewEmailStage(writer, env.Validator)
	env.report = pipeline.NewReportStage(env.Store, env.Validator)

	zap.L().Info("pipeline initialized",
		zap.String("search", searcher.Name()),
		zap.Strings("scrapers", chain.Names()),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("store", cfg.Store.Driver),
	)
	return env, nil
}
