package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/llmjson"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/prompt"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/schema"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/tracelog"
)

// MaxCandidates bounds the search hits researched per run.
const MaxCandidates = 5

const researchAgent = "research"

// Research trace steps.
const (
	StepQueryBuilt          = "QUERY_BUILT"
	StepSearched            = "SEARCHED"
	StepCandidatesExtracted = "CANDIDATES_EXTRACTED"
	StepScraped             = "SCRAPED"
	StepExtracted           = "EXTRACTED"
	StepValidated           = "VALIDATED"
	StepSkipped             = "SKIPPED"
	StepFailed              = "FAILED"
	StepDone                = "DONE"
)

// PageScraper fetches the content of one candidate page. *scrape.Chain
// satisfies it.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (*scrape.Result, error)
}

// ResearchStage turns search criteria into validated company records.
type ResearchStage struct {
	searcher  search.Searcher
	scraper   PageScraper
	completer llm.Completer
	validator *schema.Validator
	policy    resilience.Policy
	trace     *tracelog.Writer
	now       func() time.Time
}

// NewResearchStage creates a ResearchStage. policy governs the search call;
// trace may be nil.
func NewResearchStage(
	searcher search.Searcher,
	scraper PageScraper,
	completer llm.Completer,
	validator *schema.Validator,
	policy resilience.Policy,
	trace *tracelog.Writer,
) *ResearchStage {
	return &ResearchStage{
		searcher:  searcher,
		scraper:   scraper,
		completer: completer,
		validator: validator,
		policy:    policy,
		trace:     trace,
		now:       time.Now,
	}
}

// Run searches for companies matching criteria and researches up to
// MaxCandidates of them one at a time. Failures are logged per candidate and
// never abort the batch; the result may be empty.
func (s *ResearchStage) Run(ctx context.Context, criteria model.SearchCriteria, profile *model.UserProfile) []model.CompanyData {
	log := zap.L().With(zap.String("industry", criteria.Industry), zap.String("province", criteria.Province))

	var candidates []model.Candidate
	if urls := directURLs(criteria.CompanyURLs); len(urls) > 0 {
		log.Info("research: direct url mode", zap.Int("urls", len(urls)))
		for _, u := range urls {
			candidates = append(candidates, model.Candidate{Title: u, Link: u})
		}
		s.step(StepCandidatesExtracted, map[string]any{"mode": "urls", "candidates": candidates})
	} else {
		query := prompt.Research(criteria, profile)
		s.step(StepQueryBuilt, map[string]any{"query": query})

		raw, err := resilience.DoVal(ctx, s.policy, func(ctx context.Context) (search.Raw, error) {
			return s.searcher.Search(ctx, query)
		})
		if err != nil {
			log.Error("research: search failed", zap.String("provider", s.searcher.Name()), zap.Error(err))
			s.step(StepDone, map[string]any{"companies": 0, "error": err.Error()})
			return []model.CompanyData{}
		}
		s.step(StepSearched, map[string]any{"provider": s.searcher.Name()})

		parsed := llmjson.ParseSearch(raw.Value())
		if parsed.Err != nil {
			log.Warn("research: search reply rejected",
				zap.String("kind", string(parsed.Err.Kind)),
				zap.String("raw", llmjson.Snippet(raw.Body)),
				zap.Error(parsed.Err),
			)
		}
		candidates = Candidates(parsed.Organic)
		s.step(StepCandidatesExtracted, map[string]any{"mode": "search", "candidates": candidates})
	}

	out := make([]model.CompanyData, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Link]; dup {
			s.step(StepSkipped, map[string]any{"url": c.Link, "reason": "duplicate link"})
			continue
		}
		seen[c.Link] = struct{}{}

		company, step, err := s.researchOne(ctx, c, criteria)
		if err != nil {
			log.Warn("research: candidate failed",
				zap.String("url", c.Link),
				zap.String("step", step),
				zap.String("kind", string(model.KindOf(err))),
				zap.Error(err),
			)
			s.step(StepFailed, map[string]any{"url": c.Link, "step": step, "error": err.Error()})
			continue
		}
		s.step(StepValidated, company)
		out = append(out, *company)
	}

	log.Info("research: complete", zap.Int("candidates", len(candidates)), zap.Int("companies", len(out)))
	s.step(StepDone, map[string]any{"companies": len(out)})
	return out
}

// researchOne scrapes, extracts and validates a single candidate. On failure
// it also returns the step that failed.
func (s *ResearchStage) researchOne(ctx context.Context, c model.Candidate, criteria model.SearchCriteria) (*model.CompanyData, string, error) {
	page, err := s.scraper.Scrape(ctx, c.Link)
	if err != nil {
		return nil, StepScraped, model.WrapError(model.KindTransport, "research: scrape "+c.Link, err)
	}
	s.step(StepScraped, map[string]any{"url": c.Link, "source": page.Source, "chars": len(page.Content)})

	reply, err := s.completer.Complete(ctx, prompt.Extraction(page.Content))
	if err != nil {
		return nil, StepExtracted, model.WrapError(model.KindTransport, "research: extract "+c.Link, err)
	}
	parsed := llmjson.Parse(reply)
	if parsed.Err != nil {
		return nil, StepExtracted, parsed.Err
	}
	s.step(StepExtracted, map[string]any{"url": c.Link, "data": parsed.Data})

	data := flattenExtraction(parsed.Data)
	data["website"] = c.Link
	data["source"] = model.SourceScrape
	data["fecha_consulta"] = model.Timestamp(s.now())
	setDefault(data, "industry", criteria.Industry)
	// Province is half of the lead key, so the searched one wins.
	if criteria.Province != "" {
		data["province"] = criteria.Province
	}

	company, verr := s.validator.Company(data)
	if verr != nil {
		return nil, StepValidated, verr
	}
	return company, StepValidated, nil
}

func (s *ResearchStage) step(step string, result any) {
	if err := s.trace.Record(researchAgent, step, result); err != nil {
		zap.L().Warn("research: trace write failed", zap.String("step", step), zap.Error(err))
	}
}

// Candidates converts organic search hits into candidates. Only the first
// MaxCandidates hits are considered; hits without a title or a link are
// dropped.
func Candidates(organic []map[string]any) []model.Candidate {
	if len(organic) > MaxCandidates {
		organic = organic[:MaxCandidates]
	}
	out := make([]model.Candidate, 0, len(organic))
	for _, hit := range organic {
		c := model.Candidate{
			Title:   stringField(hit, "title"),
			Link:    stringField(hit, "link"),
			Snippet: stringField(hit, "snippet"),
		}
		if c.Title == "" || c.Link == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// flattenExtraction maps the extraction reply onto CompanyData keys:
// description becomes about and social_media links move to the top level.
func flattenExtraction(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+4)
	for k, v := range in {
		out[k] = v
	}
	if _, ok := out["about"]; !ok {
		if d, ok := out["description"]; ok {
			out["about"] = d
		}
	}
	delete(out, "description")

	if social, ok := out["social_media"].(map[string]any); ok {
		for _, k := range []string{"instagram", "facebook"} {
			if v, ok := social[k]; ok {
				setDefault(out, k, v)
			}
		}
	}
	delete(out, "social_media")
	return out
}

func setDefault(m map[string]any, key string, v any) {
	if cur, ok := m[key]; ok && cur != nil {
		if s, isStr := cur.(string); !isStr || strings.TrimSpace(s) != "" {
			return
		}
	}
	m[key] = v
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func directURLs(urls []string) []string {
	var out []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
		if len(out) == model.MaxCompanyURLs {
			break
		}
	}
	return out
}
