// Package pipeline researches companies, drafts sales emails for them and
// assembles per-company reports.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Pipeline runs the research, email and report stages in sequence.
type Pipeline struct {
	research *ResearchStage
	email    *EmailStage
	report   *ReportStage

	leads        store.LeadStore
	runs         store.RunStore
	skipExisting bool
	reportDir    string

	now   func() time.Time
	newID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunStore saves every run result to rs.
func WithRunStore(rs store.RunStore) Option {
	return func(p *Pipeline) { p.runs = rs }
}

// WithSkipExisting drops researched companies already present in leads
// before an email is drafted for them.
func WithSkipExisting(leads store.LeadStore) Option {
	return func(p *Pipeline) {
		p.leads = leads
		p.skipExisting = leads != nil
	}
}

// WithReportDir writes a Markdown report for every run into dir.
func WithReportDir(dir string) Option {
	return func(p *Pipeline) { p.reportDir = dir }
}

// New creates a Pipeline from its stages.
func New(research *ResearchStage, email *EmailStage, report *ReportStage, opts ...Option) *Pipeline {
	p := &Pipeline{
		research: research,
		email:    email,
		report:   report,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes one pipeline run. Per-company failures become sub-reports
// and never stop the batch. The returned error is non-nil only when the
// store stayed unavailable after retries; the result is still returned.
func (p *Pipeline) Run(ctx context.Context, criteria model.SearchCriteria, profile *model.UserProfile) (*model.RunResult, error) {
	run := &model.RunResult{
		RunID:     p.newID(),
		Criteria:  criteria,
		StartedAt: p.now().UTC(),
		Reports:   []model.SubReport{},
	}
	log := zap.L().With(zap.String("run_id", run.RunID))
	log.Info("pipeline: starting run",
		zap.String("industry", criteria.Industry),
		zap.String("province", criteria.Province),
	)

	var storeErr error
	noteStoreErr := func(err error) {
		if storeErr == nil && errors.Is(err, resilience.ErrExhausted) {
			storeErr = err
		}
	}

	companies := p.research.Run(ctx, criteria, profile)
	run.Researched = len(companies)
	log.Info("pipeline: phase complete", zap.String("phase", "research"), zap.Int("companies", len(companies)))

	for _, company := range companies {
		clog := log.With(zap.String("company", company.CompanyName))

		if p.skipExisting {
			exists, err := p.leads.Exists(ctx, company.Key())
			if err != nil {
				clog.Warn("pipeline: existence check failed", zap.Error(err))
				noteStoreErr(err)
			} else if exists {
				clog.Info("pipeline: lead already stored, skipping")
				run.Skipped++
				continue
			}
		}

		email, eerr := p.email.Generate(ctx, company, profile)
		if eerr != nil {
			clog.Warn("pipeline: email stage failed", zap.Error(eerr))
			run.Reports = append(run.Reports, model.SubReport{
				Status:    model.StatusError,
				Company:   company.CompanyName,
				Errors:    eerr.Error(),
				Kind:      eerr.Kind,
				Timestamp: model.Timestamp(p.now()),
			})
			continue
		}

		sub, err := p.report.Build(ctx, company, *email, profile)
		if err != nil {
			noteStoreErr(err)
		}
		run.Reports = append(run.Reports, sub)
	}

	run.FinishedAt = p.now().UTC()

	if p.reportDir != "" {
		path, err := WriteReport(p.reportDir, run)
		if err != nil {
			log.Warn("pipeline: report artifact failed", zap.Error(err))
		} else {
			run.ReportPath = path
		}
	}

	if p.runs != nil {
		if err := p.runs.SaveRun(ctx, run); err != nil {
			log.Error("pipeline: save run failed", zap.Error(err))
			noteStoreErr(err)
		}
	}

	log.Info("pipeline: run complete",
		zap.Int("researched", run.Researched),
		zap.Int("skipped", run.Skipped),
		zap.Int("succeeded", run.Succeeded()),
		zap.Int("reports", len(run.Reports)),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)

	if storeErr != nil {
		return run, eris.Wrap(storeErr, "pipeline: store unavailable")
	}
	return run, nil
}
