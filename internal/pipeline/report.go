package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/schema"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// ReportStage re-validates a researched company and its email, persists the
// company and assembles the combined report.
type ReportStage struct {
	leads     store.LeadStore
	validator *schema.Validator
	now       func() time.Time
}

// NewReportStage creates a ReportStage writing leads to st.
func NewReportStage(st store.LeadStore, validator *schema.Validator) *ReportStage {
	return &ReportStage{leads: st, validator: validator, now: time.Now}
}

// Build returns the sub-report for one company. Records that fail
// validation yield a validation_error sub-report and are not persisted. A
// store failure yields an error sub-report and is also returned so the
// caller can tell an unavailable store from a bad record.
func (s *ReportStage) Build(ctx context.Context, company model.CompanyData, email model.EmailData, profile *model.UserProfile) (model.SubReport, error) {
	log := zap.L().With(zap.String("company", company.CompanyName))
	ts := model.Timestamp(s.now())

	c, verr := s.revalidateCompany(company)
	if verr == nil {
		var e *model.EmailData
		if e, verr = s.revalidateEmail(email); verr == nil {
			email = *e
		}
	}
	if verr != nil {
		log.Warn("report: validation failed", zap.Error(verr))
		return model.SubReport{
			Status:    model.StatusValidationError,
			Company:   company.CompanyName,
			Errors:    verr.Error(),
			Kind:      verr.Kind,
			Timestamp: ts,
		}, nil
	}

	if err := s.leads.Insert(ctx, *c); err != nil {
		log.Error("report: persist failed", zap.Error(err))
		return model.SubReport{
			Status:    model.StatusError,
			Company:   c.CompanyName,
			Errors:    err.Error(),
			Kind:      model.KindTransport,
			Timestamp: ts,
		}, err
	}

	var user model.UserProfile
	if profile != nil {
		user = *profile
	}
	log.Info("report: lead saved", zap.String("province", c.Province))
	return model.SubReport{
		Status:  model.StatusSuccess,
		Company: c.CompanyName,
		Data: &model.Report{
			CompanyInfo:  *c,
			EmailContent: email,
			UserInfo:     user,
			Metadata: model.ReportMetadata{
				GeneratedAt: ts,
				DataSources: []string{c.Source},
			},
		},
		Timestamp: ts,
	}, nil
}

func (s *ReportStage) revalidateCompany(c model.CompanyData) (*model.CompanyData, *model.Error) {
	raw, err := c.Map()
	if err != nil {
		return nil, model.WrapError(model.KindValidation, "report: encode company", err)
	}
	return s.validator.Company(raw)
}

func (s *ReportStage) revalidateEmail(e model.EmailData) (*model.EmailData, *model.Error) {
	raw, err := e.Map()
	if err != nil {
		return nil, model.WrapError(model.KindValidation, "report: encode email", err)
	}
	return s.validator.Email(raw)
}
