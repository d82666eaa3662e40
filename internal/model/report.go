package model

import "time"

// SubReportStatus is the outcome of processing one company.
type SubReportStatus string

const (
	StatusSuccess         SubReportStatus = "success"
	StatusValidationError SubReportStatus = "validation_error"
	StatusError           SubReportStatus = "error"
)

// Report combines the researched company, its email and the sender profile.
type Report struct {
	CompanyInfo  CompanyData    `json:"company_info"`
	EmailContent EmailData      `json:"email_content"`
	UserInfo     UserProfile    `json:"user_info"`
	Metadata     ReportMetadata `json:"metadata"`
}

// ReportMetadata records when a report was built and from what.
type ReportMetadata struct {
	GeneratedAt string   `json:"generated_at"`
	DataSources []string `json:"data_sources"`
}

// SubReport is the tagged per-company result of a run.
type SubReport struct {
	Status    SubReportStatus `json:"status"`
	Company   string          `json:"company"`
	Data      *Report         `json:"data,omitempty"`
	Errors    string          `json:"errors,omitempty"`
	Kind      ErrorKind       `json:"kind,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// OK reports whether the company was processed end to end.
func (s SubReport) OK() bool {
	return s.Status == StatusSuccess
}

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	RunID      string         `json:"run_id"`
	Criteria   SearchCriteria `json:"criteria"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Researched int            `json:"researched"`
	Skipped    int            `json:"skipped"`
	Reports    []SubReport    `json:"reports"`
	ReportPath string         `json:"report_path,omitempty"`
}

// Succeeded counts the successful sub-reports.
func (r *RunResult) Succeeded() int {
	n := 0
	for _, s := range r.Reports {
		if s.OK() {
			n++
		}
	}
	return n
}

// Timestamp formats t the way every record timestamp is written.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
