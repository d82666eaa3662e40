// Package store persists leads and run results.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// ErrDuplicateLead is returned by Insert when a lead with the same
// (company_name, province) already exists.
var ErrDuplicateLead = eris.New("store: lead already exists")

// ErrRunNotFound is returned by GetRun for unknown run IDs.
var ErrRunNotFound = eris.New("store: run not found")

// LeadFilter narrows List results.
type LeadFilter struct {
	Province string `json:"province,omitempty"`
	Industry string `json:"industry,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// RunFilter pages through stored runs, newest first.
type RunFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// LeadStore persists validated company records keyed on
// (company_name, province).
type LeadStore interface {
	// Insert adds a lead. It returns ErrDuplicateLead when the key exists.
	Insert(ctx context.Context, c model.CompanyData) error
	// Find returns the lead for key, or nil when there is none.
	Find(ctx context.Context, key model.LeadKey) (*model.CompanyData, error)
	Exists(ctx context.Context, key model.LeadKey) (bool, error)
	List(ctx context.Context, filter LeadFilter) ([]model.CompanyData, error)
}

// RunStore keeps the outcome of pipeline runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.RunResult, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunResult, error)
}

// Store is the full persistence interface of the pipeline.
type Store interface {
	LeadStore
	RunStore

	Migrate(ctx context.Context) error
	Close() error
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}
