package store

import (
	"context"
	"errors"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// RetryStore applies a retry policy to every call of the wrapped Store.
// Errors that survive the policy carry resilience.ErrExhausted in their
// chain when the attempt budget ran out.
type RetryStore struct {
	Store
	policy resilience.Policy
}

// WithRetry wraps s so lead and run operations are retried under p. A nil
// p.Retryable retries transient errors and never a duplicate insert.
func WithRetry(s Store, p resilience.Policy) *RetryStore {
	if p.Retryable == nil {
		p.Retryable = Retryable
	}
	if p.OnRetry == nil {
		p.OnRetry = resilience.RetryLogger("store", "lead")
	}
	return &RetryStore{Store: s, policy: p}
}

// Retryable reports whether a store error may succeed on another attempt.
func Retryable(err error) bool {
	if errors.Is(err, ErrDuplicateLead) || errors.Is(err, ErrRunNotFound) {
		return false
	}
	return resilience.IsTransient(err)
}

func (r *RetryStore) Insert(ctx context.Context, c model.CompanyData) error {
	return resilience.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.Store.Insert(ctx, c)
	})
}

func (r *RetryStore) Find(ctx context.Context, key model.LeadKey) (*model.CompanyData, error) {
	return resilience.DoVal(ctx, r.policy, func(ctx context.Context) (*model.CompanyData, error) {
		return r.Store.Find(ctx, key)
	})
}

func (r *RetryStore) Exists(ctx context.Context, key model.LeadKey) (bool, error) {
	return resilience.DoVal(ctx, r.policy, func(ctx context.Context) (bool, error) {
		return r.Store.Exists(ctx, key)
	})
}

func (r *RetryStore) List(ctx context.Context, filter LeadFilter) ([]model.CompanyData, error) {
	return resilience.DoVal(ctx, r.policy, func(ctx context.Context) ([]model.CompanyData, error) {
		return r.Store.List(ctx, filter)
	})
}

func (r *RetryStore) SaveRun(ctx context.Context, run *model.RunResult) error {
	return resilience.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.Store.SaveRun(ctx, run)
	})
}
