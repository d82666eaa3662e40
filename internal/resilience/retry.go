package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrExhausted marks an error returned after every attempt failed with a
// retryable error.
var ErrExhausted = eris.New("retries exhausted")

// Policy controls how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3.
	MaxAttempts int

	// Delay is the fixed wait between attempts. Zero retries immediately.
	// A longer Retry-After hint on a TransientError takes precedence.
	Delay time.Duration

	// Retryable decides whether an error is worth another attempt. If nil,
	// IsTransient is used.
	Retryable func(err error) bool

	// OnRetry is called before each wait with the failed attempt number.
	OnRetry func(attempt int, err error)

	// sleep waits for d or until ctx is done. Overridden in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the policy used for search and store calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       10 * time.Second,
	}
}

// ExhaustedError carries the last error once the attempt budget is spent.
// Its message is the last error's message; errors.Is matches ErrExhausted.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return e.Err.Error()
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is reports ErrExhausted as part of the chain.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Non-retryable errors are returned as-is. A context
// ended during a wait returns ctx.Err() joined with the last error. There is
// no wait after the final attempt.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for operations that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		wait := max(p.Delay, RetryAfterOf(err))
		if err := p.sleep(ctx, wait); err != nil {
			return zero, errors.Join(err, lastErr)
		}
	}
	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
