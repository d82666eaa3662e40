// Package resilience provides retry and circuit breaker helpers for calls to
// external services.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls a Breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the
	// circuit. Default: 3.
	Threshold int

	// Window resets the failure count when failures are further apart.
	// Default: 30s.
	Window time.Duration

	// Cooldown is how long the circuit stays open. Default: 60s.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the settings used for scraping upstreams.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold: 3,
		Window:    30 * time.Second,
		Cooldown:  60 * time.Second,
	}
}

// Breaker skips a flaky upstream after repeated failures so callers can fall
// back to an alternative right away.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	openUntil   time.Time

	now func() time.Time
}

// NewBreaker creates a closed breaker for the named upstream.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// Open reports whether calls should currently be skipped.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Before(b.openUntil)
}

// Allow returns ErrCircuitOpen while the circuit is open.
func (b *Breaker) Allow() error {
	if b.Open() {
		return eris.Wrap(ErrCircuitOpen, b.name)
	}
	return nil
}

// Record updates the breaker with the outcome of a call.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		return
	}

	now := b.now()
	if now.Sub(b.lastFailure) > b.cfg.Window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now
	if b.failures >= b.cfg.Threshold {
		b.openUntil = now.Add(b.cfg.Cooldown)
		zap.L().Warn("resilience: circuit breaker opened",
			zap.String("upstream", b.name),
			zap.Int("failures", b.failures),
			zap.Duration("cooldown", b.cfg.Cooldown),
		)
	}
}
