package resilience

import (
	"time"
)

// FromRetryConfig builds a Policy from config values, keeping the default
// for any value that is not positive.
func FromRetryConfig(maxAttempts, delaySecs int) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if delaySecs > 0 {
		p.Delay = time.Duration(delaySecs) * time.Second
	}
	return p
}

// FromBreakerConfig builds a BreakerConfig from config values.
func FromBreakerConfig(threshold, windowSecs, cooldownSecs int) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if threshold > 0 {
		cfg.Threshold = threshold
	}
	if windowSecs > 0 {
		cfg.Window = time.Duration(windowSecs) * time.Second
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}
