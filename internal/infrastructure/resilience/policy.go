package resilience

import (
	"strings"
	"time"
)

// RetryPolicy bounds how often and how slowly a failed call is repeated.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerPolicy controls the per-operation circuit breaker.
type BreakerPolicy struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenTimeout   time.Duration
	HalfOpenCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy

	// Attempts caps MaxAttempts for operations whose name starts with the key.
	// The longest matching prefix wins.
	Attempts map[string]int
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   10,
			FailureRatio:  0.5,
			OpenTimeout:   30 * time.Second,
			HalfOpenCalls: 2,
		},
	}
}

// WithAttempts overrides the retry budget; non-positive values keep the default.
func (c Config) WithAttempts(attempts int) Config {
	if attempts > 0 {
		c.Retry.MaxAttempts = attempts
	}
	return c
}

func (c Config) WithBreaker(enabled bool) Config {
	c.Breaker.Enabled = enabled
	return c
}

// WithOperationAttempts sets the retry budget for every operation named with
// prefix, e.g. "ollama.generate".
func (c Config) WithOperationAttempts(prefix string, attempts int) Config {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || attempts <= 0 {
		return c
	}
	next := make(map[string]int, len(c.Attempts)+1)
	for k, v := range c.Attempts {
		next[k] = v
	}
	next[prefix] = attempts
	c.Attempts = next
	return c
}

func (c Config) attemptsFor(operation string) int {
	best, n := -1, c.Retry.MaxAttempts
	for prefix, attempts := range c.Attempts {
		if strings.HasPrefix(operation, prefix) && len(prefix) > best {
			best, n = len(prefix), attempts
		}
	}
	return n
}

func (c Config) normalize() Config {
	def := DefaultConfig()

	r := &c.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.Retry.MaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = def.Retry.InitialBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = def.Retry.MaxBackoff
	}
	r.MaxBackoff = max(r.MaxBackoff, r.InitialBackoff)
	if r.Multiplier < 1.0 {
		r.Multiplier = def.Retry.Multiplier
	}

	b := &c.Breaker
	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = def.Breaker.OpenTimeout
	}
	if b.HalfOpenCalls == 0 {
		b.HalfOpenCalls = def.Breaker.HalfOpenCalls
	}
	return c
}
