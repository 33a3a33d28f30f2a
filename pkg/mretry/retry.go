// Package mretry implements the truncated-exponential-backoff-with-jitter
// policy spec §4.5 asks for (base 10-50ms, cap ~1s, 3-5 attempts for saga
// command execution), generalized into a reusable Config used by the
// aggregate pipeline, saga orchestrator and process-manager
// orchestrator alike (spec §9: "both use the same
// exponential-backoff budget").
package mretry

import (
	"errors"
	"math/rand"
	"time"
)

const (
	DefaultMaxRetries    = 5
	DefaultInitialBackoff = 10 * time.Millisecond
	DefaultMaxBackoff     = 1 * time.Second
	DefaultJitterFactor   = 0.25
)

// Config is a truncated-exponential-backoff policy.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFactor   float64
}

// DefaultConfig returns the pipeline's default retry budget.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		JitterFactor:   DefaultJitterFactor,
	}
}

func (c Config) WithMaxRetries(n int) Config         { c.MaxRetries = n; return c }
func (c Config) WithInitialBackoff(d time.Duration) Config { c.InitialBackoff = d; return c }
func (c Config) WithMaxBackoff(d time.Duration) Config     { c.MaxBackoff = d; return c }
func (c Config) WithJitterFactor(f float64) Config         { c.JitterFactor = f; return c }

// Validate reports a human-readable error for any field out of range.
func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return errors.New("mretry: MaxRetries must be >= 1")
	}

	if c.InitialBackoff <= 0 {
		return errors.New("mretry: InitialBackoff must be > 0")
	}

	if c.MaxBackoff <= 0 {
		return errors.New("mretry: MaxBackoff must be > 0")
	}

	if c.MaxBackoff < c.InitialBackoff {
		return errors.New("mretry: MaxBackoff must be >= InitialBackoff")
	}

	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return errors.New("mretry: JitterFactor must be in [0, 1]")
	}

	return nil
}

// Backoff returns the delay to sleep before retry attempt n (1-indexed:
// n=1 is the delay before the first retry). The base grows
// exponentially and is capped at MaxBackoff, then jittered by up to
// JitterFactor in either direction.
func (c Config) Backoff(n int) time.Duration {
	base := float64(c.InitialBackoff) * float64(uint64(1)<<uint(n-1))
	if cap := float64(c.MaxBackoff); base > cap {
		base = cap
	}

	if c.JitterFactor <= 0 {
		return time.Duration(base)
	}

	jitter := base * c.JitterFactor
	delta := (rand.Float64()*2 - 1) * jitter

	d := time.Duration(base + delta)
	if d < 0 {
		d = 0
	}

	return d
}
