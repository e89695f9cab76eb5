package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNoneAvailable is returned by [Chain.Pick] when every entry is either
// unavailable per its probe or gated by an open circuit breaker.
var ErrNoneAvailable = errors.New("no provider available")

// Probe reports whether a provider can be used right now (credentials
// configured, local server reachable). Probes should be cheap; they run on
// every pick.
type Probe[T any] func(ctx context.Context, v T) bool

// Entry is a provider selected from a [Chain]. Callers must report the
// outcome of the provider call through ReportSuccess or ReportFailure so the
// entry's circuit breaker tracks its health. Cancelled calls should report
// neither.
type Entry[T any] struct {
	// Name is the registration name of this provider.
	Name string

	// Value is the provider itself.
	Value T

	breaker *CircuitBreaker
}

// ReportSuccess records a successful call against this entry's breaker.
func (e *Entry[T]) ReportSuccess() { e.breaker.RecordSuccess() }

// ReportFailure records a failed call against this entry's breaker.
func (e *Entry[T]) ReportFailure() { e.breaker.RecordFailure() }

// ChainConfig configures the per-entry circuit breaker created for each
// provider in a [Chain].
type ChainConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// Chain holds an ordered list of providers of the same type. Pick returns
// the first entry that is both admitted by its circuit breaker and available
// per the probe, so a preferred-but-broken provider is bypassed in favour of
// the next one in registration order.
//
// Chain is safe for concurrent use.
type Chain[T any] struct {
	mu      sync.RWMutex
	entries []*Entry[T]
	probe   Probe[T]
	cfg     ChainConfig
}

// NewChain creates an empty [Chain] with the given availability probe. A nil
// probe treats every entry as available.
func NewChain[T any](probe Probe[T], cfg ChainConfig) *Chain[T] {
	return &Chain[T]{probe: probe, cfg: cfg}
}

// Add appends a provider. Entries are considered in the order they are
// added.
func (c *Chain[T]) Add(name string, v T) {
	cbCfg := c.cfg.CircuitBreaker
	cbCfg.Name = name
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, &Entry[T]{
		Name:    name,
		Value:   v,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Len returns the number of registered entries.
func (c *Chain[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Pick returns the first healthy entry, or [ErrNoneAvailable] when no entry
// passes both its breaker and the probe.
func (c *Chain[T]) Pick(ctx context.Context) (*Entry[T], error) {
	c.mu.RLock()
	entries := make([]*Entry[T], len(c.entries))
	copy(entries, c.entries)
	probe := c.probe
	c.mu.RUnlock()

	for _, e := range entries {
		if !e.breaker.Allow() {
			slog.Debug("skipping provider (circuit open)", "provider", e.Name)
			continue
		}
		if probe != nil && !probe(ctx, e.Value) {
			slog.Debug("skipping provider (probe failed)", "provider", e.Name)
			continue
		}
		return e, nil
	}
	return nil, ErrNoneAvailable
}
