// Package mock provides a test double for the asr.Provider interface.
//
// Use Provider to script a sequence of listen outcomes (transcripts and
// errors) and to verify the configurations passed by the listen gateway.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/intervox/pkg/provider/asr"
)

// ListenResult scripts the outcome of one Listen call.
type ListenResult struct {
	// Transcript is returned when Err is nil.
	Transcript string
	// Err, if non-nil, is returned instead of a transcript.
	Err error
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable behaviour ---

	// ProviderName is returned by Name. Defaults to "mock" when empty.
	ProviderName string

	// AvailableResult is returned by Available.
	AvailableResult bool

	// Results is consumed one entry per Listen call. Calls beyond the slice
	// block until the context is cancelled (simulating an open microphone
	// with no speech).
	Results []ListenResult

	// --- Call records ---

	// ListenCalls records every ListenConfig passed to Listen in order.
	ListenCalls []asr.ListenConfig
}

// Compile-time interface assertion.
var _ asr.Provider = (*Provider)(nil)

// Name implements asr.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Available returns AvailableResult.
func (p *Provider) Available(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.AvailableResult
}

// Listen records the call and returns the next scripted result. When the
// script is exhausted it blocks until ctx is cancelled.
func (p *Provider) Listen(ctx context.Context, cfg asr.ListenConfig) (string, error) {
	p.mu.Lock()
	idx := len(p.ListenCalls)
	p.ListenCalls = append(p.ListenCalls, cfg)
	var r *ListenResult
	if idx < len(p.Results) {
		res := p.Results[idx]
		r = &res
	}
	p.mu.Unlock()

	if r == nil {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Transcript, nil
}

// CallCount returns the number of Listen invocations so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ListenCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListenCalls = nil
}
