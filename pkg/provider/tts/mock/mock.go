// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to script synthesis outcomes and to verify the text and voice
// parameters passed by the speech gateway.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/intervox/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the utterance passed to Synthesize.
	Text string
	// Voice is the VoiceProfile passed to Synthesize.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable behaviour ---

	// ProviderName is returned by Name. Defaults to "mock" when empty.
	ProviderName string

	// AvailableResult is returned by Available.
	AvailableResult bool

	// SynthesizeErrs is consumed one entry per Synthesize call; a nil entry
	// means success. Calls beyond the slice succeed.
	SynthesizeErrs []error

	// Block, when true, makes Synthesize wait until its context is cancelled
	// and then return the context error. Used to test interruption.
	Block bool

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// AvailableCalls counts calls to Available.
	AvailableCalls int
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Name implements tts.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Available records the call and returns AvailableResult.
func (p *Provider) Available(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AvailableCalls++
	return p.AvailableResult
}

// Synthesize records the call and returns the next scripted error.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) error {
	p.mu.Lock()
	idx := len(p.SynthesizeCalls)
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	var err error
	if idx < len(p.SynthesizeErrs) {
		err = p.SynthesizeErrs[idx]
	}
	block := p.Block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.AvailableCalls = 0
}
