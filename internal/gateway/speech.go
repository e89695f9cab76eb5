// Package gateway wraps the raw speech providers behind two small façades
// used by the conversation engine: [SpeechGateway] for text-to-speech and
// [ListenGateway] for speech recognition.
//
// Both gateways select their provider per call through a [resilience.Chain],
// so a failing provider is bypassed in favour of the next registered one.
// They also normalise provider errors into a small, stable cause vocabulary
// the engine can branch on without knowing which provider was in play.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/resilience"
	"github.com/MrWong99/intervox/pkg/provider/tts"
)

// SpeechCause classifies why a Speak call did not complete normally.
type SpeechCause string

const (
	// SpeechInterrupted means the utterance was cancelled mid-playback,
	// either by a newer Speak call or by the caller's context.
	SpeechInterrupted SpeechCause = "interrupted"

	// SpeechProviderError means the provider failed to synthesize or play
	// the utterance.
	SpeechProviderError SpeechCause = "provider-error"

	// SpeechUnavailable means no synthesis provider was usable.
	SpeechUnavailable SpeechCause = "unavailable"
)

// SpeechError is returned by [SpeechGateway.Speak] when an utterance does not
// play to completion.
type SpeechError struct {
	Cause SpeechCause
	Err   error
}

// Error implements the error interface.
func (e *SpeechError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speech: %s: %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("speech: %s", e.Cause)
}

// Unwrap returns the underlying provider error, if any.
func (e *SpeechError) Unwrap() error { return e.Err }

// SpeechGateway serialises text-to-speech output. Only one utterance plays at
// a time: a new Speak call interrupts any utterance still in flight before
// starting its own.
type SpeechGateway struct {
	chain   *resilience.Chain[tts.Provider]
	metrics *observe.Metrics

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
	gen      uint64

	// onState, when set, is invoked with true when playback starts and false
	// when it ends. Used by the listen gateway to suppress self-hearing.
	onState func(speaking bool)
}

// NewSpeechGateway creates a gateway over the given provider chain.
func NewSpeechGateway(chain *resilience.Chain[tts.Provider], metrics *observe.Metrics) *SpeechGateway {
	return &SpeechGateway{chain: chain, metrics: metrics}
}

// OnStateChange registers a callback fired when playback starts or ends.
// Must be called before the first Speak.
func (g *SpeechGateway) OnStateChange(fn func(speaking bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onState = fn
}

// Speaking reports whether an utterance is currently playing.
func (g *SpeechGateway) Speaking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speaking
}

// Interrupt cancels any utterance currently in flight. The interrupted Speak
// call returns a [SpeechError] with cause [SpeechInterrupted].
func (g *SpeechGateway) Interrupt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
}

// Speak synthesizes text through the first healthy provider and blocks until
// playback completes, the utterance is interrupted, or the provider fails.
//
// A nil return means the full utterance was played. Interruptions are not
// counted against the provider's circuit breaker.
func (g *SpeechGateway) Speak(ctx context.Context, text string, voice tts.VoiceProfile) error {
	entry, err := g.chain.Pick(ctx)
	if err != nil {
		return &SpeechError{Cause: SpeechUnavailable, Err: err}
	}

	speakCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel() // interrupt the previous utterance
	}
	g.cancel = cancel
	g.gen++
	myGen := g.gen
	g.speaking = true
	onState := g.onState
	g.mu.Unlock()

	if onState != nil {
		onState(true)
	}

	start := time.Now()
	synthErr := entry.Value.Synthesize(speakCtx, text, voice)

	g.mu.Lock()
	stillCurrent := g.gen == myGen
	if stillCurrent {
		// A newer Speak may have replaced us already; only the current
		// utterance owns the shared cancel and speaking state.
		g.cancel = nil
		g.speaking = false
	}
	g.mu.Unlock()

	if onState != nil && stillCurrent {
		onState(false)
	}

	if g.metrics != nil {
		g.metrics.SpeakDuration.Record(ctx, time.Since(start).Seconds())
	}

	switch {
	case synthErr == nil:
		entry.ReportSuccess()
		if g.metrics != nil {
			g.metrics.RecordProviderRequest(ctx, entry.Name, "tts", "ok")
		}
		return nil

	case speakCtx.Err() != nil:
		// Cancelled mid-playback. Not the provider's fault; report nothing.
		slog.Debug("utterance interrupted", "provider", entry.Name)
		if g.metrics != nil {
			g.metrics.RecordProviderRequest(ctx, entry.Name, "tts", "interrupted")
		}
		return &SpeechError{Cause: SpeechInterrupted, Err: synthErr}

	default:
		entry.ReportFailure()
		slog.Warn("synthesis failed", "provider", entry.Name, "error", synthErr)
		if g.metrics != nil {
			g.metrics.RecordProviderRequest(ctx, entry.Name, "tts", "error")
			g.metrics.RecordProviderError(ctx, entry.Name, "tts")
		}
		return &SpeechError{Cause: SpeechProviderError, Err: synthErr}
	}
}
