// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider turns one interviewer utterance into audio and delivers it
// to its configured playback sink, blocking until playback is complete. The
// speech gateway composes several providers into an ordered fallback list,
// probing each with Available before use.
//
// Implementors must be safe for concurrent use and must honor context
// cancellation promptly — the conversation engine cancels in-flight speech
// when the user finishes the interview.
package tts

import "context"

// VoiceProfile describes the voice parameters for one utterance.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier. Providers with a single
	// built-in voice may ignore it.
	ID string

	// Language is the BCP-47 language tag for synthesis (e.g., "en", "es").
	Language string

	// Rate adjusts speaking speed (0.5–2.0, 1.0 = default). Providers map it
	// onto whatever knob their API exposes, clamping to the API's range;
	// providers without a speed control ignore it.
	Rate float64

	// Pitch adjusts pitch (0.5–2.0, 1.0 = default). Best effort: neither the
	// ElevenLabs nor the Coqui API exposes a pitch control today, so current
	// providers ignore it.
	Pitch float64

	// Volume scales output amplitude (0.0–1.0, 1.0 = default). Best effort,
	// same caveat as Pitch.
	Volume float64
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Name returns the short provider name used in config, logs, and metrics.
	Name() string

	// Available reports whether the provider is usable right now: configured
	// with credentials and, for local servers, reachable. The speech gateway
	// calls this before every utterance to pick a provider.
	Available(ctx context.Context) bool

	// Synthesize converts text to speech and plays it through the provider's
	// sink, returning once playback has completed. A cancelled ctx aborts
	// synthesis and playback mid-utterance; the returned error then wraps
	// ctx.Err().
	Synthesize(ctx context.Context, text string, voice VoiceProfile) error
}
