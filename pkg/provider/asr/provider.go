// Package asr defines the Provider interface for speech-recognition backends.
//
// An ASR provider performs single-shot recognition: one call captures one
// candidate utterance and returns its final transcript. Continuous
// recognition is deliberately absent — the conversation engine alternates
// strictly between speaking and listening, so each listen is a bounded,
// self-terminating pass.
package asr

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Listen. Providers wrap these with their own
// package prefix; callers test with errors.Is.
var (
	// ErrNoSpeech indicates the silence window elapsed without any speech.
	// Recoverable — the engine retries after a short backoff.
	ErrNoSpeech = errors.New("no speech detected")

	// ErrUnavailable indicates the provider cannot operate at all (no
	// credential, no audio source). Fatal to the session.
	ErrUnavailable = errors.New("recognition unavailable")
)

// ListenConfig carries per-call recognition parameters.
type ListenConfig struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en", "es-ES").
	Language string

	// SilenceTimeout is how long to wait for speech to begin before giving
	// up with ErrNoSpeech. Zero means the provider default.
	SilenceTimeout time.Duration

	// MaxUtterance caps the total length of one recognition pass. Zero means
	// the provider default.
	MaxUtterance time.Duration
}

// Provider is the abstraction over any speech-recognition backend.
//
// Implementations must be safe for concurrent use, although the listen
// gateway guarantees at most one Listen is in flight per session.
type Provider interface {
	// Name returns the short provider name used in config, logs, and metrics.
	Name() string

	// Available reports whether the provider is usable: configured with
	// credentials and attached to an audio source.
	Available(ctx context.Context) bool

	// Listen captures one utterance and returns its final transcript.
	// It returns an error wrapping ErrNoSpeech when the speaker stays
	// silent, or ctx.Err() when cancelled; any other error is a transport
	// or service failure.
	Listen(ctx context.Context, cfg ListenConfig) (string, error)
}
