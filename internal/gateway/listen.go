package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/resilience"
	"github.com/MrWong99/intervox/pkg/provider/asr"
)

// RecognitionCause classifies why a Listen call returned no transcript.
type RecognitionCause string

const (
	// RecognitionNoSpeech means the recogniser ran but heard nothing before
	// the silence window elapsed.
	RecognitionNoSpeech RecognitionCause = "no-speech"

	// RecognitionNetwork means the provider or its connection failed.
	RecognitionNetwork RecognitionCause = "network"

	// RecognitionAborted means the call was stopped before completion, either
	// by Stop, by the caller's context, or because it was refused (a listen
	// was already running, or the interviewer was speaking).
	RecognitionAborted RecognitionCause = "aborted"

	// RecognitionUnavailable means no recognition provider was usable.
	RecognitionUnavailable RecognitionCause = "unavailable"
)

// RecognitionError is returned by [ListenGateway.Listen] when no transcript
// was produced.
type RecognitionError struct {
	Cause RecognitionCause
	Err   error
}

// Error implements the error interface.
func (e *RecognitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recognition: %s: %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("recognition: %s", e.Cause)
}

// Unwrap returns the underlying provider error, if any.
func (e *RecognitionError) Unwrap() error { return e.Err }

// ListenGateway runs speech recognition passes against the first healthy
// provider in its chain. At most one pass runs at a time, and a pass is
// refused while the speech gateway is playing an utterance so the system
// never transcribes its own voice.
type ListenGateway struct {
	chain   *resilience.Chain[asr.Provider]
	metrics *observe.Metrics

	// speaking reports whether synthesized audio is currently playing. When
	// nil, listens are never refused for that reason.
	speaking func() bool

	mu        sync.Mutex
	listening bool
	cancel    context.CancelFunc
}

// NewListenGateway creates a gateway over the given provider chain. The
// speaking func, typically [SpeechGateway.Speaking], gates recognition while
// an utterance plays; pass nil to disable the guard.
func NewListenGateway(chain *resilience.Chain[asr.Provider], speaking func() bool, metrics *observe.Metrics) *ListenGateway {
	return &ListenGateway{chain: chain, speaking: speaking, metrics: metrics}
}

// Listening reports whether a recognition pass is currently running.
func (g *ListenGateway) Listening() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listening
}

// Stop cancels a recognition pass in flight. The interrupted Listen call
// returns a [RecognitionError] with cause [RecognitionAborted].
func (g *ListenGateway) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
}

// Listen runs a single recognition pass and returns the transcript. It
// refuses to start while another pass is running or while the interviewer is
// speaking, returning [RecognitionAborted] in both cases.
//
// Aborted passes are not counted against the provider's circuit breaker;
// no-speech results count as successes (the provider did its job).
func (g *ListenGateway) Listen(ctx context.Context, cfg asr.ListenConfig) (string, error) {
	if g.speaking != nil && g.speaking() {
		return "", &RecognitionError{Cause: RecognitionAborted, Err: errors.New("utterance in progress")}
	}

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.mu.Lock()
	if g.listening {
		g.mu.Unlock()
		return "", &RecognitionError{Cause: RecognitionAborted, Err: errors.New("already listening")}
	}
	g.listening = true
	g.cancel = cancel
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.listening = false
		g.cancel = nil
		g.mu.Unlock()
	}()

	entry, err := g.chain.Pick(listenCtx)
	if err != nil {
		return "", &RecognitionError{Cause: RecognitionUnavailable, Err: err}
	}

	start := time.Now()
	transcript, listenErr := entry.Value.Listen(listenCtx, cfg)
	if g.metrics != nil {
		g.metrics.ListenDuration.Record(ctx, time.Since(start).Seconds())
	}

	switch {
	case listenErr == nil:
		entry.ReportSuccess()
		if g.metrics != nil {
			g.metrics.RecordProviderRequest(ctx, entry.Name, "asr", "ok")
		}
		return transcript, nil

	case errors.Is(listenErr, asr.ErrNoSpeech):
		// The recogniser worked; the candidate just stayed silent.
		entry.ReportSuccess()
		if g.metrics != nil {
			g.metrics.RecordProviderRequest(ctx, entry.Name, "asr", "no-speech")
		}
		return "", &RecognitionError{Cause: RecognitionNoSpeech, Err: listenErr}

	case listenCtx.Err() != nil:
		slog.Debug("recognition aborted", "provider", entry.Name)
		if g.metrics != nil {
			g.metrics.RecordProviderRequest(ctx, entry.Name, "asr", "aborted")
		}
		return "", &RecognitionError{Cause: RecognitionAborted, Err: listenErr}

	case errors.Is(listenErr, asr.ErrUnavailable):
		entry.ReportFailure()
		if g.metrics != nil {
			g.metrics.RecordProviderRequest(ctx, entry.Name, "asr", "error")
			g.metrics.RecordProviderError(ctx, entry.Name, "asr")
		}
		return "", &RecognitionError{Cause: RecognitionUnavailable, Err: listenErr}

	default:
		entry.ReportFailure()
		slog.Warn("recognition failed", "provider", entry.Name, "error", listenErr)
		if g.metrics != nil {
			g.metrics.RecordProviderRequest(ctx, entry.Name, "asr", "error")
			g.metrics.RecordProviderError(ctx, entry.Name, "asr")
		}
		return "", &RecognitionError{Cause: RecognitionNetwork, Err: listenErr}
	}
}
