// Package coqui provides a TTS provider backed by a locally-running standard
// Coqui TTS server (ghcr.io/coqui-ai/tts-cpu). It implements the
// tts.Provider interface and plays the fallback role in the speech gateway:
// a self-hosted server needs no credentials, so it stays available when the
// remote provider is unconfigured or unreachable.
//
// Synthesis is performed via GET /api/tts with URL query parameters; the WAV
// response is stripped of its container header and the PCM is resampled to
// the sink's rate before playback.
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/intervox/pkg/audio"
	"github.com/MrWong99/intervox/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	ttsEndpoint     = "/api/tts"
	detailsEndpoint = "/details"

	defaultTimeout = 30 * time.Second

	// probeTimeout caps the availability check so a down server does not
	// stall utterance startup.
	probeTimeout = 2 * time.Second
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout for synthesis calls.
// Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by a local Coqui TTS server.
// It is safe for concurrent use.
type Provider struct {
	serverURL  string
	sink       audio.Sink
	httpClient *http.Client
}

// New creates a Coqui Provider targeting the TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, sink audio.Sink, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	if sink == nil {
		return nil, errors.New("coqui: sink must not be nil")
	}
	p := &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		sink:      sink,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "coqui" }

// Available implements tts.Provider by probing GET /details with a short
// deadline. A reachable server answering 200 counts as available.
func (p *Provider) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+detailsEndpoint, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Synthesize implements tts.Provider. The voice ID maps to the server's
// speaker_id parameter and is optional for single-speaker models. The /api/tts
// endpoint accepts no rate, pitch, or volume parameters, so those profile
// fields are ignored here.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) error {
	params := url.Values{}
	params.Set("text", text)
	if voice.ID != "" {
		params.Set("speaker_id", voice.ID)
	}
	if voice.Language != "" {
		params.Set("language_id", voice.Language)
	}

	reqURL := p.serverURL + ttsEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("coqui: synthesis cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("coqui: GET %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coqui: GET %s returned status %d", ttsEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("coqui: synthesis cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("coqui: read WAV response: %w", err)
	}

	return p.playWAV(ctx, wav)
}

// playWAV strips the WAV container, resamples mono PCM to the sink rate, and
// writes it through in fixed-size chunks so cancellation takes effect
// mid-utterance.
func (p *Provider) playWAV(ctx context.Context, wav []byte) error {
	info, err := audio.ParseWAV(wav)
	if err != nil {
		return fmt.Errorf("coqui: %w", err)
	}

	pcm := wav[info.DataOffset:]
	sinkRate := p.sink.Format().SampleRate
	if sinkRate != 0 && info.SampleRate != sinkRate && info.Channels == 1 {
		pcm = audio.ResampleMono16(pcm, info.SampleRate, sinkRate)
	}

	const chunk = 4096
	for len(pcm) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("coqui: playback cancelled: %w", err)
		}
		end := min(chunk, len(pcm))
		if _, err := p.sink.Write(pcm[:end]); err != nil {
			return fmt.Errorf("coqui: write to sink: %w", err)
		}
		pcm = pcm[end:]
	}
	return nil
}
