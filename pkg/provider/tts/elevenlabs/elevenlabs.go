// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// HTTP streaming synthesis API. It implements the tts.Provider interface.
//
// Synthesis is performed via POST /v1/text-to-speech/{voice}/stream with
// output_format=pcm_16000; the raw PCM response is resampled to the sink's
// rate and written through as it arrives, so playback begins before the
// full utterance has been synthesised.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/intervox/pkg/audio"
	"github.com/MrWong99/intervox/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModelID = "eleven_multilingual_v2"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM" // "Rachel", the ElevenLabs default

	// pcmRate is the sample rate requested from the API (output_format=pcm_16000).
	pcmRate = 16000

	// copyChunkSize is the read granularity when relaying PCM to the sink.
	copyChunkSize = 4096

	defaultTimeout = 30 * time.Second
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithModelID sets the ElevenLabs model (default "eleven_multilingual_v2").
func WithModelID(id string) Option {
	return func(p *Provider) {
		p.modelID = id
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by the ElevenLabs API.
// It is safe for concurrent use.
type Provider struct {
	apiKey     string
	baseURL    string
	modelID    string
	sink       audio.Sink
	httpClient *http.Client
}

// New creates an ElevenLabs Provider that plays synthesised audio through
// sink. An empty apiKey is allowed — the provider then reports itself as
// unavailable so the speech gateway can skip it.
func New(apiKey string, sink audio.Sink, opts ...Option) (*Provider, error) {
	if sink == nil {
		return nil, errors.New("elevenlabs: sink must not be nil")
	}
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		modelID: defaultModelID,
		sink:    sink,
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
func (p *Provider) Name() string { return "elevenlabs" }

// Available implements tts.Provider. ElevenLabs is a remote service, so the
// probe is credential presence; network failures surface per-utterance.
func (p *Provider) Available(_ context.Context) bool {
	return p.apiKey != ""
}

// synthesizeRequest is the JSON body for POST /v1/text-to-speech/{voice}/stream.
type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// API bounds for voice_settings.speed; requests outside them are rejected.
const (
	minSpeed = 0.7
	maxSpeed = 1.2
)

// speedFromRate maps the profile's speaking rate onto the API's narrower
// speed range. Zero means unset and keeps the voice default.
func speedFromRate(rate float64) float64 {
	switch {
	case rate == 0:
		return 0
	case rate < minSpeed:
		return minSpeed
	case rate > maxSpeed:
		return maxSpeed
	}
	return rate
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) error {
	if p.apiKey == "" {
		return errors.New("elevenlabs: no API key configured")
	}

	voiceID := voice.ID
	if voiceID == "" {
		voiceID = defaultVoiceID
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: p.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           speedFromRate(voice.Rate),
		},
	})
	if err != nil {
		return fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=pcm_16000", p.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("elevenlabs: synthesis cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("elevenlabs: POST text-to-speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("elevenlabs: POST text-to-speech returned status %d", resp.StatusCode)
	}

	return p.relayPCM(ctx, resp.Body)
}

// relayPCM copies PCM from the response body to the sink in fixed-size
// chunks, resampling when the sink rate differs from the API's 16 kHz.
func (p *Provider) relayPCM(ctx context.Context, r io.Reader) error {
	sinkRate := p.sink.Format().SampleRate
	buf := make([]byte, copyChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("elevenlabs: playback cancelled: %w", err)
		}
		n, err := r.Read(buf)
		if n > 0 {
			pcm := buf[:n]
			if sinkRate != 0 && sinkRate != pcmRate {
				pcm = audio.ResampleMono16(pcm, pcmRate, sinkRate)
			}
			if _, werr := p.sink.Write(pcm); werr != nil {
				return fmt.Errorf("elevenlabs: write to sink: %w", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("elevenlabs: playback cancelled: %w", ctx.Err())
			}
			return fmt.Errorf("elevenlabs: read audio stream: %w", err)
		}
	}
}
