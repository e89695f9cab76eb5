// Package deepgram provides a Deepgram-backed ASR provider using the
// Deepgram streaming WebSocket API. It implements the asr.Provider
// interface.
//
// Each Listen call opens a fresh streaming session with server-side
// endpointing enabled, pumps PCM from the audio source, and returns the
// accumulated final transcript once Deepgram signals the end of the
// utterance. Recognition is single-shot by construction: the socket is torn
// down when Listen returns.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/intervox/pkg/audio"
	"github.com/MrWong99/intervox/pkg/provider/asr"
)

// Compile-time interface assertion.
var _ asr.Provider = (*Provider)(nil)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// endpointingMs is the server-side silence window (in milliseconds) after
	// which Deepgram marks a transcript as speech_final.
	endpointingMs = 300

	// defaultSilenceTimeout is how long to wait for any speech before the
	// call fails with asr.ErrNoSpeech.
	defaultSilenceTimeout = 8 * time.Second

	// defaultMaxUtterance bounds a single recognition pass.
	defaultMaxUtterance = 60 * time.Second

	// audioChunkSize is the PCM read granularity: 100 ms of 16-bit mono at 16 kHz.
	audioChunkSize = 3200
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default BCP-47 language code for recognition.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithBaseURL overrides the streaming endpoint URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.endpoint = u
	}
}

// Provider implements asr.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
	source   audio.Source
}

// New creates a new Deepgram Provider reading PCM from source. An empty
// apiKey is allowed — the provider then reports itself unavailable.
func New(apiKey string, source audio.Source, opts ...Option) (*Provider, error) {
	if source == nil {
		return nil, errors.New("deepgram: source must not be nil")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
		source:   source,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements asr.Provider.
func (p *Provider) Name() string { return "deepgram" }

// Available implements asr.Provider.
func (p *Provider) Available(_ context.Context) bool {
	return p.apiKey != ""
}

// result carries one parsed transcript event from the read loop.
type result struct {
	text        string
	isFinal     bool
	speechFinal bool
	err         error
}

// Listen implements asr.Provider.
func (p *Provider) Listen(ctx context.Context, cfg asr.ListenConfig) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("deepgram: %w", asr.ErrUnavailable)
	}

	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return "", fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return "", fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "listen complete")

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go p.pumpAudio(sessCtx, conn)

	results := make(chan result, 8)
	go readLoop(sessCtx, conn, results)

	silence := cfg.SilenceTimeout
	if silence <= 0 {
		silence = defaultSilenceTimeout
	}
	maxUtt := cfg.MaxUtterance
	if maxUtt <= 0 {
		maxUtt = defaultMaxUtterance
	}

	silenceTimer := time.NewTimer(silence)
	defer silenceTimer.Stop()
	maxTimer := time.NewTimer(maxUtt)
	defer maxTimer.Stop()

	var sb strings.Builder
	silenceC := silenceTimer.C

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-silenceC:
			return "", fmt.Errorf("deepgram: %w", asr.ErrNoSpeech)

		case <-maxTimer.C:
			if sb.Len() > 0 {
				return strings.TrimSpace(sb.String()), nil
			}
			return "", fmt.Errorf("deepgram: %w", asr.ErrNoSpeech)

		case r, ok := <-results:
			if !ok || r.err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				if sb.Len() > 0 {
					// Connection dropped after speech was captured; salvage it.
					return strings.TrimSpace(sb.String()), nil
				}
				if !ok {
					return "", errors.New("deepgram: connection closed before any transcript")
				}
				return "", fmt.Errorf("deepgram: read transcript: %w", r.err)
			}
			if r.isFinal && r.text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(r.text)
				// Speech arrived; the silence window no longer applies.
				silenceC = nil
			}
			if r.speechFinal && sb.Len() > 0 {
				return strings.TrimSpace(sb.String()), nil
			}
		}
	}
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg asr.ListenConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	format := p.source.Format()

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "false")
	q.Set("endpointing", strconv.Itoa(endpointingMs))
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(format.SampleRate))
	if format.Channels > 0 {
		q.Set("channels", strconv.Itoa(format.Channels))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// pumpAudio reads PCM chunks from the source and sends them as binary
// messages until the session context ends or the source dries up. A
// CloseStream message flushes any buffered audio server-side on exit.
func (p *Provider) pumpAudio(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		_ = conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
	}()

	buf := make([]byte, audioChunkSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := p.source.Read(buf)
		if n > 0 {
			if werr := conn.Write(ctx, websocket.MessageBinary, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// readLoop receives JSON messages from Deepgram and dispatches parsed
// transcript events to results. The channel is closed when the connection
// ends.
func readLoop(ctx context.Context, conn *websocket.Conn, results chan<- result) {
	defer close(results)

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation — exit gracefully.
			return
		}

		r, ok := parseResponse(msg)
		if !ok {
			continue
		}

		select {
		case results <- r:
		case <-ctx.Done():
			return
		}
	}
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResponse parses a raw Deepgram WebSocket message into a result.
// Returns (result, true) on success, or (zero, false) if the message should
// be ignored.
func parseResponse(data []byte) (result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, false
	}
	if resp.Type != "Results" {
		return result{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return result{}, false
	}

	return result{
		text:        strings.TrimSpace(resp.Channel.Alternatives[0].Transcript),
		isFinal:     resp.IsFinal,
		speechFinal: resp.SpeechFinal,
	}, true
}
