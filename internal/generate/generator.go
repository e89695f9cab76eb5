package generate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/intervox/internal/interview"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/pkg/provider/llm"
	"github.com/MrWong99/intervox/pkg/types"
)

// defaultTimeout bounds each model call. The interview must keep moving; a
// model that hasn't answered in this window loses its turn to the fallback.
const defaultTimeout = 15 * time.Second

// Client produces interviewer utterances and the post-interview analysis.
// Question generation never fails: when the model errors or times out, the
// canned fallback line keeps the conversation going.
type Client struct {
	provider llm.Provider
	fallback *Fallback
	metrics  *observe.Metrics
	timeout  time.Duration
}

// ClientOption customises a [Client].
type ClientOption func(*Client)

// WithTimeout overrides the per-call model timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithMetrics wires metric recording into the client.
func WithMetrics(m *observe.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a generation client. A nil provider is allowed; every
// call then uses the fallback directly.
func NewClient(provider llm.Provider, fallback *Fallback, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		fallback: fallback,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Greeting returns the opening line. The greeting is always local: the
// session must start promptly even when the model is slow.
func (c *Client) Greeting(cfg interview.SessionConfig) string {
	return c.fallback.Greeting(cfg)
}

// Closing returns the final line spoken before the session ends.
func (c *Client) Closing(cfg interview.SessionConfig) string {
	return c.fallback.Closing(cfg)
}

// NextUtterance produces the interviewer's next line from the transcript so
// far. It never returns an error: model failures degrade to a canned
// follow-up matched to the candidate's last answer.
func (c *Client) NextUtterance(ctx context.Context, cfg interview.SessionConfig, phase interview.Phase, turns []interview.Turn) string {
	lastAnswer := lastCandidateAnswer(turns)

	if c.provider == nil {
		return c.fallback.Question(cfg, lastAnswer)
	}

	start := time.Now()
	text, err := c.streamUtterance(ctx, cfg, phase, turns)
	if c.metrics != nil {
		c.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Warn("generation failed, using fallback", "error", err, "phase", phase.String())
		if c.metrics != nil {
			c.metrics.GeneratorFallbacks.Add(ctx, 1)
		}
		return c.fallback.Question(cfg, lastAnswer)
	}
	return strings.TrimSpace(text)
}

// streamUtterance runs one streaming completion and accumulates the chunks.
func (c *Client) streamUtterance(ctx context.Context, cfg interview.SessionConfig, phase interview.Phase, turns []interview.Turn) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := llm.CompletionRequest{
		Messages:     BuildHistory(turns),
		SystemPrompt: SystemPrompt(cfg, phase),
		Temperature:  0.7,
		MaxTokens:    200,
	}
	if len(req.Messages) == 0 {
		// The model needs at least one message to respond to.
		req.Messages = []types.Message{{Role: types.RoleUser, Content: "Please begin the interview."}}
	}

	chunks, err := c.provider.StreamCompletion(callCtx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for chunk := range chunks {
		if chunk.FinishReason == "error" {
			return "", errors.New(chunk.Text)
		}
		b.WriteString(chunk.Text)
	}
	if callCtx.Err() != nil {
		return "", callCtx.Err()
	}
	return b.String(), nil
}

// Analyze asks the model to assess the finished interview. A nil return with
// nil error means no usable analysis was produced and the caller should fall
// back to local scoring.
func (c *Client) Analyze(ctx context.Context, cfg interview.SessionConfig, turns []interview.Turn) (*interview.Analysis, error) {
	if c.provider == nil {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := BuildHistory(turns)
	messages = append(messages, types.Message{Role: types.RoleUser, Content: analysisPrompt})

	req := llm.CompletionRequest{
		Messages:     messages,
		SystemPrompt: SystemPrompt(cfg, interview.PhaseClosing),
		Temperature:  0.2,
		MaxTokens:    500,
		JSONResponse: c.provider.Capabilities().SupportsJSONMode,
	}

	resp, err := c.provider.Complete(callCtx, req)
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(resp.Content)
	if err != nil {
		slog.Warn("analysis response was not valid JSON", "error", err)
		return nil, err
	}
	return analysis, nil
}

// parseAnalysis extracts the analysis JSON object from a model response that
// may wrap it in prose or code fences.
func parseAnalysis(content string) (*interview.Analysis, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in response")
	}

	var analysis interview.Analysis
	if err := json.Unmarshal([]byte(content[start:end+1]), &analysis); err != nil {
		return nil, err
	}
	if analysis.OverallScore < 0 || analysis.OverallScore > 100 {
		return nil, errors.New("overallScore out of range")
	}
	return &analysis, nil
}

// FallbackUtterance returns a locally produced question matched to the
// candidate's last answer. The engine speaks it in place of a model
// utterance that failed to play; no provider call is made.
func (c *Client) FallbackUtterance(cfg interview.SessionConfig, _ interview.Phase, turns []interview.Turn) string {
	return c.fallback.Question(cfg, lastCandidateAnswer(turns))
}

// FallbackAnalysis exposes the local stand-in assessment for callers that
// exhausted the remote path.
func (c *Client) FallbackAnalysis(questionsAnswered int, language string) interview.Analysis {
	return c.fallback.Analysis(questionsAnswered, language)
}

// lastCandidateAnswer returns the text of the most recent candidate turn.
func lastCandidateAnswer(turns []interview.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Speaker == interview.SpeakerCandidate {
			return turns[i].Text
		}
	}
	return ""
}
