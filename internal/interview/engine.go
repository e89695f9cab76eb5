package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/intervox/internal/gateway"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/voicecmd"
	"github.com/MrWong99/intervox/pkg/provider/asr"
	"github.com/MrWong99/intervox/pkg/provider/tts"
	"github.com/MrWong99/intervox/pkg/store"
)

// Status is a transient engine condition reported through OnStatus. Statuses
// inform the operator; they never change the transcript.
type Status string

const (
	// StatusListening: a recognition pass is starting.
	StatusListening Status = "listening"

	// StatusThinking: the next interviewer line is being generated.
	StatusThinking Status = "thinking"

	// StatusSpeaking: an utterance is playing.
	StatusSpeaking Status = "speaking"

	// StatusCannotHear: recognition retries are exhausted; the engine keeps
	// listening but the candidate may need to check their microphone.
	StatusCannotHear Status = "cannot-hear"

	// StatusFailed: the session cannot proceed because no usable speech
	// provider was found for the greeting, or no usable recognition provider
	// before the first answer.
	StatusFailed Status = "failed"
)

// SpeechOutput is the slice of the speech gateway the engine needs.
type SpeechOutput interface {
	Speak(ctx context.Context, text string, voice tts.VoiceProfile) error
	Interrupt()
}

// SpeechInput is the slice of the listen gateway the engine needs.
type SpeechInput interface {
	Listen(ctx context.Context, cfg asr.ListenConfig) (string, error)
	Stop()
}

// Generator produces the interviewer's lines and the final analysis. It is
// implemented by the generate client; NextUtterance must never fail.
type Generator interface {
	Greeting(cfg SessionConfig) string
	Closing(cfg SessionConfig) string
	NextUtterance(ctx context.Context, cfg SessionConfig, phase Phase, turns []Turn) string

	// FallbackUtterance returns a locally produced line the engine can speak
	// in place of an utterance that failed to play. It must not call out.
	FallbackUtterance(cfg SessionConfig, phase Phase, turns []Turn) string

	Analyze(ctx context.Context, cfg SessionConfig, turns []Turn) (*Analysis, error)
	FallbackAnalysis(questionsAnswered int, language string) Analysis
}

// EngineConfig bundles everything one session needs.
type EngineConfig struct {
	Session SessionConfig

	// Thresholds paces the phase progression. Zero value means defaults.
	Thresholds PhaseThresholds

	// Scoring tunes the heuristic score. Zero value means defaults.
	Scoring ScoringConfig

	// ListenRetries is how many automatic retries follow a no-speech or
	// network recognition failure before a cannot-hear status is surfaced.
	// Default: 2.
	ListenRetries int

	// RetryBackoff is the pause between recognition retries. Default: 2s.
	RetryBackoff time.Duration

	// Voice is the synthesis profile for interviewer utterances.
	Voice tts.VoiceProfile

	// Listen configures each recognition pass.
	Listen asr.ListenConfig
}

func (c *EngineConfig) applyDefaults() {
	if c.Thresholds == (PhaseThresholds{}) {
		c.Thresholds = DefaultPhaseThresholds()
	}
	if c.Scoring == (ScoringConfig{}) {
		c.Scoring = DefaultScoringConfig()
	}
	if c.ListenRetries <= 0 {
		c.ListenRetries = 2
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
}

// ErrEnded is returned by Run when the session was finished externally
// before the conversation could start.
var ErrEnded = errors.New("interview: session already ended")

// Listening outcomes used between the conversation loop and
// [Engine.listenWithRetries].
var (
	// errWrapUp: Finish or context cancellation interrupted listening.
	errWrapUp = errors.New("wrap up")

	// errCannotHear: the retry budget for recoverable recognition failures
	// is exhausted; the caller may start a fresh budget.
	errCannotHear = errors.New("cannot hear")

	// errRecognizerGone: every recognition provider is unusable. The
	// conversation cannot continue without candidate input.
	errRecognizerGone = errors.New("speech recognition unavailable")
)

// Engine drives one interview session from greeting to final summary.
//
// The conversation loop runs on the goroutine that calls [Engine.Run]; all
// mutable state sits behind one mutex. Speak always completes (or fails)
// before the next listen starts, so the engine never talks over the
// candidate. [Engine.Finish] may be called from any goroutine; it cancels
// whatever provider call is in flight and the loop performs the wrap-up.
type Engine struct {
	cfg       EngineConfig
	speech    SpeechOutput
	listen    SpeechInput
	generator Generator
	recorder  *Recorder
	summaries store.SummaryStore
	metrics   *observe.Metrics

	mu              sync.Mutex
	started         bool
	ended           bool
	finishRequested bool
	lastPhase       Phase
	closingAsked    bool
	exchangeStart   time.Time // set when a question is spoken, zeroed on the answer

	onPhaseChange func(Phase)
	onTurn        func(Turn)
	onStatus      func(Status)
	onCompleted   func(Result)
}

// EngineOption customises an [Engine].
type EngineOption func(*Engine)

// WithSummaryStore persists the final summary on completion. Without it the
// result is only delivered through OnCompleted.
func WithSummaryStore(s store.SummaryStore) EngineOption {
	return func(e *Engine) { e.summaries = s }
}

// WithMetrics wires metric recording into the engine.
func WithMetrics(m *observe.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithRecorder replaces the recorder, letting tests inject a fake clock.
func WithRecorder(r *Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// OnPhaseChange registers a callback fired when the interview advances to a
// new phase. Set before Run.
func OnPhaseChange(fn func(Phase)) EngineOption {
	return func(e *Engine) { e.onPhaseChange = fn }
}

// OnTurn registers a callback fired for every appended transcript turn. Set
// before Run.
func OnTurn(fn func(Turn)) EngineOption {
	return func(e *Engine) { e.onTurn = fn }
}

// OnStatus registers a callback for transient status notifications. Set
// before Run.
func OnStatus(fn func(Status)) EngineOption {
	return func(e *Engine) { e.onStatus = fn }
}

// OnCompleted registers a callback fired exactly once with the final result.
// Set before Run.
func OnCompleted(fn func(Result)) EngineOption {
	return func(e *Engine) { e.onCompleted = fn }
}

// NewEngine assembles a session engine.
func NewEngine(cfg EngineConfig, speech SpeechOutput, listen SpeechInput, generator Generator, opts ...EngineOption) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:       cfg,
		speech:    speech,
		listen:    listen,
		generator: generator,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.recorder == nil {
		e.recorder = NewRecorder(cfg.Thresholds)
	}
	return e
}

// Finish ends the session from outside the loop: any in-flight speak or
// listen is cancelled and the conversation loop performs the wrap-up
// (analysis, closing line, persistence, OnCompleted). Safe to call multiple
// times and from any goroutine.
func (e *Engine) Finish() {
	e.mu.Lock()
	if e.ended || e.finishRequested {
		e.mu.Unlock()
		return
	}
	e.finishRequested = true
	started := e.started
	e.mu.Unlock()

	slog.Info("finish requested", "session", e.cfg.Session.SessionID)
	if started {
		e.speech.Interrupt()
		e.listen.Stop()
	}
}

// Ended reports whether the session has reached its terminal state.
func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

// Run executes the session until it terminates. It returns nil for a
// normally completed interview (including one ended by Finish) and an error
// only when the session cannot proceed: the greeting could not be spoken, or
// no recognition provider was usable before the first answer.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return ErrEnded
	}
	e.started = true
	finishEarly := e.finishRequested
	e.mu.Unlock()

	if finishEarly {
		e.complete(ctx, false)
		return nil
	}

	// Greeting. A speech failure here is fatal: a voice interview with no
	// voice cannot proceed. The greeting is already the local line, so the
	// retry speaks it again.
	greeting := e.generator.Greeting(e.cfg.Session)
	e.emitStatus(StatusSpeaking)
	spoken, err := e.speakWithFallbackRetry(ctx, greeting, func() string { return greeting })
	if err != nil {
		if e.isFinishRequested() {
			e.complete(ctx, false)
			return nil
		}
		e.emitStatus(StatusFailed)
		return fmt.Errorf("interview: greeting failed: %w", err)
	}
	e.appendInterviewer(spoken)

	for {
		if e.isFinishRequested() || ctx.Err() != nil {
			e.complete(ctx, false)
			return nil
		}

		transcript, lerr := e.listenWithRetries(ctx)
		switch {
		case lerr == nil:
			// Got an answer; fall through.
		case errors.Is(lerr, errCannotHear):
			// Recoverable; a fresh retry budget starts at the loop head.
			continue
		case errors.Is(lerr, errRecognizerGone):
			if e.recorder.QuestionsAnswered() == 0 {
				// The candidate was never heard. The session cannot start a
				// conversation, so fail it rather than loop forever.
				e.emitStatus(StatusFailed)
				return fmt.Errorf("interview: %w", lerr)
			}
			// Mid-conversation loss: score what was collected and wrap up.
			slog.Error("recognition providers exhausted mid-session, wrapping up",
				"session", e.cfg.Session.SessionID,
				"questions", e.recorder.QuestionsAnswered())
			e.complete(ctx, false)
			return nil
		default:
			// Finish requested or context cancelled mid-listen.
			e.complete(ctx, false)
			return nil
		}

		if voicecmd.IsFinishCommand(transcript, e.cfg.Session.Language) {
			slog.Info("spoken finish command recognized", "session", e.cfg.Session.SessionID)
			e.complete(ctx, true)
			return nil
		}

		e.appendCandidate(transcript)

		e.mu.Lock()
		phase := e.recorder.Phase()
		closingDone := phase == PhaseClosing && e.closingAsked
		e.mu.Unlock()

		if closingDone {
			e.complete(ctx, true)
			return nil
		}

		e.emitStatus(StatusThinking)
		utterance := e.generator.NextUtterance(ctx, e.cfg.Session, phase, e.recorder.Turns())

		if e.isFinishRequested() || ctx.Err() != nil {
			e.complete(ctx, false)
			return nil
		}

		e.emitStatus(StatusSpeaking)
		spoken, err := e.speakWithFallbackRetry(ctx, utterance, func() string {
			return e.generator.FallbackUtterance(e.cfg.Session, phase, e.recorder.Turns())
		})
		switch {
		case err == nil:
			e.appendInterviewer(spoken)
			if phase == PhaseClosing {
				e.mu.Lock()
				e.closingAsked = true
				e.mu.Unlock()
			}
		default:
			var serr *gateway.SpeechError
			if errors.As(err, &serr) && serr.Cause == gateway.SpeechInterrupted {
				// Interrupted utterances never enter the transcript. Resume
				// listening; if the interrupt came from Finish the loop head
				// handles it.
				continue
			}
			// Providers exhausted mid-session. Log and keep listening; the
			// candidate side of the conversation still works.
			slog.Error("speak failed mid-session", "session", e.cfg.Session.SessionID, "error", err)
		}
	}
}

// speakWithFallbackRetry plays an utterance, retrying exactly once with the
// locally produced line from localLine when the provider fails. It returns
// the text that actually played, which is what belongs in the transcript.
// Interruptions are returned as-is and never retried; localLine is only
// evaluated when a retry happens.
func (e *Engine) speakWithFallbackRetry(ctx context.Context, text string, localLine func() string) (string, error) {
	err := e.speech.Speak(ctx, text, e.cfg.Voice)
	if err == nil {
		return text, nil
	}
	var serr *gateway.SpeechError
	if errors.As(err, &serr) && serr.Cause == gateway.SpeechInterrupted {
		return "", err
	}
	retry := localLine()
	slog.Warn("synthesis failed, retrying once with the local line",
		"session", e.cfg.Session.SessionID, "error", err)
	if rerr := e.speech.Speak(ctx, retry, e.cfg.Voice); rerr != nil {
		return "", rerr
	}
	return retry, nil
}

// listenWithRetries runs recognition passes until a transcript arrives or
// the retry budget for recoverable failures is exhausted.
//
// It returns errWrapUp when the session should wrap up (Finish or context
// cancellation), errCannotHear after surfacing a cannot-hear status so the
// caller can loop with a fresh attempt budget, and errRecognizerGone when
// the whole provider chain is unusable — there is nothing to retry then,
// the gateway already walked every provider.
func (e *Engine) listenWithRetries(ctx context.Context) (string, error) {
	for attempt := 0; ; attempt++ {
		if e.isFinishRequested() || ctx.Err() != nil {
			return "", errWrapUp
		}

		e.emitStatus(StatusListening)
		transcript, err := e.listen.Listen(ctx, e.cfg.Listen)
		if err == nil {
			return transcript, nil
		}

		var rerr *gateway.RecognitionError
		if !errors.As(err, &rerr) {
			slog.Error("unexpected recognition error", "session", e.cfg.Session.SessionID, "error", err)
			return "", errWrapUp
		}

		switch rerr.Cause {
		case gateway.RecognitionAborted:
			// Stop() or context cancellation; the loop head decides.
			if e.isFinishRequested() || ctx.Err() != nil {
				return "", errWrapUp
			}
			continue

		case gateway.RecognitionUnavailable:
			return "", errRecognizerGone

		case gateway.RecognitionNoSpeech, gateway.RecognitionNetwork:
			if attempt < e.cfg.ListenRetries {
				slog.Debug("recognition retry",
					"session", e.cfg.Session.SessionID,
					"cause", string(rerr.Cause),
					"attempt", attempt+1)
				if !sleepCtx(ctx, e.cfg.RetryBackoff) {
					return "", errWrapUp
				}
				continue
			}
			slog.Warn("recognition retries exhausted",
				"session", e.cfg.Session.SessionID, "cause", string(rerr.Cause))
			e.emitStatus(StatusCannotHear)
			return "", errCannotHear

		default:
			slog.Error("recognition failed", "session", e.cfg.Session.SessionID, "error", err)
			e.emitStatus(StatusCannotHear)
			return "", errCannotHear
		}
	}
}

// complete performs the terminal transition exactly once: freeze the clock,
// produce the analysis, speak the closing line, persist, and notify.
// speakClosing is false when the session is being torn down and playing one
// more line would be unwelcome.
func (e *Engine) complete(ctx context.Context, speakClosing bool) {
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.ended = true
	e.mu.Unlock()

	e.recorder.End()

	// The wrap-up must survive the run context being cancelled by Finish.
	wrapCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	analysis := e.buildAnalysis(wrapCtx)

	if speakClosing {
		closing := e.generator.Closing(e.cfg.Session)
		if err := e.speech.Speak(wrapCtx, closing, e.cfg.Voice); err != nil {
			slog.Warn("closing line failed", "session", e.cfg.Session.SessionID, "error", err)
		} else {
			e.appendInterviewer(closing)
		}
	}

	result := Result{
		Config:            e.cfg.Session,
		Analysis:          analysis,
		Turns:             e.recorder.Turns(),
		QuestionsAnswered: e.recorder.QuestionsAnswered(),
		Duration:          e.recorder.Duration(),
		CompletedAt:       e.recorder.StartedAt().Add(e.recorder.Duration()),
	}

	if e.summaries != nil {
		if err := e.summaries.Save(wrapCtx, toStoreSummary(result)); err != nil {
			slog.Error("failed to persist summary", "session", e.cfg.Session.SessionID, "error", err)
		}
	}

	slog.Info("interview completed",
		"session", e.cfg.Session.SessionID,
		"questions", result.QuestionsAnswered,
		"score", result.Analysis.OverallScore,
		"duration", result.Duration.Round(time.Second))

	if e.onCompleted != nil {
		e.onCompleted(result)
	}
}

// buildAnalysis prefers the model's assessment and falls back to the local
// heuristic when the remote one is unavailable or malformed. The remote
// score is clamped into the configured [Floor, Ceiling] window so the final
// score stays within the same bounds the heuristic honors.
func (e *Engine) buildAnalysis(ctx context.Context) Analysis {
	local := HeuristicAnalysis(e.cfg.Scoring, e.recorder)

	remote, err := e.generator.Analyze(ctx, e.cfg.Session, e.recorder.Turns())
	if err != nil {
		slog.Warn("remote analysis failed, using heuristic", "session", e.cfg.Session.SessionID, "error", err)
		fb := e.generator.FallbackAnalysis(e.recorder.QuestionsAnswered(), e.cfg.Session.Language)
		fb.OverallScore = local.OverallScore
		return fb
	}
	if remote == nil {
		return local
	}
	a := *remote
	a.OverallScore = clampScore(e.cfg.Scoring, a.OverallScore)
	return a
}

func (e *Engine) appendInterviewer(text string) {
	e.recorder.RecordInterviewer(text)
	e.mu.Lock()
	e.exchangeStart = time.Now()
	e.mu.Unlock()
	if e.onTurn != nil {
		turns := e.recorder.Turns()
		e.onTurn(turns[len(turns)-1])
	}
}

func (e *Engine) appendCandidate(text string) {
	quality := e.recorder.RecordCandidate(text)
	slog.Debug("candidate answer recorded",
		"session", e.cfg.Session.SessionID,
		"quality", string(quality),
		"questions", e.recorder.QuestionsAnswered())

	e.mu.Lock()
	exchangeStart := e.exchangeStart
	e.exchangeStart = time.Time{}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.QuestionsAsked.Add(context.Background(), 1)
		if !exchangeStart.IsZero() {
			e.metrics.ExchangeDuration.Record(context.Background(), time.Since(exchangeStart).Seconds())
		}
	}
	if e.onTurn != nil {
		turns := e.recorder.Turns()
		e.onTurn(turns[len(turns)-1])
	}

	e.mu.Lock()
	phase := e.recorder.Phase()
	changed := phase != e.lastPhase
	e.lastPhase = phase
	onPhase := e.onPhaseChange
	e.mu.Unlock()

	if changed {
		slog.Info("phase advanced", "session", e.cfg.Session.SessionID, "phase", phase.String())
		if onPhase != nil {
			onPhase(phase)
		}
	}
}

func (e *Engine) emitStatus(s Status) {
	e.mu.Lock()
	fn := e.onStatus
	e.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (e *Engine) isFinishRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishRequested
}

// sleepCtx pauses for d, returning false if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// toStoreSummary converts a completed result into its persistence record.
func toStoreSummary(r Result) store.Summary {
	turns := make([]store.Turn, len(r.Turns))
	for i, t := range r.Turns {
		turns[i] = store.Turn{
			Speaker:   string(t.Speaker),
			Text:      t.Text,
			Quality:   string(t.Quality),
			Timestamp: t.Timestamp,
		}
	}
	return store.Summary{
		SessionID:         r.Config.SessionID,
		JobTitle:          r.Config.JobTitle,
		Company:           r.Config.Company,
		CandidateName:     r.Config.CandidateName,
		Persona:           string(r.Config.Persona),
		Language:          r.Config.Language,
		OverallScore:      r.Analysis.OverallScore,
		DurationMinutes:   r.Duration.Minutes(),
		QuestionsAnswered: r.QuestionsAnswered,
		Strengths:         r.Analysis.Strengths,
		Improvements:      r.Analysis.Improvements,
		Feedback:          r.Analysis.Feedback,
		Turns:             turns,
		CompletedAt:       r.CompletedAt,
	}
}
