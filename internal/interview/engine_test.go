package interview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/intervox/internal/gateway"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/pkg/provider/asr"
	"github.com/MrWong99/intervox/pkg/provider/tts"
	"github.com/MrWong99/intervox/pkg/store/memory"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// ---- fakes ----

type scriptedSpeech struct {
	mu      sync.Mutex
	errs    []error // consumed per call; nil entry means success
	calls   []string
	blockCh chan struct{} // non-nil: Speak blocks until Interrupt or ctx
	started chan struct{} // closed on the first Speak call
}

func newScriptedSpeech(errs ...error) *scriptedSpeech {
	return &scriptedSpeech{errs: errs, started: make(chan struct{})}
}

func (s *scriptedSpeech) Speak(ctx context.Context, text string, _ tts.VoiceProfile) error {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	if len(s.calls) == 1 {
		close(s.started)
	}
	var err error
	if len(s.errs) > 0 {
		err = s.errs[0]
		s.errs = s.errs[1:]
	}
	block := s.blockCh
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return &gateway.SpeechError{Cause: gateway.SpeechInterrupted}
	}
	return err
}

func (s *scriptedSpeech) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blockCh != nil {
		close(s.blockCh)
		s.blockCh = nil
	}
}

func (s *scriptedSpeech) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

type listenResult struct {
	text string
	err  error
}

type scriptedListen struct {
	mu       sync.Mutex
	results  []listenResult
	calls    int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newScriptedListen(results ...listenResult) *scriptedListen {
	return &scriptedListen{results: results, stopCh: make(chan struct{})}
}

func (l *scriptedListen) Listen(ctx context.Context, _ asr.ListenConfig) (string, error) {
	l.mu.Lock()
	l.calls++
	if len(l.results) == 0 {
		l.mu.Unlock()
		select {
		case <-ctx.Done():
		case <-l.stopCh:
		}
		return "", &gateway.RecognitionError{Cause: gateway.RecognitionAborted}
	}
	r := l.results[0]
	l.results = l.results[1:]
	l.mu.Unlock()
	return r.text, r.err
}

func (l *scriptedListen) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *scriptedListen) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type fakeGenerator struct {
	mu         sync.Mutex
	n          int
	analysis   *Analysis
	analyzeErr error
}

func (g *fakeGenerator) Greeting(SessionConfig) string { return "Welcome to the interview." }
func (g *fakeGenerator) Closing(SessionConfig) string  { return "Thanks for your time." }

func (g *fakeGenerator) NextUtterance(_ context.Context, _ SessionConfig, _ Phase, _ []Turn) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("Tell me more, part %d.", g.n)
}

func (g *fakeGenerator) FallbackUtterance(SessionConfig, Phase, []Turn) string {
	return "Could you walk me through that again?"
}

func (g *fakeGenerator) Analyze(context.Context, SessionConfig, []Turn) (*Analysis, error) {
	return g.analysis, g.analyzeErr
}

func (g *fakeGenerator) FallbackAnalysis(int, string) Analysis {
	return Analysis{
		OverallScore: 999, // sentinel; the engine must override with the local score
		Strengths:    []string{"completed the interview"},
		Improvements: []string{"expand answers"},
		Feedback:     "canned feedback",
	}
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		SessionID:     "interview-test-1",
		JobTitle:      "Software Engineer",
		CandidateName: "Jordan",
		Persona:       PersonaProfessional,
		Language:      "en",
	}
}

func testEngineConfig() EngineConfig {
	return EngineConfig{
		Session:      testSessionConfig(),
		RetryBackoff: time.Millisecond,
	}
}

// ---- tests ----

func TestEngineFullSession(t *testing.T) {
	speech := newScriptedSpeech()
	answers := make([]listenResult, 0, 9)
	for i := 0; i < 9; i++ {
		answers = append(answers, listenResult{text: fmt.Sprintf("answer number %d about my work", i+1)})
	}
	listen := newScriptedListen(answers...)
	gen := &fakeGenerator{}
	summaries := memory.New()

	var phases []Phase
	var completed *Result
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		WithSummaryStore(summaries),
		OnPhaseChange(func(p Phase) { phases = append(phases, p) }),
		OnCompleted(func(r Result) { completed = &r }),
	)

	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	wantPhases := []Phase{PhaseBackground, PhaseExperience, PhaseTechnical, PhaseClosing}
	if len(phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", phases, wantPhases)
	}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Errorf("phases[%d] = %v, want %v", i, phases[i], wantPhases[i])
		}
	}

	if completed == nil {
		t.Fatal("OnCompleted was not called")
	}
	if completed.QuestionsAnswered != 9 {
		t.Errorf("QuestionsAnswered = %d, want 9", completed.QuestionsAnswered)
	}
	if completed.Analysis.OverallScore < 60 || completed.Analysis.OverallScore > 100 {
		t.Errorf("OverallScore = %d outside [60, 100]", completed.Analysis.OverallScore)
	}
	if !eng.Ended() {
		t.Error("engine is not ended after Run returned")
	}

	// Greeting + 8 generated questions + closing line.
	spoken := speech.spoken()
	if len(spoken) != 10 {
		t.Errorf("spoke %d utterances, want 10: %v", len(spoken), spoken)
	}

	saved, err := summaries.Get(context.Background(), "interview-test-1")
	if err != nil {
		t.Fatalf("summary was not persisted: %v", err)
	}
	if saved.QuestionsAnswered != 9 {
		t.Errorf("persisted QuestionsAnswered = %d, want 9", saved.QuestionsAnswered)
	}
	if saved.JobTitle != "Software Engineer" {
		t.Errorf("persisted JobTitle = %q", saved.JobTitle)
	}
}

func TestEngineRecognitionRetriesThenRecoverableStatus(t *testing.T) {
	noSpeech := &gateway.RecognitionError{Cause: gateway.RecognitionNoSpeech}
	speech := newScriptedSpeech()
	listen := newScriptedListen(
		listenResult{err: noSpeech},
		listenResult{err: noSpeech},
		listenResult{text: "please finish the interview"},
	)
	gen := &fakeGenerator{}

	var statuses []Status
	var completed *Result
	cfg := testEngineConfig()
	cfg.ListenRetries = 1
	eng := NewEngine(cfg, speech, listen, gen,
		OnStatus(func(s Status) { statuses = append(statuses, s) }),
		OnCompleted(func(r Result) { completed = &r }),
	)

	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	var sawCannotHear bool
	for _, s := range statuses {
		if s == StatusCannotHear {
			sawCannotHear = true
		}
	}
	if !sawCannotHear {
		t.Errorf("statuses %v do not include cannot-hear", statuses)
	}
	if completed == nil {
		t.Fatal("session did not complete after recovering")
	}
}

func TestEngineFinishDuringSpeaking(t *testing.T) {
	speech := newScriptedSpeech()
	speech.blockCh = make(chan struct{})
	listen := newScriptedListen()
	gen := &fakeGenerator{}
	summaries := memory.New()

	var completed *Result
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		WithSummaryStore(summaries),
		OnCompleted(func(r Result) { completed = &r }),
	)

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background()) }()

	<-speech.started
	eng.Finish()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Finish")
	}

	if completed == nil {
		t.Fatal("OnCompleted was not called")
	}
	if completed.Analysis.OverallScore < 60 {
		t.Errorf("OverallScore = %d, want >= 60", completed.Analysis.OverallScore)
	}
	// The interrupted greeting must not be in the transcript.
	for _, turn := range completed.Turns {
		if turn.Speaker == SpeakerInterviewer {
			t.Errorf("interrupted utterance entered the transcript: %q", turn.Text)
		}
	}
	if _, err := summaries.Get(context.Background(), "interview-test-1"); err != nil {
		t.Errorf("summary was not persisted: %v", err)
	}
}

func TestEngineInterruptedUtteranceNotAppended(t *testing.T) {
	interrupted := &gateway.SpeechError{Cause: gateway.SpeechInterrupted}
	// Greeting succeeds, the first question is interrupted, the closing
	// line succeeds.
	speech := newScriptedSpeech(nil, interrupted, nil)
	listen := newScriptedListen(
		listenResult{text: "my first answer about the role"},
		listenResult{text: "finish the interview"},
	)
	gen := &fakeGenerator{}

	var completed *Result
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		OnCompleted(func(r Result) { completed = &r }),
	)

	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if completed == nil {
		t.Fatal("OnCompleted was not called")
	}
	for _, turn := range completed.Turns {
		if strings.HasPrefix(turn.Text, "Tell me more") {
			t.Errorf("interrupted question entered the transcript: %q", turn.Text)
		}
	}
}

func TestEngineSpeakRetriesOnceOnProviderError(t *testing.T) {
	provErr := &gateway.SpeechError{Cause: gateway.SpeechProviderError}
	// First greeting attempt fails; the retry succeeds.
	speech := newScriptedSpeech(provErr, nil, nil)
	listen := newScriptedListen(listenResult{text: "finish the interview"})
	gen := &fakeGenerator{}

	var completed *Result
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		OnCompleted(func(r Result) { completed = &r }),
	)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	spoken := speech.spoken()
	if len(spoken) < 2 || spoken[0] != spoken[1] {
		t.Errorf("greeting was not retried: %v", spoken)
	}
	if completed == nil {
		t.Fatal("OnCompleted was not called")
	}
	var greetings int
	for _, turn := range completed.Turns {
		if turn.Text == "Welcome to the interview." {
			greetings++
		}
	}
	if greetings != 1 {
		t.Errorf("greeting appears %d times in transcript, want 1", greetings)
	}
}

func TestEngineGreetingFailureIsFatal(t *testing.T) {
	provErr := &gateway.SpeechError{Cause: gateway.SpeechProviderError}
	// Both the greeting attempt and its retry fail.
	speech := newScriptedSpeech(provErr, provErr)
	listen := newScriptedListen()
	gen := &fakeGenerator{}

	var statuses []Status
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		OnStatus(func(s Status) { statuses = append(statuses, s) }),
	)
	if err := eng.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, want error when greeting cannot be spoken")
	}

	var sawFailed bool
	for _, s := range statuses {
		if s == StatusFailed {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Errorf("statuses %v do not include failed", statuses)
	}
}

func TestEngineRemoteAnalysisOverridesHeuristic(t *testing.T) {
	speech := newScriptedSpeech()
	listen := newScriptedListen(listenResult{text: "finish the interview"})
	gen := &fakeGenerator{analysis: &Analysis{
		OverallScore: 88,
		Strengths:    []string{"clear communication"},
		Improvements: []string{"more detail"},
		Feedback:     "solid interview",
	}}

	var completed *Result
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		OnCompleted(func(r Result) { completed = &r }),
	)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if completed.Analysis.OverallScore != 88 {
		t.Errorf("OverallScore = %d, want remote 88", completed.Analysis.OverallScore)
	}
}

func TestEngineAnalysisFailureFallsBackToLocalScore(t *testing.T) {
	speech := newScriptedSpeech()
	listen := newScriptedListen(listenResult{text: "finish the interview"})
	gen := &fakeGenerator{analyzeErr: fmt.Errorf("model unreachable")}

	var completed *Result
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		OnCompleted(func(r Result) { completed = &r }),
	)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	// The fake's fallback carries a sentinel score; the engine must replace
	// it with the locally computed one.
	if completed.Analysis.OverallScore == 999 {
		t.Error("engine kept the fallback score instead of the local heuristic")
	}
	if completed.Analysis.OverallScore < 60 || completed.Analysis.OverallScore > 100 {
		t.Errorf("OverallScore = %d outside [60, 100]", completed.Analysis.OverallScore)
	}
}

func TestEngineRemoteScoreClampedToBounds(t *testing.T) {
	tests := []struct {
		name   string
		remote int
		want   int
	}{
		{"below floor", 30, 60},
		{"above ceiling", 120, 100},
		{"in range kept", 75, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			speech := newScriptedSpeech()
			listen := newScriptedListen(listenResult{text: "finish the interview"})
			gen := &fakeGenerator{analysis: &Analysis{
				OverallScore: tt.remote,
				Feedback:     "model feedback",
			}}

			var completed *Result
			eng := NewEngine(testEngineConfig(), speech, listen, gen,
				OnCompleted(func(r Result) { completed = &r }),
			)
			if err := eng.Run(context.Background()); err != nil {
				t.Fatalf("Run() = %v", err)
			}
			if completed == nil {
				t.Fatal("OnCompleted was not called")
			}
			if completed.Analysis.OverallScore != tt.want {
				t.Errorf("OverallScore = %d for remote %d, want %d",
					completed.Analysis.OverallScore, tt.remote, tt.want)
			}
			// The rest of the remote assessment survives the clamp.
			if completed.Analysis.Feedback != "model feedback" {
				t.Errorf("Feedback = %q, want the remote text", completed.Analysis.Feedback)
			}
		})
	}
}

func TestEngineRecognizerUnavailableBeforeFirstAnswerIsFatal(t *testing.T) {
	unavailable := &gateway.RecognitionError{Cause: gateway.RecognitionUnavailable}
	speech := newScriptedSpeech()
	listen := newScriptedListen(
		listenResult{err: unavailable},
		listenResult{err: unavailable},
		listenResult{err: unavailable},
	)
	gen := &fakeGenerator{}

	var statuses []Status
	var completed *Result
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		OnStatus(func(s Status) { statuses = append(statuses, s) }),
		OnCompleted(func(r Result) { completed = &r }),
	)

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background()) }()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return; unavailable recognition must not be retried")
	}
	if err == nil {
		t.Fatal("Run() = nil, want error when no recognizer is usable before the first answer")
	}

	var sawFailed bool
	for _, s := range statuses {
		if s == StatusFailed {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Errorf("statuses %v do not include failed", statuses)
	}
	if completed != nil {
		t.Error("OnCompleted fired for a session that never heard the candidate")
	}
	// The gateway already walked its whole provider chain; one pass is enough.
	if calls := listen.callCount(); calls != 1 {
		t.Errorf("Listen called %d times, want 1", calls)
	}
}

func TestEngineRecognizerUnavailableMidSessionWrapsUp(t *testing.T) {
	unavailable := &gateway.RecognitionError{Cause: gateway.RecognitionUnavailable}
	speech := newScriptedSpeech()
	listen := newScriptedListen(
		listenResult{text: "my first answer about the role"},
		listenResult{err: unavailable},
	)
	gen := &fakeGenerator{}
	summaries := memory.New()

	var completed *Result
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		WithSummaryStore(summaries),
		OnCompleted(func(r Result) { completed = &r }),
	)

	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want graceful wrap-up once an answer exists", err)
	}
	if completed == nil {
		t.Fatal("OnCompleted was not called")
	}
	if completed.QuestionsAnswered != 1 {
		t.Errorf("QuestionsAnswered = %d, want 1", completed.QuestionsAnswered)
	}
	if completed.Analysis.OverallScore < 60 || completed.Analysis.OverallScore > 100 {
		t.Errorf("OverallScore = %d outside [60, 100]", completed.Analysis.OverallScore)
	}
	if _, err := summaries.Get(context.Background(), "interview-test-1"); err != nil {
		t.Errorf("summary was not persisted: %v", err)
	}
}

func TestEngineSpeakRetryUsesLocalLine(t *testing.T) {
	provErr := &gateway.SpeechError{Cause: gateway.SpeechProviderError}
	// Greeting succeeds, the first generated question fails, the retry and
	// the closing line succeed.
	speech := newScriptedSpeech(nil, provErr, nil, nil)
	listen := newScriptedListen(
		listenResult{text: "my first answer about the role"},
		listenResult{text: "finish the interview"},
	)
	gen := &fakeGenerator{}

	var completed *Result
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		OnCompleted(func(r Result) { completed = &r }),
	)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	spoken := speech.spoken()
	if len(spoken) < 3 {
		t.Fatalf("spoke %d utterances, want at least 3: %v", len(spoken), spoken)
	}
	if spoken[1] != "Tell me more, part 1." {
		t.Fatalf("first question attempt = %q", spoken[1])
	}
	if spoken[2] == spoken[1] {
		t.Errorf("retry repeated the failed model line %q instead of substituting a local one", spoken[2])
	}
	if spoken[2] != "Could you walk me through that again?" {
		t.Errorf("retry spoke %q, want the generator's local line", spoken[2])
	}

	if completed == nil {
		t.Fatal("OnCompleted was not called")
	}
	// The transcript records what actually played, not what failed.
	var sawLocal bool
	for _, turn := range completed.Turns {
		if turn.Text == "Tell me more, part 1." {
			t.Errorf("failed utterance entered the transcript: %q", turn.Text)
		}
		if turn.Text == "Could you walk me through that again?" {
			sawLocal = true
		}
	}
	if !sawLocal {
		t.Error("the retried local line is missing from the transcript")
	}
}

func TestEngineRecordsExchangeDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	speech := newScriptedSpeech()
	listen := newScriptedListen(
		listenResult{text: "my first answer about the role"},
		listenResult{text: "finish the interview"},
	)
	gen := &fakeGenerator{}

	eng := NewEngine(testEngineConfig(), speech, listen, gen, WithMetrics(metrics))
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var count uint64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "intervox.exchange.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("exchange duration data is %T, want Histogram[float64]", m.Data)
			}
			for _, dp := range hist.DataPoints {
				count += dp.Count
			}
		}
	}
	// One greeting-to-answer exchange completed before the finish command.
	if count != 1 {
		t.Errorf("exchange duration recorded %d times, want 1", count)
	}
}

func TestEngineFinishIsIdempotent(t *testing.T) {
	speech := newScriptedSpeech()
	listen := newScriptedListen(listenResult{text: "finish the interview"})
	gen := &fakeGenerator{}

	var completions int
	eng := NewEngine(testEngineConfig(), speech, listen, gen,
		OnCompleted(func(Result) { completions++ }),
	)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	eng.Finish()
	eng.Finish()
	if completions != 1 {
		t.Errorf("OnCompleted called %d times, want 1", completions)
	}
}
