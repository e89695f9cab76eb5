package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/intervox/internal/resilience"
	"github.com/MrWong99/intervox/pkg/provider/tts"
	ttsmock "github.com/MrWong99/intervox/pkg/provider/tts/mock"
)

func newTTSChain(providers ...*ttsmock.Provider) *resilience.Chain[tts.Provider] {
	chain := resilience.NewChain[tts.Provider](
		func(ctx context.Context, p tts.Provider) bool { return p.Available(ctx) },
		resilience.ChainConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: time.Hour, // never half-opens within a test
		}},
	)
	for _, p := range providers {
		chain.Add(p.Name(), p)
	}
	return chain
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSpeakSuccess(t *testing.T) {
	p := &ttsmock.Provider{AvailableResult: true}
	g := NewSpeechGateway(newTTSChain(p), nil)

	voice := tts.VoiceProfile{ID: "v1", Language: "en", Rate: 1.0}
	if err := g.Speak(context.Background(), "hello", voice); err != nil {
		t.Fatalf("Speak() = %v", err)
	}
	if len(p.SynthesizeCalls) != 1 {
		t.Fatalf("Synthesize called %d times, want 1", len(p.SynthesizeCalls))
	}
	if p.SynthesizeCalls[0].Text != "hello" || p.SynthesizeCalls[0].Voice.ID != "v1" {
		t.Errorf("Synthesize got %+v", p.SynthesizeCalls[0])
	}
	if g.Speaking() {
		t.Error("Speaking() = true after playback completed")
	}
}

func TestSpeakUnavailableWhenNoProviderPasses(t *testing.T) {
	p := &ttsmock.Provider{AvailableResult: false}
	g := NewSpeechGateway(newTTSChain(p), nil)

	err := g.Speak(context.Background(), "hello", tts.VoiceProfile{})
	var serr *SpeechError
	if !errors.As(err, &serr) || serr.Cause != SpeechUnavailable {
		t.Fatalf("Speak() = %v, want unavailable", err)
	}
	if len(p.SynthesizeCalls) != 0 {
		t.Error("Synthesize was called on an unavailable provider")
	}
}

func TestSpeakFallsBackToSecondProvider(t *testing.T) {
	down := &ttsmock.Provider{ProviderName: "primary", AvailableResult: false}
	up := &ttsmock.Provider{ProviderName: "backup", AvailableResult: true}
	g := NewSpeechGateway(newTTSChain(down, up), nil)

	if err := g.Speak(context.Background(), "hello", tts.VoiceProfile{}); err != nil {
		t.Fatalf("Speak() = %v", err)
	}
	if len(up.SynthesizeCalls) != 1 {
		t.Errorf("backup Synthesize called %d times, want 1", len(up.SynthesizeCalls))
	}
}

func TestSpeakInterrupt(t *testing.T) {
	p := &ttsmock.Provider{AvailableResult: true, Block: true}
	g := NewSpeechGateway(newTTSChain(p), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- g.Speak(context.Background(), "long monologue", tts.VoiceProfile{}) }()

	waitFor(t, g.Speaking, "Speak never started")
	g.Interrupt()

	select {
	case err := <-errCh:
		var serr *SpeechError
		if !errors.As(err, &serr) || serr.Cause != SpeechInterrupted {
			t.Fatalf("Speak() = %v, want interrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Speak did not return after Interrupt")
	}
	if g.Speaking() {
		t.Error("Speaking() = true after interruption")
	}
}

func TestInterruptionsDoNotTripBreaker(t *testing.T) {
	p := &ttsmock.Provider{AvailableResult: true, Block: true}
	g := NewSpeechGateway(newTTSChain(p), nil)

	// More interruptions than the breaker's failure budget.
	for i := 0; i < 5; i++ {
		errCh := make(chan error, 1)
		go func() { errCh <- g.Speak(context.Background(), "utterance", tts.VoiceProfile{}) }()
		waitFor(t, g.Speaking, "Speak never started")
		g.Interrupt()
		<-errCh
	}

	// The provider must still be picked: an unavailable result here would
	// mean interruptions were counted as failures.
	errCh := make(chan error, 1)
	go func() { errCh <- g.Speak(context.Background(), "one more", tts.VoiceProfile{}) }()
	waitFor(t, g.Speaking, "Speak never started after interruptions")
	g.Interrupt()
	err := <-errCh
	var serr *SpeechError
	if errors.As(err, &serr) && serr.Cause == SpeechUnavailable {
		t.Fatal("interruptions opened the circuit breaker")
	}
}

func TestSpeakProviderFailuresOpenBreaker(t *testing.T) {
	boom := errors.New("synthesis exploded")
	p := &ttsmock.Provider{
		AvailableResult: true,
		SynthesizeErrs:  []error{boom, boom, boom},
	}
	g := NewSpeechGateway(newTTSChain(p), nil)

	for i := 0; i < 3; i++ {
		err := g.Speak(context.Background(), "hello", tts.VoiceProfile{})
		var serr *SpeechError
		if !errors.As(err, &serr) || serr.Cause != SpeechProviderError {
			t.Fatalf("Speak() #%d = %v, want provider-error", i+1, err)
		}
	}

	err := g.Speak(context.Background(), "hello", tts.VoiceProfile{})
	var serr *SpeechError
	if !errors.As(err, &serr) || serr.Cause != SpeechUnavailable {
		t.Fatalf("Speak() after 3 failures = %v, want unavailable", err)
	}
	if len(p.SynthesizeCalls) != 3 {
		t.Errorf("Synthesize called %d times, want 3 (breaker open)", len(p.SynthesizeCalls))
	}
}

func TestNewSpeakInterruptsPrevious(t *testing.T) {
	p := &ttsmock.Provider{AvailableResult: true, Block: true}
	g := NewSpeechGateway(newTTSChain(p), nil)

	firstErr := make(chan error, 1)
	go func() { firstErr <- g.Speak(context.Background(), "first", tts.VoiceProfile{}) }()
	waitFor(t, g.Speaking, "first Speak never started")

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	secondErr := make(chan error, 1)
	go func() { secondErr <- g.Speak(ctx2, "second", tts.VoiceProfile{}) }()

	select {
	case err := <-firstErr:
		var serr *SpeechError
		if !errors.As(err, &serr) || serr.Cause != SpeechInterrupted {
			t.Fatalf("first Speak() = %v, want interrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first Speak was not interrupted by the second")
	}

	cancel2()
	<-secondErr
}

func TestSpeakStateCallback(t *testing.T) {
	p := &ttsmock.Provider{AvailableResult: true}
	g := NewSpeechGateway(newTTSChain(p), nil)

	var states []bool
	g.OnStateChange(func(speaking bool) { states = append(states, speaking) })

	if err := g.Speak(context.Background(), "hello", tts.VoiceProfile{}); err != nil {
		t.Fatalf("Speak() = %v", err)
	}
	if len(states) != 2 || !states[0] || states[1] {
		t.Errorf("state transitions = %v, want [true false]", states)
	}
}
