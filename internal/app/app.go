// Package app wires all Intervox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the admin endpoint until the context ends, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithSummaryStore, WithMetrics, ...). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/intervox/internal/config"
	"github.com/MrWong99/intervox/internal/gateway"
	"github.com/MrWong99/intervox/internal/generate"
	"github.com/MrWong99/intervox/internal/health"
	"github.com/MrWong99/intervox/internal/interview"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/resilience"
	"github.com/MrWong99/intervox/pkg/provider/asr"
	"github.com/MrWong99/intervox/pkg/provider/llm"
	"github.com/MrWong99/intervox/pkg/provider/tts"
	"github.com/MrWong99/intervox/pkg/store"
	"github.com/MrWong99/intervox/pkg/store/memory"
	"github.com/MrWong99/intervox/pkg/store/postgres"
)

// NamedTTS pairs a synthesis provider with its registration name for the
// fallback chain.
type NamedTTS struct {
	Name     string
	Provider tts.Provider
}

// NamedASR pairs a recognition provider with its registration name.
type NamedASR struct {
	Name     string
	Provider asr.Provider
}

// Providers holds the instantiated providers. TTS and ASR are ordered:
// earlier entries are preferred. A nil LLM runs interviews on canned
// questions only. Populated by main.go via the config registry.
type Providers struct {
	LLM llm.Provider
	TTS []NamedTTS
	ASR []NamedASR
}

// SessionRequest describes one interview to start.
type SessionRequest struct {
	JobTitle      string
	Company       string
	CandidateName string

	// JobDescription and CVText give the question generator material to
	// tailor questions to; both optional.
	JobDescription string
	CVText         string

	// Persona and Language override the config defaults when non-empty.
	Persona  string
	Language string
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics   *observe.Metrics
	summaries store.SummaryStore
	speech    *gateway.SpeechGateway
	listen    *gateway.ListenGateway
	generator *generate.Client
	sessions  *SessionManager
	health    *health.Handler

	// logLevel, when set, receives hot-reloaded log level changes.
	logLevel *slog.LevelVar

	// tuning holds the hot-reloadable interview settings; sessions read it
	// at start.
	tuningMu sync.Mutex
	tuning   config.InterviewConfig

	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSummaryStore injects a summary store instead of creating one from config.
func WithSummaryStore(s store.SummaryStore) Option {
	return func(a *App) { a.summaries = s }
}

// WithMetrics injects a metrics instance instead of using the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar wires hot log-level reloads to the given variable.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		tuning:    cfg.Interview,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initGateways(); err != nil {
		return nil, fmt.Errorf("app: init gateways: %w", err)
	}
	a.initGenerator()
	a.sessions = NewSessionManager(a.metrics)
	a.initHealth()

	return a, nil
}

// initStore sets up the configured summary store or uses the injected one.
func (a *App) initStore(ctx context.Context) error {
	if a.summaries != nil {
		return nil
	}

	switch a.cfg.Store.Driver {
	case config.StorePostgres:
		pg, err := postgres.New(ctx, a.cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		a.summaries = pg
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})
	default:
		a.summaries = memory.New()
	}
	return nil
}

// initGateways builds the provider chains and the two speech gateways.
func (a *App) initGateways() error {
	if len(a.providers.TTS) == 0 {
		return errors.New("at least one TTS provider is required")
	}
	if len(a.providers.ASR) == 0 {
		return errors.New("at least one ASR provider is required")
	}

	cbCfg := resilience.ChainConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: 30 * time.Second,
		},
	}

	ttsChain := resilience.NewChain(func(ctx context.Context, p tts.Provider) bool {
		return p.Available(ctx)
	}, cbCfg)
	for _, entry := range a.providers.TTS {
		ttsChain.Add(entry.Name, entry.Provider)
	}

	asrChain := resilience.NewChain(func(ctx context.Context, p asr.Provider) bool {
		return p.Available(ctx)
	}, cbCfg)
	for _, entry := range a.providers.ASR {
		asrChain.Add(entry.Name, entry.Provider)
	}

	a.speech = gateway.NewSpeechGateway(ttsChain, a.metrics)
	a.listen = gateway.NewListenGateway(asrChain, a.speech.Speaking, a.metrics)
	return nil
}

// initGenerator builds the response-generation client.
func (a *App) initGenerator() {
	a.generator = generate.NewClient(
		a.providers.LLM,
		generate.NewFallback(nil),
		generate.WithMetrics(a.metrics),
	)
}

// initHealth registers the readiness checkers.
func (a *App) initHealth() {
	checkers := []health.Checker{
		{
			Name: "store",
			Check: func(ctx context.Context) error {
				if pinger, ok := a.summaries.(interface{ Ping(context.Context) error }); ok {
					return pinger.Ping(ctx)
				}
				return nil
			},
		},
		{
			Name: "tts",
			Check: func(ctx context.Context) error {
				for _, entry := range a.providers.TTS {
					if entry.Provider.Available(ctx) {
						return nil
					}
				}
				return errors.New("no synthesis provider available")
			},
		},
		{
			Name: "asr",
			Check: func(ctx context.Context) error {
				for _, entry := range a.providers.ASR {
					if entry.Provider.Available(ctx) {
						return nil
					}
				}
				return errors.New("no recognition provider available")
			},
		},
	}
	a.health = health.New(checkers...)
}

// StartInterview launches a new session. Returns [ErrSessionActive] while
// another interview is running.
func (a *App) StartInterview(ctx context.Context, req SessionRequest) (*Session, error) {
	a.tuningMu.Lock()
	tuning := a.tuning
	a.tuningMu.Unlock()

	persona := interview.Persona(req.Persona)
	if req.Persona == "" {
		persona = interview.Persona(tuning.DefaultPersona)
	}
	if !persona.IsValid() {
		persona = interview.PersonaProfessional
	}
	language := req.Language
	if language == "" {
		language = string(tuning.DefaultLanguage)
	}
	if language != "es" {
		language = "en"
	}

	sessionCfg := interview.SessionConfig{
		SessionID:      sessionID(req.CandidateName, time.Now()),
		JobTitle:       req.JobTitle,
		Company:        req.Company,
		JobDescription: req.JobDescription,
		CandidateName:  req.CandidateName,
		CVText:         req.CVText,
		Persona:        persona,
		Language:       language,
	}

	engineCfg := interview.EngineConfig{
		Session:       sessionCfg,
		Thresholds:    toThresholds(tuning.PhaseThresholds),
		Scoring:       toScoring(tuning.Scoring),
		ListenRetries: tuning.ListenRetries,
		RetryBackoff:  tuning.RetryBackoff,
		Voice: tts.VoiceProfile{
			ID:       a.cfg.Voice.VoiceID,
			Language: language,
			Rate:     a.cfg.Voice.Rate,
			Pitch:    a.cfg.Voice.Pitch,
			Volume:   a.cfg.Voice.Volume,
		},
		Listen: asr.ListenConfig{Language: language},
	}

	eng := interview.NewEngine(engineCfg, a.speech, a.listen, a.generator,
		interview.WithSummaryStore(a.summaries),
		interview.WithMetrics(a.metrics),
	)
	return a.sessions.StartSession(ctx, sessionCfg.SessionID, eng)
}

// Sessions exposes the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Summaries exposes the summary store for listing and retrieval.
func (a *App) Summaries() store.SummaryStore { return a.summaries }

// HandleConfigChange applies a hot config reload. Log level and interview
// tuning take effect immediately; anything else is logged as
// restart-required.
func (a *App) HandleConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", string(d.NewLogLevel))
	}
	if d.InterviewChanged {
		a.tuningMu.Lock()
		a.tuning = d.NewInterview
		a.tuningMu.Unlock()
		slog.Info("interview tuning reloaded; applies to the next session")
	}
	if d.RestartRequired {
		slog.Warn("provider, store, server, or voice settings changed; restart required to apply")
	}
}

// Run serves the admin HTTP endpoint (/metrics, /healthz, /readyz) until ctx
// is cancelled, then drains the server and finishes the active session.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	a.health.Register(mux)

	addr := a.cfg.Server.AdminAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("admin endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		a.sessions.FinishActive()
		if s := a.sessions.Active(); s != nil {
			select {
			case <-s.Done():
			case <-time.After(30 * time.Second):
				slog.Warn("active session did not finish before shutdown deadline")
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// toThresholds converts config thresholds, zero meaning defaults.
func toThresholds(t config.PhaseThresholds) interview.PhaseThresholds {
	if t == (config.PhaseThresholds{}) {
		return interview.DefaultPhaseThresholds()
	}
	return interview.PhaseThresholds{
		Background: t.Background,
		Experience: t.Experience,
		Technical:  t.Technical,
		Closing:    t.Closing,
	}
}

// toScoring converts config scoring weights, zero fields meaning defaults.
func toScoring(s config.ScoringConfig) interview.ScoringConfig {
	out := interview.DefaultScoringConfig()
	if s.Base > 0 {
		out.Base = s.Base
	}
	if s.ExcellentBonus > 0 {
		out.ExcellentBonus = s.ExcellentBonus
	}
	if s.GoodBonus > 0 {
		out.GoodBonus = s.GoodBonus
	}
	if s.PerQuestionBonus > 0 {
		out.PerQuestionBonus = s.PerQuestionBonus
	}
	if s.QuestionBonusCap > 0 {
		out.QuestionBonusCap = s.QuestionBonusCap
	}
	if s.DurationBonus > 0 {
		out.DurationBonus = s.DurationBonus
	}
	if s.MinIdealMinutes > 0 {
		out.MinIdealDuration = time.Duration(s.MinIdealMinutes) * time.Minute
	}
	if s.MaxIdealMinutes > 0 {
		out.MaxIdealDuration = time.Duration(s.MaxIdealMinutes) * time.Minute
	}
	if s.Floor > 0 {
		out.Floor = s.Floor
	}
	if s.Ceiling > 0 {
		out.Ceiling = s.Ceiling
	}
	return out
}

// slogLevel maps config log levels onto slog levels.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
