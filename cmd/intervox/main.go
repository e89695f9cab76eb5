// Command intervox is the voice mock-interview server. It speaks interviewer
// questions through a TTS provider, listens for candidate answers through an
// ASR provider, and scores the session when it ends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/intervox/internal/app"
	"github.com/MrWong99/intervox/internal/config"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/pkg/audio"
	"github.com/MrWong99/intervox/pkg/provider/asr"
	"github.com/MrWong99/intervox/pkg/provider/asr/deepgram"
	"github.com/MrWong99/intervox/pkg/provider/llm"
	"github.com/MrWong99/intervox/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/intervox/pkg/provider/llm/openai"
	"github.com/MrWong99/intervox/pkg/provider/tts"
	"github.com/MrWong99/intervox/pkg/provider/tts/coqui"
	"github.com/MrWong99/intervox/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	jobTitle := flag.String("job", "", "position the interview is for (required)")
	company := flag.String("company", "", "hiring company name")
	description := flag.String("description", "", "job description text the interviewer tailors questions to")
	candidate := flag.String("candidate", "", "candidate name")
	cvPath := flag.String("cv", "", "path to a plain-text CV file for the interviewer to draw on")
	persona := flag.String("persona", "", "interviewer persona: professional, friendly, expert")
	language := flag.String("language", "", "interview language: en or es")
	flag.Parse()

	if *jobTitle == "" {
		fmt.Fprintln(os.Stderr, "intervox: -job is required")
		return 2
	}

	var cvText string
	if *cvPath != "" {
		data, err := os.ReadFile(*cvPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "intervox: read CV file: %v\n", err)
			return 2
		}
		cvText = string(data)
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "intervox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "intervox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("intervox starting",
		"config", *configPath,
		"admin_addr", cfg.Server.AdminAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "intervox"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Audio endpoints ───────────────────────────────────────────────────────
	sink, source, closeAudio, err := openAudio(cfg.Voice)
	if err != nil {
		slog.Error("failed to open audio endpoints", "err", err)
		return 1
	}
	defer closeAudio()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, sink, source)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, providers, app.WithLogLevelVar(levelVar))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher (hot reload for log level and interview tuning) ────────
	watcher, err := config.NewWatcher(*configPath, application.HandleConfigChange)
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	printStartupSummary(cfg)

	// ── Run: admin endpoint + the interview session ───────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Run(gctx)
	})
	g.Go(func() error {
		session, err := application.StartInterview(gctx, app.SessionRequest{
			JobTitle:       *jobTitle,
			Company:        *company,
			JobDescription: *description,
			CandidateName:  *candidate,
			CVText:         cvText,
			Persona:        *persona,
			Language:       *language,
		})
		if err != nil {
			return fmt.Errorf("start interview: %w", err)
		}
		select {
		case <-session.Done():
			// Interview over; let the signal handler or operator stop the
			// admin endpoint.
			return session.Err()
		case <-gctx.Done():
			session.Finish()
			<-session.Done()
			return nil
		}
	})

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Audio wiring ────────────────────────────────────────────────────────────

// openAudio opens the configured PCM endpoints: the sink synthesized speech
// is written to and the source candidate audio is read from.
func openAudio(vc config.VoiceConfig) (audio.Sink, audio.Source, func(), error) {
	rate := vc.SampleRate
	if rate == 0 {
		rate = 16000
	}
	format := audio.Format{SampleRate: rate, Channels: 1}

	outPath := vc.OutputPath
	if outPath == "" {
		outPath = "/dev/stdout"
	}
	out, err := os.OpenFile(outPath, os.O_WRONLY, 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open audio output %q: %w", outPath, err)
	}

	inPath := vc.InputPath
	if inPath == "" {
		inPath = "/dev/stdin"
	}
	in, err := os.Open(inPath)
	if err != nil {
		out.Close()
		return nil, nil, nil, fmt.Errorf("open audio input %q: %w", inPath, err)
	}

	closeAll := func() {
		out.Close()
		in.Close()
	}
	return &audio.FileSink{F: out, Fmt: format}, &audio.FileSource{F: in, Fmt: format}, closeAll, nil
}

// ── Provider wiring ─────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// bound to the process-wide audio endpoints.
func registerBuiltinProviders(reg *config.Registry, sink audio.Sink, source audio.Source) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// The direct openai implementation supports native JSON-mode responses for
	// the final analysis; everything else goes through any-llm.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModelID(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, sink, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		return coqui.New(entry.BaseURL, sink)
	})

	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("deepgram", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, source, opts...)
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", name)
	}

	for _, entry := range cfg.Providers.TTS {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
		}
		ps.TTS = append(ps.TTS, app.NamedTTS{Name: entry.Name, Provider: p})
		slog.Info("provider created", "kind", "tts", "name", entry.Name)
	}

	for _, entry := range cfg.Providers.ASR {
		p, err := reg.CreateASR(entry)
		if err != nil {
			return nil, fmt.Errorf("create asr provider %q: %w", entry.Name, err)
		}
		ps.ASR = append(ps.ASR, app.NamedASR{Name: entry.Name, Provider: p})
		slog.Info("provider created", "kind", "asr", "name", entry.Name)
	}

	return ps, nil
}

// ── Startup summary ─────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Intervox — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	for i, entry := range cfg.Providers.TTS {
		printProvider(fmt.Sprintf("TTS[%d]", i), entry.Name, entry.Model)
	}
	for i, entry := range cfg.Providers.ASR {
		printProvider(fmt.Sprintf("ASR[%d]", i), entry.Name, entry.Model)
	}
	driver := string(cfg.Store.Driver)
	if driver == "" {
		driver = "memory"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", "Store", driver)
	if cfg.Server.AdminAddr != "" {
		fmt.Printf("║  %-12s    : %-19s ║\n", "Admin addr", cfg.Server.AdminAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ──────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
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
