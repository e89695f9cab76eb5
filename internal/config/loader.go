package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp"},
	"tts": {"elevenlabs", "coqui"},
	"asr": {"deepgram"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, entry := range cfg.Providers.TTS {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts[%d].name is required", i))
			continue
		}
		validateProviderName("tts", entry.Name)
	}
	for i, entry := range cfg.Providers.ASR {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.asr[%d].name is required", i))
			continue
		}
		validateProviderName("asr", entry.Name)
	}
	if len(cfg.Providers.TTS) == 0 {
		errs = append(errs, errors.New("providers.tts must list at least one provider"))
	}
	if len(cfg.Providers.ASR) == 0 {
		errs = append(errs, errors.New("providers.asr must list at least one provider"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; interviews will run on canned questions only")
	}

	// Store
	if cfg.Store.Driver != "" && !cfg.Store.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("store.driver %q is invalid; valid values: memory, postgres", cfg.Store.Driver))
	}
	if cfg.Store.Driver == StorePostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when store.driver is postgres"))
	}

	// Interview
	if cfg.Interview.DefaultPersona != "" && !cfg.Interview.DefaultPersona.IsValid() {
		errs = append(errs, fmt.Errorf("interview.default_persona %q is invalid; valid values: professional, friendly, expert", cfg.Interview.DefaultPersona))
	}
	if cfg.Interview.DefaultLanguage != "" && !cfg.Interview.DefaultLanguage.IsValid() {
		errs = append(errs, fmt.Errorf("interview.default_language %q is invalid; valid values: en, es", cfg.Interview.DefaultLanguage))
	}
	if cfg.Interview.ListenRetries < 0 {
		errs = append(errs, fmt.Errorf("interview.listen_retries %d must not be negative", cfg.Interview.ListenRetries))
	}
	if cfg.Interview.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("interview.retry_backoff %s must not be negative", cfg.Interview.RetryBackoff))
	}
	if err := validateThresholds(cfg.Interview.PhaseThresholds); err != nil {
		errs = append(errs, err)
	}

	// Voice
	if cfg.Voice.Rate != 0 && (cfg.Voice.Rate < 0.5 || cfg.Voice.Rate > 2.0) {
		errs = append(errs, fmt.Errorf("voice.rate %.2f is out of range [0.5, 2.0]", cfg.Voice.Rate))
	}
	if cfg.Voice.Pitch < -10 || cfg.Voice.Pitch > 10 {
		errs = append(errs, fmt.Errorf("voice.pitch %.2f is out of range [-10, 10]", cfg.Voice.Pitch))
	}
	if cfg.Voice.Volume < 0 || cfg.Voice.Volume > 1 {
		errs = append(errs, fmt.Errorf("voice.volume %.2f is out of range [0.0, 1.0]", cfg.Voice.Volume))
	}
	if cfg.Voice.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("voice.sample_rate %d must not be negative", cfg.Voice.SampleRate))
	}

	return errors.Join(errs...)
}

// validateThresholds checks that non-zero phase thresholds are strictly
// increasing. All-zero means the built-in defaults apply.
func validateThresholds(t PhaseThresholds) error {
	if t == (PhaseThresholds{}) {
		return nil
	}
	if t.Background <= 0 || t.Experience <= 0 || t.Technical <= 0 || t.Closing <= 0 {
		return errors.New("interview.phase_thresholds must set all four values or none")
	}
	if !(t.Background < t.Experience && t.Experience < t.Technical && t.Technical < t.Closing) {
		return fmt.Errorf("interview.phase_thresholds %d/%d/%d/%d must be strictly increasing",
			t.Background, t.Experience, t.Technical, t.Closing)
	}
	return nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
