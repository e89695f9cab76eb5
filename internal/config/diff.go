package config

// ConfigDiff describes what changed between two configs. Only log level and
// interview tuning apply to a running process; everything else needs a
// restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// InterviewChanged is true when any pacing, scoring, or retry setting
	// changed. The new values apply to the next session started.
	InterviewChanged bool
	NewInterview     InterviewConfig

	// RestartRequired is true when provider, store, server, or voice settings
	// changed; those are wired at startup and only logged here.
	RestartRequired bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !interviewEqual(old.Interview, new.Interview) {
		d.InterviewChanged = true
		d.NewInterview = new.Interview
	}

	if !providersEqual(old.Providers, new.Providers) ||
		old.Store != new.Store ||
		old.Server.AdminAddr != new.Server.AdminAddr ||
		old.Voice != new.Voice {
		d.RestartRequired = true
	}

	return d
}

func interviewEqual(a, b InterviewConfig) bool {
	return a.DefaultPersona == b.DefaultPersona &&
		a.DefaultLanguage == b.DefaultLanguage &&
		a.PhaseThresholds == b.PhaseThresholds &&
		a.ListenRetries == b.ListenRetries &&
		a.RetryBackoff == b.RetryBackoff &&
		a.Scoring == b.Scoring
}

func providersEqual(a, b ProvidersConfig) bool {
	if !entryEqual(a.LLM, b.LLM) {
		return false
	}
	if len(a.TTS) != len(b.TTS) || len(a.ASR) != len(b.ASR) {
		return false
	}
	for i := range a.TTS {
		if !entryEqual(a.TTS[i], b.TTS[i]) {
			return false
		}
	}
	for i := range a.ASR {
		if !entryEqual(a.ASR[i], b.ASR[i]) {
			return false
		}
	}
	return true
}

// entryEqual compares the scalar fields of two provider entries. Options
// maps are compared by length only; a changed option value with the same key
// set slips through, which is acceptable for a restart-required warning.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name &&
		a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model &&
		len(a.Options) == len(b.Options)
}
