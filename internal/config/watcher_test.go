package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const watcherYAMLv1 = `
server:
  log_level: info
providers:
  tts:
    - name: elevenlabs
  asr:
    - name: deepgram
`

const watcherYAMLv2 = `
server:
  log_level: debug
providers:
  tts:
    - name: elevenlabs
  asr:
    - name: deepgram
`

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// Nudge mtime so the fast path sees a change even on coarse filesystems.
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intervox.yaml")
	writeConfigFile(t, path, watcherYAMLv1)

	var mu sync.Mutex
	var gotOld, gotNew *Config
	changed := make(chan struct{}, 1)

	w, err := NewWatcher(path, func(old, new *Config) {
		mu.Lock()
		gotOld, gotNew = old, new
		mu.Unlock()
		changed <- struct{}{}
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if w.Current().Server.LogLevel != LogInfo {
		t.Fatalf("initial log level = %q", w.Current().Server.LogLevel)
	}

	writeConfigFile(t, path, watcherYAMLv2)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotOld.Server.LogLevel != LogInfo || gotNew.Server.LogLevel != LogDebug {
		t.Errorf("onChange(old=%q, new=%q), want info -> debug",
			gotOld.Server.LogLevel, gotNew.Server.LogLevel)
	}
	if w.Current().Server.LogLevel != LogDebug {
		t.Errorf("Current() log level = %q, want debug", w.Current().Server.LogLevel)
	}
}

func TestWatcherKeepsPreviousOnInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intervox.yaml")
	writeConfigFile(t, path, watcherYAMLv1)

	w, err := NewWatcher(path, func(old, new *Config) {
		t.Error("onChange fired for an invalid config")
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, "server:\n  log_level: bogus\n")

	// Give the poller a few cycles to notice the broken file.
	time.Sleep(100 * time.Millisecond)

	if w.Current().Server.LogLevel != LogInfo {
		t.Errorf("Current() log level = %q, want previous config retained", w.Current().Server.LogLevel)
	}
}

func TestWatcherInitialLoadFailure(t *testing.T) {
	if _, err := NewWatcher("/nonexistent/intervox.yaml", nil); err == nil {
		t.Fatal("NewWatcher() = nil error for a missing file")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intervox.yaml")
	writeConfigFile(t, path, watcherYAMLv1)

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.Stop()
	w.Stop()
}
