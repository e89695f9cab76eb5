package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/intervox/internal/interview"
	"github.com/MrWong99/intervox/internal/observe"
)

// ErrSessionActive is returned by StartSession when an interview is already
// running. One session per process: the audio endpoints carry a single
// conversation.
var ErrSessionActive = errors.New("app: an interview session is already active")

// Session is a handle to one running interview.
type Session struct {
	ID     string
	engine *interview.Engine
	done   chan struct{}
	err    error
}

// Finish requests the session end early. The wrap-up runs asynchronously;
// wait on Done for completion.
func (s *Session) Finish() { s.engine.Finish() }

// Done is closed when the session's conversation loop has fully terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the terminal error after Done is closed. Nil for a normally
// completed interview.
func (s *Session) Err() error {
	<-s.done
	return s.err
}

// SessionManager enforces the single-active-session rule and owns the
// goroutine each session's engine runs on.
type SessionManager struct {
	metrics *observe.Metrics

	mu     sync.Mutex
	active *Session
}

// NewSessionManager creates an empty manager.
func NewSessionManager(metrics *observe.Metrics) *SessionManager {
	return &SessionManager{metrics: metrics}
}

// Active returns the running session, or nil.
func (m *SessionManager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// StartSession launches the engine on its own goroutine and returns a
// handle. Returns [ErrSessionActive] while another interview is running.
func (m *SessionManager) StartSession(ctx context.Context, id string, eng *interview.Engine) (*Session, error) {
	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}

	s := &Session{
		ID:     id,
		engine: eng,
		done:   make(chan struct{}),
	}
	m.active = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Add(ctx, 1)
	}
	slog.Info("interview session started", "session", s.ID)

	go func() {
		defer close(s.done)
		s.err = eng.Run(ctx)

		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()

		if m.metrics != nil {
			m.metrics.ActiveSessions.Add(context.Background(), -1)
		}
		if s.err != nil {
			slog.Error("interview session failed", "session", s.ID, "error", s.err)
		} else {
			slog.Info("interview session ended", "session", s.ID)
		}
	}()

	return s, nil
}

// FinishActive requests the running session end, if there is one.
func (m *SessionManager) FinishActive() {
	if s := m.Active(); s != nil {
		s.Finish()
	}
}

// sessionID builds a stable, log-friendly identifier.
func sessionID(candidateName string, t time.Time) string {
	name := strings.ToLower(strings.TrimSpace(candidateName))
	name = strings.ReplaceAll(name, " ", "-")
	if name == "" {
		name = "candidate"
	}
	return fmt.Sprintf("interview-%s-%d", name, t.Unix())
}
