// Package health reports whether the interview pipeline can take a session.
//
// Two endpoints hang off the admin mux:
//   - /healthz — liveness; a process that answers HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered dependency
//     checker (summary store, synthesis chain, recognition chain) passes.
//
// Readiness checkers run concurrently under a shared deadline, and each
// one's outcome carries its probe time so an operator can tell which
// pipeline stage is blocking interviews.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds one whole /readyz evaluation. Provider probes carry
// their own shorter deadlines; this is the backstop.
const checkTimeout = 5 * time.Second

// Checker is a named dependency probe. Check returns nil when the dependency
// could serve an interview right now and must respect ctx cancellation.
type Checker struct {
	// Name keys the check in the /readyz payload ("store", "tts", "asr").
	Name string

	Check func(ctx context.Context) error
}

// CheckResult is one dependency's outcome in the /readyz payload.
type CheckResult struct {
	// Status is "ok" or "fail".
	Status string `json:"status"`

	// Detail carries the failure description; empty on success.
	Detail string `json:"detail,omitempty"`

	// ProbeMS is how long the probe took in milliseconds.
	ProbeMS int64 `json:"probe_ms"`
}

// response is the JSON body shared by both endpoints.
type response struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. Safe for concurrent use; the checker
// list is fixed at construction.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is the liveness probe; it always answers 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz runs every checker concurrently and answers 200 only when all of
// them pass. A single slow dependency therefore delays the response by its
// own probe time, not the sum of all probes.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	results := make([]CheckResult, len(h.checkers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range h.checkers {
		g.Go(func() error {
			start := time.Now()
			err := c.Check(gctx)
			res := CheckResult{Status: "ok", ProbeMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "fail"
				res.Detail = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	// Checkers report through results, never through the group error.
	_ = g.Wait()

	resp := response{Status: "ok", Checks: make(map[string]CheckResult, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		resp.Checks[c.Name] = results[i]
		if results[i].Status != "ok" {
			resp.Status = "fail"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// degrades to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
