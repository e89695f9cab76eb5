package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type readyBody struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

func TestHealthzAlwaysOK(t *testing.T) {
	h := New(Checker{Name: "store", Check: func(context.Context) error {
		return errors.New("down")
	}})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q", body.Status)
	}
}

func TestReadyzAllPassing(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: func(context.Context) error { return nil }},
		Checker{Name: "tts", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body readyBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q", body.Status)
	}
	for _, name := range []string{"store", "tts"} {
		check := body.Checks[name]
		if check.Status != "ok" {
			t.Errorf("%s check = %+v, want ok", name, check)
		}
		if check.Detail != "" {
			t.Errorf("%s detail = %q, want empty on success", name, check.Detail)
		}
	}
}

func TestReadyzFailingChecker(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: func(context.Context) error { return nil }},
		Checker{Name: "asr", Check: func(context.Context) error {
			return errors.New("no provider reachable")
		}},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body readyBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status field = %q, want fail", body.Status)
	}
	if body.Checks["store"].Status != "ok" {
		t.Errorf("store check = %+v", body.Checks["store"])
	}
	if body.Checks["asr"].Status != "fail" || body.Checks["asr"].Detail != "no provider reachable" {
		t.Errorf("asr check = %+v, want failure detail", body.Checks["asr"])
	}
}

func TestReadyzRunsCheckersConcurrently(t *testing.T) {
	const probe = 100 * time.Millisecond
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(probe):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := New(
		Checker{Name: "store", Check: slow},
		Checker{Name: "tts", Check: slow},
		Checker{Name: "asr", Check: slow},
	)

	rec := httptest.NewRecorder()
	start := time.Now()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	elapsed := time.Since(start)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// Three sequential probes would need 300ms; concurrent ones roughly one.
	if elapsed >= 2*probe {
		t.Errorf("readyz took %v for three %v probes, expected them to overlap", elapsed, probe)
	}
}

func TestReadyzNoCheckers(t *testing.T) {
	h := New()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with no checkers", rec.Code)
	}
}

func TestRegisterRoutes(t *testing.T) {
	h := New(Checker{Name: "store", Check: func(context.Context) error { return nil }})
	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}
