package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alfredjeanlab/toggles/internal/metrics"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware(t *testing.T) {
	for _, tc := range []struct {
		name   string
		token  string
		method string
		path   string
		header string
		status int
	}{
		{"disabled", "", http.MethodGet, "/v1/flags", "", http.StatusOK},
		{"health exempt", "secret", http.MethodGet, "/v1/health", "", http.StatusOK},
		{"missing header", "secret", http.MethodGet, "/v1/flags", "", http.StatusUnauthorized},
		{"wrong scheme", "secret", http.MethodGet, "/v1/flags", "Basic c2VjcmV0", http.StatusUnauthorized},
		{"wrong token", "secret", http.MethodGet, "/v1/flags", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "secret", http.MethodPut, "/v1/flags/x", "Bearer secret", http.StatusOK},
		{"health needs GET", "secret", http.MethodPost, "/v1/health", "", http.StatusUnauthorized},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tc.token, okHandler).ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestAuthMiddleware_ThroughServer(t *testing.T) {
	env := newTestServer(t, Options{AuthToken: "secret"})

	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	requireStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/v1/flags", nil)
	requireStatus(t, rec, http.StatusUnauthorized)
	if !strings.Contains(rec.Body.String(), "missing authorization header") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	h := RequestIDMiddleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/v1/flags", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	id := rec.Header().Get(RequestIDHeader)
	if !strings.HasPrefix(id, "req-") {
		t.Fatalf("expected generated request id, got %q", id)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/flags", nil)
	req.Header.Set(RequestIDHeader, "caller-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "caller-123" {
		t.Fatalf("expected caller id to be echoed, got %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	RecoveryMiddleware(quietLogger(), panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLoggingMiddleware_Metrics(t *testing.T) {
	m := metrics.NewHTTPMetrics()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/flags/{name}", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "flag not found")
	})
	h := LoggingMiddleware(quietLogger(), m, mux)

	for _, path := range []string{"/v1/flags/a", "/v1/flags/b", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if v := testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/v1/flags/{name}", "404")); v != 2 {
		t.Errorf("matched route count = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.Requests.WithLabelValues("GET", "unmatched", "404")); v != 1 {
		t.Errorf("unmatched route count = %v, want 1", v)
	}
	if n := testutil.CollectAndCount(m.RequestDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestStatusRecorder_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	var w http.ResponseWriter = sr
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("statusRecorder should implement http.Flusher")
	}
	sr.WriteHeader(http.StatusTeapot)
	sr.WriteHeader(http.StatusOK)
	f.Flush()
	if !rec.Flushed {
		t.Error("expected underlying recorder to be flushed")
	}
	if sr.status != http.StatusTeapot {
		t.Errorf("status = %d, want first written code", sr.status)
	}
}
