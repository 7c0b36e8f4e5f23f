package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns an http.Handler with all routes and middleware
// registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/flags", s.handleListFlags)
	mux.HandleFunc("GET /v1/flags/{name}", s.handleGetFlag)
	mux.HandleFunc("PUT /v1/flags/{name}", s.handleSetFlag)
	mux.HandleFunc("POST /v1/flags/{name}/override", s.handleOverride)
	mux.HandleFunc("DELETE /v1/flags/{name}/override", s.handleRevert)
	mux.HandleFunc("POST /v1/flags/{name}/usage", s.handleTrackUsage)
	mux.HandleFunc("GET /v1/overrides", s.handleListOverrides)
	mux.HandleFunc("GET /v1/features/{key}", s.handleFeature)
	mux.HandleFunc("GET /v1/experimental/{key}", s.handleExperimental)
	mux.HandleFunc("POST /v1/variants/{test}", s.handleVariant)
	mux.HandleFunc("GET /v1/usage", s.handleListUsage)
	mux.HandleFunc("POST /v1/save", s.handleSave)
	mux.HandleFunc("POST /v1/sync", s.handleSync)
	mux.HandleFunc("GET /v1/export", s.handleExport)
	mux.HandleFunc("GET /v1/debug", s.handleDebug)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	if s.opts.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))
	}

	var h http.Handler = AuthMiddleware(s.opts.AuthToken, mux)
	h = LoggingMiddleware(s.logger, s.opts.Metrics, h)
	h = RequestIDMiddleware(h)
	return RecoveryMiddleware(s.logger, h)
}

type healthResponse struct {
	Status      string `json:"status"`
	Initialized bool   `json:"initialized"`
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Initialized: s.engine.Initialized()})
}

// decodeBody decodes an optional JSON request body into dst. An empty body
// leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// flagName reads and validates the {name} path value.
func flagName(r *http.Request) (string, error) {
	name := r.PathValue("name")
	if err := model.ValidateFlagName(name); err != nil {
		return "", err
	}
	return name, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
