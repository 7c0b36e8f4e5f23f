// Package server exposes a flags.Engine over HTTP: flag reads and writes,
// overrides, variant assignment, persistence and sync triggers, a
// server-sent event stream of changes and Prometheus metrics.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/toggles/internal/analytics"
	"github.com/alfredjeanlab/toggles/internal/events"
	"github.com/alfredjeanlab/toggles/internal/flags"
	"github.com/alfredjeanlab/toggles/internal/metrics"
	flagsync "github.com/alfredjeanlab/toggles/internal/sync"
)

// Syncer runs a full sync pass: remote refresh plus snapshot export.
type Syncer interface {
	SyncOnce(ctx context.Context) flagsync.Result
}

// UsageReporter lists recently read flags.
type UsageReporter interface {
	Usage(staleThreshold time.Duration) []analytics.Entry
}

// Options configures a Server. Every field is optional.
type Options struct {
	// AuthToken, when set, is required as a bearer token on every route
	// except GET /v1/health.
	AuthToken string
	// Publisher receives every emitted event alongside the SSE stream.
	Publisher events.Publisher
	// Syncer handles POST /v1/sync. Without one the engine's remote
	// refresh is called directly.
	Syncer Syncer
	// Usage backs GET /v1/usage.
	Usage UsageReporter
	// Metrics records per-request metrics.
	Metrics *metrics.HTTPMetrics
	// Registry is served on GET /metrics.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// Server is the HTTP front end of a flags.Engine.
type Server struct {
	engine    *flags.Engine
	opts      Options
	logger    *slog.Logger
	hub       *sseHub
	forwarder *events.Forwarder
	unlisten  func()
}

// New returns a server for engine. Flag changes are forwarded to the SSE
// stream and opts.Publisher until Close.
func New(engine *flags.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: engine,
		opts:   opts,
		logger: logger,
		hub:    newSSEHub(),
	}
	pub := events.NewMultiPublisher(s.hub, opts.Publisher)
	s.forwarder = events.NewForwarder(pub, engine, engine.Clock(), logger)
	s.unlisten = engine.AddListener(s.forwarder.Listen)
	return s
}

// Emit stamps and publishes ev to the SSE stream and the configured
// publisher.
func (s *Server) Emit(topic string, ev events.Event) {
	s.forwarder.Emit(topic, ev)
}

// Close stops forwarding engine changes.
func (s *Server) Close() {
	s.unlisten()
}

// ListenAndServe serves the API on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := newHTTPServer(addr, s.Handler())

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
