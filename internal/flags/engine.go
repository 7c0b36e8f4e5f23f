// Package flags implements the feature-flag and experimentation engine.
//
// An Engine owns a process-local flag store. Values arrive from local
// storage, the application config document and (in production) a remote
// flags endpoint, in that order, so later sources win. Overrides sit on top
// of all of them and may carry an expiry after which the pre-override value
// is restored. Listeners are told about every change of a flag's resolved
// boolean, and A/B variants are assigned by hashing the subject id, so no
// per-subject state is ever stored.
//
// All collaborators are injected; an Engine built with New and no options is
// a usable in-memory flag store.
package flags

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/alfredjeanlab/toggles/internal/model"
	"github.com/alfredjeanlab/toggles/internal/storage"
)

// EnvironmentProduction is the only environment in which remote flags load
// during Initialize.
const EnvironmentProduction = "production"

// AnalyticsFlag is the name the analytics gate is asked about before
// TrackUsage emits anything.
const AnalyticsFlag = "analytics"

// ConfigProvider supplies the environment, the flag section of the
// application config and the API endpoint used for remote flags.
type ConfigProvider interface {
	Environment() string
	Document() model.Document
	APIEndpoint() (baseURL, version string)
}

// RemoteSource fetches the raw remote flags document.
type RemoteSource interface {
	FetchFlags(ctx context.Context) ([]byte, error)
}

// Analytics is the usage-tracking collaborator.
type Analytics interface {
	IsFeatureEnabled(name string) bool
	RecordUsage(ev model.UsageEvent)
}

// Engine is the flag store together with its resolver, listener bus,
// override manager, variant assigner and persistence. It is safe for
// concurrent use.
type Engine struct {
	clock     clock.Clock
	logger    *slog.Logger
	storage   storage.KV
	config    ConfigProvider
	remote    RemoteSource
	analytics Analytics

	mu       sync.Mutex
	flags    map[string]*model.Flag
	reverts  map[string]*revertHandle
	nextGen  uint64
	lastSync time.Time

	initMu      sync.Mutex
	initialized atomic.Bool

	bus *listenerBus
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for timestamps and override expiry.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStorage sets the local key/value store used by Initialize,
// SaveLocalFlags and ClearFlags.
func WithStorage(kv storage.KV) Option {
	return func(e *Engine) { e.storage = kv }
}

// WithConfig sets the config provider.
func WithConfig(p ConfigProvider) Option {
	return func(e *Engine) { e.config = p }
}

// WithRemote sets the remote flags source.
func WithRemote(r RemoteSource) Option {
	return func(e *Engine) { e.remote = r }
}

// WithAnalytics sets the usage-tracking collaborator.
func WithAnalytics(a Analytics) Option {
	return func(e *Engine) { e.analytics = a }
}

// New returns an engine with an empty store.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:   clock.New(),
		logger:  slog.Default(),
		flags:   make(map[string]*model.Flag),
		reverts: make(map[string]*revertHandle),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.bus = newListenerBus(e.logger)
	return e
}

// Clock returns the engine clock.
func (e *Engine) Clock() clock.Clock {
	return e.clock
}
