// Package analytics records flag usage for the engine's TrackUsage hook.
//
// The Tracker is both halves of the analytics collaborator: it answers the
// "analytics enabled" gate and keeps an in-memory roster of which flags are
// being read, how often, and with what result. A background reaper evicts
// flags that have not been read for a configurable threshold so the roster
// stays bounded.
package analytics

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// GateFlag is the only name the gate answers for.
const GateFlag = "analytics"

// Entry is the usage summary of one flag.
type Entry struct {
	Flag         string         `json:"flag"`
	FirstSeen    time.Time      `json:"first_seen"`
	LastSeen     time.Time      `json:"last_seen"`
	Reads        int64          `json:"reads"`
	EnabledReads int64          `json:"enabled_reads"`
	LastValue    bool           `json:"last_value"`
	LastSource   model.Source   `json:"last_source"`
	LastContext  map[string]any `json:"last_context,omitempty"`
	IdleSecs     float64        `json:"idle_secs"`
}

// ReaperConfig configures the background usage reaper.
type ReaperConfig struct {
	// EvictAfter is how long a flag may go unread before its entry is
	// dropped. Default: 1 hour.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans. Default: 1 minute.
	SweepInterval time.Duration

	// OnEvict is called for each evicted flag, outside the lock.
	OnEvict func(e Entry)
}

// Sink receives every recorded event after the roster is updated.
type Sink func(ev model.UsageEvent)

// Tracker is the analytics collaborator.
type Tracker struct {
	clock   clock.Clock
	logger  *slog.Logger
	enabled atomic.Bool
	sink    Sink

	mu    sync.RWMutex
	flags map[string]*usageState

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type usageState struct {
	firstSeen    time.Time
	lastSeen     time.Time
	reads        int64
	enabledReads int64
	lastValue    bool
	lastSource   model.Source
	lastContext  map[string]any
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for usage timestamps and the reaper.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithSink forwards every recorded event to s.
func WithSink(s Sink) Option {
	return func(t *Tracker) { t.sink = s }
}

// New creates a tracker whose gate starts at enabled.
func New(enabled bool, opts ...Option) *Tracker {
	t := &Tracker{
		clock:  clock.New(),
		logger: slog.Default(),
		flags:  make(map[string]*usageState),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.enabled.Store(enabled)
	return t
}

// IsFeatureEnabled answers the analytics gate.
func (t *Tracker) IsFeatureEnabled(name string) bool {
	return name == GateFlag && t.enabled.Load()
}

// SetEnabled flips the analytics gate.
func (t *Tracker) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// RecordUsage adds one read of ev.Flag to the roster.
func (t *Tracker) RecordUsage(ev model.UsageEvent) {
	if ev.Flag == "" {
		return
	}
	at := ev.Timestamp
	if at.IsZero() {
		at = t.clock.Now()
	}

	t.mu.Lock()
	state, ok := t.flags[ev.Flag]
	if !ok {
		state = &usageState{firstSeen: at}
		t.flags[ev.Flag] = state
	}
	state.lastSeen = at
	state.reads++
	if ev.Enabled {
		state.enabledReads++
	}
	state.lastValue = ev.Enabled
	state.lastSource = ev.Source
	if ev.Context != nil {
		state.lastContext = ev.Context
	}
	t.mu.Unlock()

	if t.sink != nil {
		t.sink(ev)
	}
}

// Usage returns a snapshot of tracked flags, most recently read first.
// Flags idle for longer than staleThreshold are left out; pass 0 to include
// every tracked flag.
func (t *Tracker) Usage(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.clock.Now()
	entries := make([]Entry, 0, len(t.flags))
	for name, state := range t.flags {
		idle := now.Sub(state.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		entries = append(entries, state.entry(name, idle))
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].Flag < entries[j].Flag
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

func (s *usageState) entry(name string, idle time.Duration) Entry {
	return Entry{
		Flag:         name,
		FirstSeen:    s.firstSeen,
		LastSeen:     s.lastSeen,
		Reads:        s.reads,
		EnabledReads: s.enabledReads,
		LastValue:    s.lastValue,
		LastSource:   s.lastSource,
		LastContext:  s.lastContext,
		IdleSecs:     idle.Seconds(),
	}
}

// StartReaper launches a background goroutine that periodically evicts
// idle flags. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = time.Hour
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	t.logger.Info("analytics: reaper started",
		"evict_after", cfg.EvictAfter,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := t.clock.Ticker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.clock.Now()
	var evicted []Entry

	t.mu.Lock()
	for name, state := range t.flags {
		idle := now.Sub(state.lastSeen)
		if idle > cfg.EvictAfter {
			evicted = append(evicted, state.entry(name, idle))
			delete(t.flags, name)
		}
	}
	t.mu.Unlock()

	for _, e := range evicted {
		t.logger.Debug("analytics: evicted idle flag", "flag", e.Flag, "idle", time.Duration(e.IdleSecs*float64(time.Second)))
		if cfg.OnEvict != nil {
			cfg.OnEvict(e)
		}
	}
}
