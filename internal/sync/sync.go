// Package sync keeps a running engine in step with the outside world: it
// periodically re-fetches remote flags and ships a JSONL snapshot of every
// flag to one or more destinations (S3, a git repo).
package sync

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/alfredjeanlab/toggles/internal/events"
	"github.com/alfredjeanlab/toggles/internal/flags"
	"github.com/alfredjeanlab/toggles/internal/model"
)

// Destination is the interface for a sync target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Source is the engine surface the scheduler drives.
type Source interface {
	ExportFlags() map[string]model.ExportedFlag
	SyncRemote(ctx context.Context) error
	LastSync() time.Time
}

// Result summarizes one sync pass.
type Result struct {
	Refreshed bool
	FlagCount int
	LastSync  time.Time
	Bytes     int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock driving the sync ticker and export timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithOnSync registers a callback run after every sync pass.
func WithOnSync(fn func(Result)) Option {
	return func(s *Scheduler) { s.onSync = fn }
}

// WithRemoteRefresh controls whether scheduled passes (startup, ticks and
// Trigger) re-fetch remote flags. It defaults to true. A direct SyncOnce call
// always refreshes.
func WithRemoteRefresh(enabled bool) Option {
	return func(s *Scheduler) { s.refresh = enabled }
}

// Scheduler runs periodic syncs: a remote refresh followed by an export to
// every destination.
type Scheduler struct {
	src          Source
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger
	clock        clock.Clock
	onSync       func(Result)
	refresh      bool

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler that refreshes src and exports it to the
// given destinations at the specified interval.
func NewScheduler(src Source, destinations []Destination, interval time.Duration, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		src:          src,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		clock:        clock.New(),
		refresh:      true,
		trigger:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick and on each Trigger.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Trigger requests a sync pass as soon as the running one (if any) ends.
// Requests made while one is already pending are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// WatchRefresh triggers a sync for every message on events.TopicRefresh
// until ctx is done.
func (s *Scheduler) WatchRefresh(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicRefresh)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				s.logger.Debug("refresh requested over the event bus")
				s.Trigger()
			}
		}
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	// Run once immediately at startup.
	s.pass(ctx, s.refresh)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := s.clock.Ticker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.pass(ctx, s.refresh)
		case <-s.trigger:
			s.pass(ctx, s.refresh)
		}
	}
}

// SyncOnce refreshes remote flags and exports to every destination. A
// failed refresh is logged and the export still runs with current flags.
func (s *Scheduler) SyncOnce(ctx context.Context) Result {
	return s.pass(ctx, true)
}

func (s *Scheduler) pass(ctx context.Context, refresh bool) Result {
	var res Result

	if refresh {
		err := s.src.SyncRemote(ctx)
		switch {
		case err == nil:
			res.Refreshed = true
		case errors.Is(err, flags.ErrRemoteDisabled):
		default:
			s.logger.Warn("remote refresh failed", "err", err)
		}
	}
	res.LastSync = s.src.LastSync()

	if len(s.destinations) > 0 {
		var buf bytes.Buffer
		n, err := ExportJSONL(s.src, &buf, s.clock.Now())
		if err != nil {
			s.logger.Error("sync export failed", "err", err)
			return res
		}
		res.FlagCount = n
		res.Bytes = buf.Len()
		data := buf.Bytes()

		for _, dest := range s.destinations {
			if err := dest.Write(ctx, data); err != nil {
				s.logger.Error("sync destination write failed", "destination", dest.Name(), "err", err)
			}
		}
	}

	s.logger.Info("sync completed",
		"refreshed", res.Refreshed,
		"destinations", len(s.destinations),
		"bytes", res.Bytes)
	if s.onSync != nil {
		s.onSync(res)
	}
	return res
}
