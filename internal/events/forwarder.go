package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// FlagReader looks up the current record of a flag.
type FlagReader interface {
	Get(name string) (model.Flag, bool)
}

// Forwarder turns engine change notifications into FlagChanged events.
// Register Forwarder.Listen with the engine's AddListener.
type Forwarder struct {
	pub     Publisher
	flags   FlagReader
	clock   clock.Clock
	logger  *slog.Logger
	timeout time.Duration
}

// NewForwarder returns a forwarder publishing to pub. flags is consulted for
// the source of each changed flag.
func NewForwarder(pub Publisher, flags FlagReader, clk clock.Clock, logger *slog.Logger) *Forwarder {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{pub: pub, flags: flags, clock: clk, logger: logger, timeout: 5 * time.Second}
}

// Listen publishes one FlagChanged event. Publish failures are logged.
func (f *Forwarder) Listen(name string, newValue, oldValue bool) {
	ev := &FlagChanged{
		Flag:     name,
		NewValue: newValue,
		OldValue: oldValue,
		At:       f.clock.Now().UTC(),
	}
	if rec, ok := f.flags.Get(name); ok {
		ev.Source = rec.Source
	}
	f.Emit(TopicFlagChanged, ev)
}

// Emit stamps ev with a fresh event id and publishes it on topic. Failures
// are logged, never returned.
func (f *Forwarder) Emit(topic string, ev Event) {
	if err := Stamp(ev); err != nil {
		f.logger.Warn("event id generation failed", "topic", topic, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.pub.Publish(ctx, topic, ev); err != nil {
		f.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}
