package hooks

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/alfredjeanlab/toggles/internal/events"
)

const queueSize = 64

// Handler runs matching hooks for every flag change published to it. It is
// an events.Publisher so it can sit next to the NATS publisher; commands run
// on a single worker goroutine in publish order.
type Handler struct {
	hooks  []Hook
	logger *slog.Logger

	queue     chan events.FlagChanged
	done      chan struct{}
	closeOnce sync.Once
}

var _ events.Publisher = (*Handler)(nil)

// NewHandler starts a handler for hooks.
func NewHandler(hooks []Hook, logger *slog.Logger) *Handler {
	h := &Handler{
		hooks:  hooks,
		logger: logger,
		queue:  make(chan events.FlagChanged, queueSize),
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

// Publish queues flag changes; every other topic is ignored. A change is
// dropped when the queue is full.
func (h *Handler) Publish(ctx context.Context, topic string, event any) error {
	if topic != events.TopicFlagChanged {
		return nil
	}
	var ev events.FlagChanged
	switch e := event.(type) {
	case *events.FlagChanged:
		ev = *e
	case events.FlagChanged:
		ev = e
	default:
		return nil
	}

	select {
	case h.queue <- ev:
	default:
		h.logger.Warn("hooks: queue full, change dropped", "flag", ev.Flag)
	}
	return nil
}

// Close waits for queued changes to run. Publish must not be called after
// Close.
func (h *Handler) Close() error {
	h.closeOnce.Do(func() { close(h.queue) })
	<-h.done
	return nil
}

func (h *Handler) run() {
	defer close(h.done)
	for ev := range h.queue {
		h.HandleChange(context.Background(), ev)
	}
}

// HandleChange runs every hook matching ev and returns the failures of
// hooks with on_failure=warn.
func (h *Handler) HandleChange(ctx context.Context, ev events.FlagChanged) []string {
	var warnings []string
	for _, hook := range h.hooks {
		if !hook.Matches(ev.Flag, ev.NewValue) {
			continue
		}

		env := map[string]string{
			"TOGGLES_EVENT_ID": ev.ID,
			"TOGGLES_FLAG":     ev.Flag,
			"TOGGLES_ENABLED":  strconv.FormatBool(ev.NewValue),
			"TOGGLES_PREVIOUS": strconv.FormatBool(ev.OldValue),
			"TOGGLES_SOURCE":   string(ev.Source),
		}
		result := Execute(ctx, hook.Command, hook.Timeout, env)

		if result.Err != nil && hook.OnFailure == OnFailureWarn {
			h.logger.Warn("hooks: hook failed",
				"hook", hook.Name, "flag", ev.Flag, "err", result.Err, "output", result.Output)
			warnings = append(warnings, hook.Name+": "+result.Err.Error())
			continue
		}
		h.logger.Info("hooks: executed flag hook",
			"hook", hook.Name, "flag", ev.Flag, "ok", result.Err == nil)
	}
	return warnings
}
