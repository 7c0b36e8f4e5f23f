package flags

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// Listener is called with a flag's new and previous resolved value.
type Listener func(name string, newValue, oldValue bool)

// Change describes one change of a flag's resolved value.
type Change struct {
	Flag     string       `json:"flag"`
	NewValue bool         `json:"new_value"`
	OldValue bool         `json:"old_value"`
	Source   model.Source `json:"source"`
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// listenerBus queues changes and delivers them to listeners one pass at a
// time. A change enqueued while a pass is running (for example by a
// listener calling Set) is delivered after that pass, by the goroutine that
// is already dispatching.
type listenerBus struct {
	logger *slog.Logger

	mu          sync.Mutex
	nextID      uint64
	listeners   []listenerEntry
	queue       []Change
	dispatching bool

	faults atomic.Uint64
}

func newListenerBus(logger *slog.Logger) *listenerBus {
	return &listenerBus{logger: logger}
}

func (b *listenerBus) add(fn Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listenerEntry{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *listenerBus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *listenerBus) clear() {
	b.mu.Lock()
	b.listeners = nil
	b.mu.Unlock()
}

func (b *listenerBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func (b *listenerBus) enqueue(c Change) {
	b.mu.Lock()
	b.queue = append(b.queue, c)
	b.mu.Unlock()
}

// drain delivers queued changes unless another goroutine is already doing so.
func (b *listenerBus) drain() {
	b.mu.Lock()
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true
	for len(b.queue) > 0 {
		c := b.queue[0]
		b.queue = b.queue[1:]
		snapshot := make([]listenerEntry, len(b.listeners))
		copy(snapshot, b.listeners)
		b.mu.Unlock()

		for _, l := range snapshot {
			b.invoke(l.fn, c)
		}

		b.mu.Lock()
	}
	b.queue = nil
	b.dispatching = false
	b.mu.Unlock()
}

// invoke runs one listener inside its own recover boundary.
func (b *listenerBus) invoke(fn Listener, c Change) {
	defer func() {
		if r := recover(); r != nil {
			b.faults.Add(1)
			b.logger.Warn("flag listener failed",
				"flag", c.Flag,
				"err", fmt.Errorf("%w: %v", ErrListenerFault, r))
		}
	}()
	fn(c.Flag, c.NewValue, c.OldValue)
}

// AddListener registers fn and returns a function that removes it. The
// returned function is safe to call more than once.
func (e *Engine) AddListener(fn Listener) (unsubscribe func()) {
	return e.bus.add(fn)
}

// ListenerCount returns the number of registered listeners.
func (e *Engine) ListenerCount() int {
	return e.bus.count()
}

// ListenerFaults returns how many listener invocations have panicked.
func (e *Engine) ListenerFaults() uint64 {
	return e.bus.faults.Load()
}
