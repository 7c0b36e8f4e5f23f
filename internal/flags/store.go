package flags

import (
	"github.com/alfredjeanlab/toggles/internal/model"
)

// Set merges p into the named flag, creating it with source "manual" if it
// does not exist. Listeners are notified if the resolved value changed.
// Notifications are delivered before Set returns unless another goroutine
// is already delivering; then Set only queues the change and that
// goroutine delivers it after its current pass.
func (e *Engine) Set(name string, p model.Patch) {
	e.mu.Lock()
	e.applyLocked(name, p)
	e.mu.Unlock()
	e.bus.drain()
}

// SetEnabled is Set with only the enabled bit, as a manual write.
func (e *Engine) SetEnabled(name string, enabled bool) {
	e.Set(name, model.Patch{Enabled: model.Bool(enabled), Source: model.SourceManual})
}

// Get returns a copy of the named flag.
func (e *Engine) Get(name string) (model.Flag, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.flags[name]
	if !ok {
		return model.Flag{}, false
	}
	return f.Clone(), true
}

// IsEnabled reports the resolved value of the named flag. Absent flags are
// disabled.
func (e *Engine) IsEnabled(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabledLocked(name)
}

func (e *Engine) enabledLocked(name string) bool {
	f, ok := e.flags[name]
	return ok && f.Enabled
}

// All returns a snapshot of every flag.
func (e *Engine) All() map[string]model.Flag {
	return e.BySource("")
}

// BySource returns a snapshot of the flags whose source is src. An empty
// src matches every flag.
func (e *Engine) BySource(src model.Source) map[string]model.Flag {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]model.Flag, len(e.flags))
	for name, f := range e.flags {
		if src != "" && f.Source != src {
			continue
		}
		out[name] = f.Clone()
	}
	return out
}

// Len returns the number of flags in the store.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.flags)
}

// Clear empties the store and cancels every pending override revert.
// No listener notifications are sent.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopAllRevertsLocked()
	e.flags = make(map[string]*model.Flag)
}

// applyLocked is the single write path into the store. Callers hold e.mu
// and must call e.bus.drain() after releasing it.
func (e *Engine) applyLocked(name string, p model.Patch) {
	f, ok := e.flags[name]
	if !ok {
		f = &model.Flag{Name: name, Source: model.SourceManual}
		e.flags[name] = f
	}
	before := model.Original{Enabled: f.Enabled, Source: f.Source}

	if p.Enabled != nil {
		f.Enabled = *p.Enabled
	}
	if p.Source != "" {
		f.Source = p.Source
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.Original != nil {
		o := *p.Original
		f.Original = &o
	}

	// Original lives exactly as long as the override does.
	if f.Source == model.SourceOverride {
		if f.Original == nil {
			o := before
			f.Original = &o
		}
	} else {
		f.Original = nil
		if before.Source == model.SourceOverride {
			e.stopRevertLocked(name)
		}
	}

	f.LastUpdated = e.clock.Now()

	if f.Enabled != before.Enabled {
		e.bus.enqueue(Change{
			Flag:     name,
			NewValue: f.Enabled,
			OldValue: before.Enabled,
			Source:   f.Source,
		})
	}
}
