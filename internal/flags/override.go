package flags

import (
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// revertHandle is the pending expiry of one override. gen identifies the
// override that scheduled it, so a timer that fires after being superseded
// does nothing.
type revertHandle struct {
	timer   *clock.Timer
	gen     uint64
	expires time.Time
}

// OverrideInfo describes an active override.
type OverrideInfo struct {
	Flag      string         `json:"flag"`
	Enabled   bool           `json:"enabled"`
	Original  model.Original `json:"original"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// Override forces the named flag to value. The state before the first
// override in a chain is kept so RevertOverride can restore it. A positive
// d schedules an automatic revert after d; any earlier schedule for the
// flag is cancelled either way.
func (e *Engine) Override(name string, value bool, d time.Duration) {
	e.mu.Lock()
	orig := model.Original{Enabled: false, Source: model.SourceManual}
	if f, ok := e.flags[name]; ok {
		if f.Source == model.SourceOverride && f.Original != nil {
			orig = *f.Original
		} else {
			orig = model.Original{Enabled: f.Enabled, Source: f.Source}
		}
	}

	e.applyLocked(name, model.Patch{
		Enabled:  model.Bool(value),
		Source:   model.SourceOverride,
		Original: &orig,
	})
	e.stopRevertLocked(name)

	if d > 0 {
		e.nextGen++
		gen := e.nextGen
		h := &revertHandle{gen: gen, expires: e.clock.Now().Add(d)}
		// The callback blocks on e.mu until h is registered below.
		h.timer = e.clock.AfterFunc(d, func() { e.expire(name, gen) })
		e.reverts[name] = h
	}
	e.mu.Unlock()
	e.bus.drain()

	e.logger.Debug("flag overridden", "flag", name, "enabled", value, "duration", d)
}

// RevertOverride restores the pre-override state of the named flag and
// cancels its pending expiry. It is a no-op if the flag is not overridden.
func (e *Engine) RevertOverride(name string) {
	e.mu.Lock()
	e.stopRevertLocked(name)
	reverted := e.revertLocked(name)
	e.mu.Unlock()
	e.bus.drain()

	if reverted {
		e.logger.Debug("flag override reverted", "flag", name)
	}
}

// ActiveOverrides lists overridden flags sorted by name.
func (e *Engine) ActiveOverrides() []OverrideInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []OverrideInfo
	for name, f := range e.flags {
		if f.Source != model.SourceOverride || f.Original == nil {
			continue
		}
		info := OverrideInfo{Flag: name, Enabled: f.Enabled, Original: *f.Original}
		if h, ok := e.reverts[name]; ok {
			exp := h.expires
			info.ExpiresAt = &exp
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Flag < out[j].Flag })
	return out
}

func (e *Engine) expire(name string, gen uint64) {
	e.mu.Lock()
	h, ok := e.reverts[name]
	if !ok || h.gen != gen {
		e.mu.Unlock()
		return
	}
	delete(e.reverts, name)
	reverted := e.revertLocked(name)
	e.mu.Unlock()
	e.bus.drain()

	if reverted {
		e.logger.Info("flag override expired", "flag", name)
	}
}

func (e *Engine) revertLocked(name string) bool {
	f, ok := e.flags[name]
	if !ok || f.Source != model.SourceOverride {
		return false
	}
	orig := model.Original{Enabled: f.Enabled, Source: model.SourceManual}
	if f.Original != nil {
		orig = *f.Original
	}
	e.applyLocked(name, model.Patch{Enabled: model.Bool(orig.Enabled), Source: orig.Source})
	return true
}

// stopRevertLocked cancels the pending expiry for name, if any. Stopping a
// timer that already fired is harmless.
func (e *Engine) stopRevertLocked(name string) {
	if h, ok := e.reverts[name]; ok {
		h.timer.Stop()
		delete(e.reverts, name)
	}
}

func (e *Engine) stopAllRevertsLocked() {
	for name := range e.reverts {
		e.stopRevertLocked(name)
	}
}
