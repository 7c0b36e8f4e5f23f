package flags

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// Initialize loads flags from local storage, then the config document, then
// (in production) the remote endpoint. Load failures are logged, never
// returned. Only the first call does any work; concurrent callers wait for
// the loads. Listeners hear about the loaded values once loading is done
// and the engine reports itself initialized, so they may call back into
// the engine freely. The returned error is non-nil only if ctx was already
// done.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.initialized.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !e.load(ctx) {
		return nil
	}
	e.bus.drain()
	e.logger.Info("feature flags initialized", "count", e.Len())
	return nil
}

// load runs the loaders under initMu and reports whether it did the work.
func (e *Engine) load(ctx context.Context) bool {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.initialized.Load() {
		return false
	}

	if e.storage != nil {
		e.loadLocal(ctx)
	}
	if e.config != nil {
		e.loadConfig()
		if e.config.Environment() == EnvironmentProduction {
			e.initRemote(ctx)
		}
	}

	e.initialized.Store(true)
	return true
}

func (e *Engine) initRemote(ctx context.Context) {
	err := e.syncRemote(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRemoteDisabled):
		e.logger.Debug("remote flags skipped: no remote source configured")
	default:
		e.logger.Warn("failed to load remote flags", "err", err)
	}
}

// Initialized reports whether Initialize has completed since the last Cleanup.
func (e *Engine) Initialized() bool {
	return e.initialized.Load()
}

// Cleanup cancels pending override reverts, drops every listener and marks
// the engine uninitialized. Flags stay in the store.
func (e *Engine) Cleanup() {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	e.mu.Lock()
	e.stopAllRevertsLocked()
	e.mu.Unlock()

	e.bus.clear()
	e.initialized.Store(false)
	e.logger.Debug("feature flags cleaned up")
}

// DebugInfo is a diagnostic snapshot of the engine.
type DebugInfo struct {
	Initialized     bool           `json:"initialized"`
	FlagCount       int            `json:"flag_count"`
	Sources         []model.Source `json:"sources"`
	Listeners       int            `json:"listeners"`
	ActiveOverrides []string       `json:"active_overrides"`
	ListenerFaults  uint64         `json:"listener_faults"`
	LastSync        *time.Time     `json:"last_sync,omitempty"`
}

// DebugInfo returns a diagnostic snapshot. Sources and ActiveOverrides are
// sorted.
func (e *Engine) DebugInfo() DebugInfo {
	e.mu.Lock()
	seen := make(map[model.Source]struct{})
	overrides := []string{}
	for name, f := range e.flags {
		seen[f.Source] = struct{}{}
		if f.Source == model.SourceOverride {
			overrides = append(overrides, name)
		}
	}
	info := DebugInfo{
		Initialized:     e.initialized.Load(),
		FlagCount:       len(e.flags),
		ActiveOverrides: overrides,
	}
	if !e.lastSync.IsZero() {
		ts := e.lastSync
		info.LastSync = &ts
	}
	e.mu.Unlock()

	info.Sources = make([]model.Source, 0, len(seen))
	for src := range seen {
		info.Sources = append(info.Sources, src)
	}
	sort.Slice(info.Sources, func(i, j int) bool { return info.Sources[i] < info.Sources[j] })
	sort.Strings(info.ActiveOverrides)
	info.Listeners = e.bus.count()
	info.ListenerFaults = e.bus.faults.Load()
	return info
}

// ExportFlags returns every flag in its serializable form.
func (e *Engine) ExportFlags() map[string]model.ExportedFlag {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]model.ExportedFlag, len(e.flags))
	for name, f := range e.flags {
		out[name] = f.Export()
	}
	return out
}

// TrackUsage reports a read of the named flag to the analytics collaborator.
// Nothing is emitted for an unknown flag, without a collaborator, or while
// the collaborator's analytics gate is off. It never panics.
func (e *Engine) TrackUsage(name string, attrs map[string]any) {
	if e.analytics == nil {
		return
	}
	f, ok := e.Get(name)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("usage tracking failed", "flag", name, "err", fmt.Errorf("analytics: %v", r))
		}
	}()
	if !e.analytics.IsFeatureEnabled(AnalyticsFlag) {
		return
	}
	e.analytics.RecordUsage(model.UsageEvent{
		Flag:      name,
		Enabled:   f.Enabled,
		Source:    f.Source,
		Context:   attrs,
		Timestamp: e.clock.Now(),
	})
}
