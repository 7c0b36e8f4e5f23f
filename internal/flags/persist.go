package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alfredjeanlab/toggles/internal/model"
	"github.com/alfredjeanlab/toggles/internal/storage"
)

// loadLocal reads the persisted flag map. A missing record or any failure
// leaves the store as it was. Like the other loaders it leaves listener
// delivery to Initialize.
func (e *Engine) loadLocal(ctx context.Context) {
	raw, err := e.storage.Get(ctx, model.LocalStorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		e.logger.Debug("no local flags stored")
		return
	}
	if err != nil {
		e.logger.Warn("failed to load local flags", "err", fmt.Errorf("%w: %w", ErrStorageRead, err))
		return
	}

	stored, err := model.DecodeStored(raw)
	if err != nil {
		e.logger.Warn("failed to load local flags", "err", fmt.Errorf("%w: %w", ErrStorageRead, err))
		return
	}

	e.mu.Lock()
	for _, name := range sortedKeys(stored) {
		sf := stored[name]
		src := sf.Source
		// An override's original is never persisted, so it cannot come back
		// as an override.
		if !src.IsValid() || src == model.SourceOverride {
			src = model.SourceLocal
		}
		e.applyLocked(name, model.Patch{Enabled: model.Bool(sf.Enabled), Source: src})
		if ts := model.ParseTimestamp(sf.LastUpdated); !ts.IsZero() {
			e.flags[name].LastUpdated = ts
		}
	}
	e.mu.Unlock()

	e.logger.Debug("local flags loaded", "count", len(stored))
}

// loadConfig flattens the config document into feature_/experimental_ flags.
func (e *Engine) loadConfig() {
	flat := e.config.Document().Flatten()

	e.mu.Lock()
	for _, name := range sortedKeys(flat) {
		e.applyLocked(name, model.Patch{Enabled: model.Bool(flat[name]), Source: model.SourceConfig})
	}
	e.mu.Unlock()

	e.logger.Debug("config flags loaded", "count", len(flat))
}

// SyncRemote fetches the remote flags document and merges it into the
// store with source "remote". An overridden flag keeps its override; the
// remote value replaces the state it will revert to.
func (e *Engine) SyncRemote(ctx context.Context) error {
	err := e.syncRemote(ctx)
	e.bus.drain()
	return err
}

// syncRemote is SyncRemote without listener delivery. Changes stay queued
// until the caller drains the bus.
func (e *Engine) syncRemote(ctx context.Context) error {
	if e.remote == nil {
		return ErrRemoteDisabled
	}

	body, err := e.remote.FetchFlags(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteFetch, err)
	}
	doc, err := parseRemote(body)
	if err != nil {
		return err
	}

	skipped := 0
	e.mu.Lock()
	for _, name := range sortedKeys(doc) {
		rf := doc[name]
		if rf.Enabled == nil {
			skipped++
			continue
		}
		p := model.Patch{Enabled: rf.Enabled, Source: model.SourceRemote}
		if f, ok := e.flags[name]; ok && f.Source == model.SourceOverride {
			// Only the revert target moves; the override stays in force.
			p = model.Patch{Original: &model.Original{Enabled: *rf.Enabled, Source: model.SourceRemote}}
		}
		if rf.Description != "" {
			p.Description = model.String(rf.Description)
		}
		e.applyLocked(name, p)
	}
	e.lastSync = e.clock.Now()
	e.mu.Unlock()

	if skipped > 0 {
		e.logger.Warn("remote flags without a value were skipped", "count", skipped)
	}
	e.logger.Info("remote flags synced", "count", len(doc)-skipped)
	return nil
}

func parseRemote(body []byte) (map[string]model.RemoteFlag, error) {
	var doc map[string]model.RemoteFlag
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRemotePayload, err)
	}
	return doc, nil
}

// LastSync returns the time of the last successful remote sync, or the zero
// time if there has been none.
func (e *Engine) LastSync() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// SaveLocalFlags persists every flag, or only the named ones, to local
// storage. Overridden flags are saved with their pre-override state.
func (e *Engine) SaveLocalFlags(ctx context.Context, names ...string) error {
	if e.storage == nil {
		return fmt.Errorf("%w: no storage configured", ErrStorageWrite)
	}

	e.mu.Lock()
	stored := make(map[string]model.StoredFlag, len(e.flags))
	add := func(f *model.Flag) {
		sf := f.ToStored()
		if f.Source == model.SourceOverride && f.Original != nil {
			sf.Enabled = f.Original.Enabled
			sf.Source = f.Original.Source
		}
		stored[f.Name] = sf
	}
	if len(names) == 0 {
		for _, f := range e.flags {
			add(f)
		}
	} else {
		for _, name := range names {
			if f, ok := e.flags[name]; ok {
				add(f)
			}
		}
	}
	e.mu.Unlock()

	raw, err := model.EncodeStored(stored)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStorageWrite, err)
		e.logger.Error("failed to save local flags", "err", err)
		return err
	}
	if err := e.storage.Set(ctx, model.LocalStorageKey, raw); err != nil {
		err = fmt.Errorf("%w: %w", ErrStorageWrite, err)
		e.logger.Error("failed to save local flags", "err", err)
		return err
	}

	e.logger.Debug("local flags saved", "count", len(stored))
	return nil
}

// ClearFlags empties the store and deletes the persisted record.
func (e *Engine) ClearFlags(ctx context.Context) error {
	e.Clear()
	if e.storage == nil {
		return nil
	}
	if err := e.storage.Remove(ctx, model.LocalStorageKey); err != nil {
		err = fmt.Errorf("%w: %w", ErrStorageWrite, err)
		e.logger.Error("failed to clear local flags", "err", err)
		return err
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
