package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// fakeSource is a minimal in-memory engine surface for sync tests.
type fakeSource struct {
	mu       stdsync.Mutex
	flags    map[string]model.ExportedFlag
	syncErr  error
	syncs    int
	lastSync time.Time
}

func newFakeSource() *fakeSource {
	return &fakeSource{flags: make(map[string]model.ExportedFlag)}
}

func (f *fakeSource) ExportFlags() map[string]model.ExportedFlag {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]model.ExportedFlag, len(f.flags))
	for k, v := range f.flags {
		out[k] = v
	}
	return out
}

func (f *fakeSource) SyncRemote(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	if f.syncErr != nil {
		return f.syncErr
	}
	f.lastSync = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return nil
}

func (f *fakeSource) LastSync() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSync
}

func (f *fakeSource) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs
}
