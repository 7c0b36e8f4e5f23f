// Package client provides the interface the tg CLI uses to talk to a
// toggles server and an HTTP/JSON implementation of it.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/toggles/internal/analytics"
	"github.com/alfredjeanlab/toggles/internal/flags"
	"github.com/alfredjeanlab/toggles/internal/model"
)

// FlagsClient is the interface every CLI command uses to reach the server.
type FlagsClient interface {
	Health(ctx context.Context) (*Health, error)

	ListFlags(ctx context.Context, source model.Source) ([]model.Flag, error)
	GetFlag(ctx context.Context, name string) (*model.Flag, error)
	SetFlag(ctx context.Context, name string, enabled bool) (*model.Flag, error)

	Override(ctx context.Context, name string, enabled bool, d time.Duration) (*model.Flag, error)
	RevertOverride(ctx context.Context, name string) (*model.Flag, error)
	ListOverrides(ctx context.Context) ([]flags.OverrideInfo, error)

	IsFeatureEnabled(ctx context.Context, key string) (*Evaluation, error)
	IsExperimentalEnabled(ctx context.Context, key string) (*Evaluation, error)
	GetVariant(ctx context.Context, test string, variants []string, subjectID string) (*VariantResult, error)

	TrackUsage(ctx context.Context, name string, attrs map[string]any) error
	Usage(ctx context.Context, stale time.Duration) ([]analytics.Entry, error)

	Save(ctx context.Context, names ...string) (int, error)
	Sync(ctx context.Context) (*SyncResult, error)
	Export(ctx context.Context) (map[string]model.ExportedFlag, error)
	Debug(ctx context.Context) (*Debug, error)

	// Stream delivers change events matching topics to fn until ctx is
	// done or fn returns an error.
	Stream(ctx context.Context, topics []string, fn func(Event) error) error

	Close() error
}

// Health is the server health report.
type Health struct {
	Status      string `json:"status"`
	Initialized bool   `json:"initialized"`
}

// Evaluation is the result of a feature or experimental check.
type Evaluation struct {
	Key     string `json:"key"`
	Flag    string `json:"flag"`
	Enabled bool   `json:"enabled"`
}

// VariantResult is the variant assigned to one subject.
type VariantResult struct {
	Test      string `json:"test"`
	Flag      string `json:"flag"`
	SubjectID string `json:"subject_id"`
	Variant   string `json:"variant"`
	Active    bool   `json:"active"`
}

// SyncResult summarizes a sync pass run by the server.
type SyncResult struct {
	Refreshed     bool       `json:"refreshed"`
	FlagCount     int        `json:"flag_count"`
	ExportedBytes int        `json:"exported_bytes"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
}

// Debug is the engine snapshot plus its active overrides.
type Debug struct {
	flags.DebugInfo
	Overrides []flags.OverrideInfo `json:"overrides"`
}

// Event is one frame of the server's change stream.
type Event struct {
	ID    string
	Topic string
	Data  json.RawMessage
}
