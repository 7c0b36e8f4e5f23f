package model

import (
	"time"
)

// Source records where a flag's current value came from.
type Source string

const (
	SourceLocal    Source = "local"
	SourceConfig   Source = "config"
	SourceRemote   Source = "remote"
	SourceManual   Source = "manual"
	SourceOverride Source = "override"
)

// String returns the string representation of the source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks whether the source is a known value.
func (s Source) IsValid() bool {
	switch s {
	case SourceLocal, SourceConfig, SourceRemote, SourceManual, SourceOverride:
		return true
	}
	return false
}

// Flag naming conventions used by the resolver helpers and config flattening.
const (
	FeaturePrefix      = "feature_"
	ExperimentalPrefix = "experimental_"
	ABTestPrefix       = "ab_test_"
)

// Original is the pre-override state captured by the first override in a chain.
type Original struct {
	Enabled bool   `json:"enabled"`
	Source  Source `json:"source"`
}

// Flag is the unit of state held by the engine.
type Flag struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	Source      Source    `json:"source"`
	LastUpdated time.Time `json:"last_updated"`
	Original    *Original `json:"original_value,omitempty"`
	Description string    `json:"description,omitempty"`
}

// IsOverridden reports whether the flag currently carries an override.
func (f Flag) IsOverridden() bool {
	return f.Source == SourceOverride
}

// Clone returns a copy that shares no pointers with f.
func (f Flag) Clone() Flag {
	if f.Original != nil {
		o := *f.Original
		f.Original = &o
	}
	return f
}

// Patch is a partial flag record merged into the store by Set.
// Nil/empty fields leave the existing value untouched. Original is only
// kept while the resulting source is SourceOverride.
type Patch struct {
	Enabled     *bool
	Source      Source
	Original    *Original
	Description *string
}

// Bool returns a pointer to b, for building patches.
func Bool(b bool) *bool {
	return &b
}

// String returns a pointer to s, for building patches.
func String(s string) *string {
	return &s
}
