package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// LocalStorageKey is the well-known key holding the persisted flag map.
const LocalStorageKey = "feature_flags"

// StoredFlag is the persisted local-storage shape of a single flag.
type StoredFlag struct {
	Enabled     bool   `json:"enabled"`
	Source      Source `json:"source"`
	LastUpdated string `json:"lastUpdated"`
}

// ExportedFlag is a plain serializable snapshot of a flag for logs and tooling.
type ExportedFlag struct {
	Name          string    `json:"name"`
	Enabled       bool      `json:"enabled"`
	Source        Source    `json:"source"`
	LastUpdated   string    `json:"lastUpdated"`
	OriginalValue *Original `json:"originalValue,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// RemoteFlag is one entry of the remote flags document. Enabled is a
// pointer so entries without a value can be told apart from false.
type RemoteFlag struct {
	Enabled     *bool  `json:"enabled"`
	Description string `json:"description,omitempty"`
}

// ToStored converts a flag to its persisted shape.
func (f Flag) ToStored() StoredFlag {
	return StoredFlag{
		Enabled:     f.Enabled,
		Source:      f.Source,
		LastUpdated: f.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
}

// Export converts a flag to its exported shape.
func (f Flag) Export() ExportedFlag {
	c := f.Clone()
	return ExportedFlag{
		Name:          c.Name,
		Enabled:       c.Enabled,
		Source:        c.Source,
		LastUpdated:   c.LastUpdated.UTC().Format(time.RFC3339Nano),
		OriginalValue: c.Original,
		Description:   c.Description,
	}
}

// EncodeStored serializes a persisted flag map.
func EncodeStored(m map[string]StoredFlag) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal stored flags: %w", err)
	}
	return string(data), nil
}

// DecodeStored parses a persisted flag map. A malformed timestamp yields
// the zero time rather than an error.
func DecodeStored(raw string) (map[string]StoredFlag, error) {
	m := make(map[string]StoredFlag)
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("unmarshal stored flags: %w", err)
	}
	return m, nil
}

// ParseTimestamp parses an ISO-8601 timestamp written by ToStored.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
