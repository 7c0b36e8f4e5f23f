package model

import "time"

// UsageEvent is emitted by TrackUsage when analytics is enabled.
type UsageEvent struct {
	Flag      string         `json:"flag"`
	Enabled   bool           `json:"enabled"`
	Source    Source         `json:"source"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
