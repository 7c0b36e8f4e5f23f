package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/toggles/internal/idgen"
	"github.com/alfredjeanlab/toggles/internal/model"
)

// Event topic constants
const (
	TopicFlagChanged = "toggles.flag.changed"

	TopicOverrideSet      = "toggles.override.set"
	TopicOverrideReverted = "toggles.override.reverted"

	TopicFlagsSaved  = "toggles.flags.saved"
	TopicFlagsSynced = "toggles.flags.synced"

	// TopicRefresh asks every running server to re-fetch remote flags.
	TopicRefresh = "toggles.refresh"

	// TopicAll matches every toggles topic.
	TopicAll = "toggles.>"
)

// Event types

// FlagChanged is published whenever a flag's resolved value changes.
type FlagChanged struct {
	ID       string       `json:"id"`
	Flag     string       `json:"flag"`
	NewValue bool         `json:"new_value"`
	OldValue bool         `json:"old_value"`
	Source   model.Source `json:"source"`
	At       time.Time    `json:"at"`
}

type OverrideSet struct {
	ID        string     `json:"id"`
	Flag      string     `json:"flag"`
	Enabled   bool       `json:"enabled"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type OverrideReverted struct {
	ID   string `json:"id"`
	Flag string `json:"flag"`
}

type FlagsSaved struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

type FlagsSynced struct {
	ID       string    `json:"id"`
	Count    int       `json:"count"`
	LastSync time.Time `json:"last_sync"`
}

type Refresh struct {
	ID          string `json:"id"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// Event is implemented by every event payload; the id is assigned when the
// event is emitted.
type Event interface {
	stamp(id string)
}

// Stamp assigns ev a fresh event id.
func Stamp(ev Event) error {
	id, err := idgen.EventID()
	if err != nil {
		return err
	}
	ev.stamp(id)
	return nil
}

func (e *FlagChanged) stamp(id string)      { e.ID = id }
func (e *OverrideSet) stamp(id string)      { e.ID = id }
func (e *OverrideReverted) stamp(id string) { e.ID = id }
func (e *FlagsSaved) stamp(id string)       { e.ID = id }
func (e *FlagsSynced) stamp(id string)      { e.ID = id }
func (e *Refresh) stamp(id string)          { e.ID = id }

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
