package sync

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	FlagCount int       `json:"flag_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string             `json:"type"`
	Data model.ExportedFlag `json:"data"`
}

// Exporter is anything that can snapshot its flags.
type Exporter interface {
	ExportFlags() map[string]model.ExportedFlag
}

// ExportJSONL writes a header line and then one line per flag, sorted by
// name, to w. It returns the number of flags written.
func ExportJSONL(src Exporter, w io.Writer, now time.Time) (int, error) {
	flags := src.ExportFlags()
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   "1",
		Type:      "header",
		Timestamp: now.UTC(),
		FlagCount: len(names),
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	for _, name := range names {
		if err := enc.Encode(record{Type: "flag", Data: flags[name]}); err != nil {
			return 0, fmt.Errorf("encode flag %s: %w", name, err)
		}
	}
	return len(names), nil
}
