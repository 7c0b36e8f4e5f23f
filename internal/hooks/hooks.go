package hooks

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// When values select which transitions fire a hook.
const (
	WhenAny      = "any"
	WhenEnabled  = "enabled"
	WhenDisabled = "disabled"
)

// OnFailure values.
const (
	OnFailureWarn   = "warn"
	OnFailureIgnore = "ignore"
)

// Hook is one entry of the hooks file.
type Hook struct {
	Name string `yaml:"name"`
	// Flags are path.Match patterns over flag names ("feature_*").
	// Empty matches every flag.
	Flags     []string `yaml:"flags"`
	When      string   `yaml:"when"`
	Command   string   `yaml:"command"`
	Timeout   int      `yaml:"timeout"`
	OnFailure string   `yaml:"on_failure"`
}

type hooksFile struct {
	Hooks []Hook `yaml:"hooks"`
}

// LoadFile reads and validates a YAML hooks file.
func LoadFile(p string) ([]Hook, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("hooks: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML hooks document.
func Parse(data []byte) ([]Hook, error) {
	var f hooksFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("hooks: %w", err)
	}
	for i := range f.Hooks {
		h := &f.Hooks[i]
		if h.Name == "" {
			h.Name = fmt.Sprintf("hook-%d", i+1)
		}
		if h.Command == "" {
			return nil, fmt.Errorf("hooks: %s: command is required", h.Name)
		}
		switch h.When {
		case "":
			h.When = WhenAny
		case WhenAny, WhenEnabled, WhenDisabled:
		default:
			return nil, fmt.Errorf("hooks: %s: unknown when %q", h.Name, h.When)
		}
		switch h.OnFailure {
		case "":
			h.OnFailure = OnFailureWarn
		case OnFailureWarn, OnFailureIgnore:
		default:
			return nil, fmt.Errorf("hooks: %s: unknown on_failure %q", h.Name, h.OnFailure)
		}
		for _, pat := range h.Flags {
			if _, err := path.Match(pat, ""); err != nil {
				return nil, fmt.Errorf("hooks: %s: bad pattern %q: %w", h.Name, pat, err)
			}
		}
	}
	return f.Hooks, nil
}

// Matches reports whether h fires for a change of flag to enabled.
func (h Hook) Matches(flag string, enabled bool) bool {
	switch h.When {
	case WhenEnabled:
		if !enabled {
			return false
		}
	case WhenDisabled:
		if enabled {
			return false
		}
	}
	if len(h.Flags) == 0 {
		return true
	}
	for _, pat := range h.Flags {
		if ok, _ := path.Match(pat, flag); ok {
			return true
		}
	}
	return false
}
