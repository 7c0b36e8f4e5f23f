package config

import (
	"github.com/alfredjeanlab/toggles/internal/model"
)

// Provider answers the engine's config questions from a loaded Config and
// flag document. The document is read once and never changes.
type Provider struct {
	cfg *Config
	doc model.Document
}

// NewProvider returns a provider over cfg. If cfg names a flag document it
// is loaded now.
func NewProvider(cfg *Config) (*Provider, error) {
	p := &Provider{cfg: cfg}
	if cfg.ConfigFile != "" {
		doc, err := LoadDocument(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		p.doc = doc
	}
	return p, nil
}

// Environment returns the active environment name.
func (p *Provider) Environment() string {
	return p.cfg.Environment
}

// Document returns the flag section of the application config.
func (p *Provider) Document() model.Document {
	return p.doc
}

// APIEndpoint returns the base URL and API version of the remote flags service.
func (p *Provider) APIEndpoint() (baseURL, version string) {
	return p.cfg.APIBaseURL, p.cfg.APIVersion
}
