package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/toggles/internal/model"
)

// LoadDocument reads the flag section of the application config from path.
// The format follows the file extension: .yaml/.yml, .toml or .json.
func LoadDocument(path string) (model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("read flag document: %w", err)
	}
	return ParseDocument(filepath.Ext(path), data)
}

// ParseDocument decodes a flag document in the format named by ext.
func ParseDocument(ext string, data []byte) (model.Document, error) {
	var doc model.Document
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return model.Document{}, fmt.Errorf("parse yaml flag document: %w", err)
		}
	case "toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
			return model.Document{}, fmt.Errorf("parse toml flag document: %w", err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return model.Document{}, fmt.Errorf("parse json flag document: %w", err)
		}
	default:
		return model.Document{}, fmt.Errorf("unsupported flag document format %q", ext)
	}
	return doc, nil
}
