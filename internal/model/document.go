package model

// Document is the nested flag section of the application config.
// It is flattened into feature_<k> and experimental_<k> flags.
type Document struct {
	Features     map[string]bool `json:"features" yaml:"features" toml:"features"`
	Experimental map[string]bool `json:"experimental" yaml:"experimental" toml:"experimental"`
}

// Flatten expands the document into flat flag names using the prefix convention.
func (d Document) Flatten() map[string]bool {
	out := make(map[string]bool, len(d.Features)+len(d.Experimental))
	for k, v := range d.Features {
		out[FeaturePrefix+k] = v
	}
	for k, v := range d.Experimental {
		out[ExperimentalPrefix+k] = v
	}
	return out
}
