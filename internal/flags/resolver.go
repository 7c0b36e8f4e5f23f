package flags

import "github.com/alfredjeanlab/toggles/internal/model"

// FeatureFlagName returns the flag name backing feature key k.
func FeatureFlagName(k string) string { return model.FeaturePrefix + k }

// ExperimentalFlagName returns the flag name backing experimental key k.
func ExperimentalFlagName(k string) string { return model.ExperimentalPrefix + k }

// ABTestFlagName returns the flag name gating A/B test testName.
func ABTestFlagName(testName string) string { return model.ABTestPrefix + testName }

// IsFeatureEnabled reports whether feature_<key> is enabled.
func (e *Engine) IsFeatureEnabled(key string) bool {
	return e.IsEnabled(FeatureFlagName(key))
}

// IsExperimentalEnabled reports whether experimental_<key> is enabled.
func (e *Engine) IsExperimentalEnabled(key string) bool {
	return e.IsEnabled(ExperimentalFlagName(key))
}
