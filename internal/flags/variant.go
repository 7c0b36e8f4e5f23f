package flags

import "github.com/cespare/xxhash/v2"

// Bucket maps a subject to one of n buckets for the named test. The index
// is xxhash64(testName + ":" + subjectID) mod n: seedless, so the same
// inputs give the same bucket on every run and platform.
func Bucket(testName, subjectID string, n int) int {
	if n <= 0 {
		return 0
	}
	return int(xxhash.Sum64String(testName+":"+subjectID) % uint64(n))
}

// Variant returns the variant assigned to subjectID in testName. While the
// test's ab_test_<name> flag is disabled or absent every subject gets the
// control, variants[0]. The zero value is returned for an empty slice.
func Variant[T any](e *Engine, testName string, variants []T, subjectID string) T {
	var zero T
	if len(variants) == 0 {
		return zero
	}
	if !e.IsEnabled(ABTestFlagName(testName)) {
		return variants[0]
	}
	return variants[Bucket(testName, subjectID, len(variants))]
}

// GetVariant is Variant for string variants.
func (e *Engine) GetVariant(testName string, variants []string, subjectID string) string {
	return Variant(e, testName, variants, subjectID)
}
