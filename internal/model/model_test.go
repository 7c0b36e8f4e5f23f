package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSource_IsValid(t *testing.T) {
	for _, tc := range []struct {
		src  Source
		want bool
	}{
		{SourceLocal, true},
		{SourceConfig, true},
		{SourceRemote, true},
		{SourceManual, true},
		{SourceOverride, true},
		{Source(""), false},
		{Source("bogus"), false},
	} {
		if got := tc.src.IsValid(); got != tc.want {
			t.Errorf("Source(%q).IsValid() = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestFlag_CloneDoesNotShareOriginal(t *testing.T) {
	f := Flag{Name: "x", Source: SourceOverride, Original: &Original{Enabled: false, Source: SourceConfig}}
	c := f.Clone()
	c.Original.Enabled = true
	if f.Original.Enabled {
		t.Fatal("mutating the clone changed the original flag")
	}
}

func TestDocument_Flatten(t *testing.T) {
	d := Document{
		Features:     map[string]bool{"biometricAuth": true, "socialLogin": false},
		Experimental: map[string]bool{"newCheckout": true},
	}
	got := d.Flatten()
	want := map[string]bool{
		"feature_biometricAuth":    true,
		"feature_socialLogin":      false,
		"experimental_newCheckout": true,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d flags, want %d", len(got), len(want))
	}
	for k, v := range want {
		if gv, ok := got[k]; !ok || gv != v {
			t.Errorf("Flatten()[%q] = %v (present=%v), want %v", k, gv, ok, v)
		}
	}
}

func TestStoredRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	f := Flag{Name: "feature_a", Enabled: true, Source: SourceConfig, LastUpdated: ts}

	raw, err := EncodeStored(map[string]StoredFlag{f.Name: f.ToStored()})
	if err != nil {
		t.Fatalf("EncodeStored: %v", err)
	}
	if !strings.Contains(raw, `"lastUpdated":"2026-03-01T12:30:00Z"`) {
		t.Errorf("expected ISO lastUpdated in %s", raw)
	}

	m, err := DecodeStored(raw)
	if err != nil {
		t.Fatalf("DecodeStored: %v", err)
	}
	got := m["feature_a"]
	if !got.Enabled || got.Source != SourceConfig {
		t.Errorf("got %+v", got)
	}
	if !ParseTimestamp(got.LastUpdated).Equal(ts) {
		t.Errorf("timestamp = %s, want %s", got.LastUpdated, ts)
	}
}

func TestDecodeStored_Malformed(t *testing.T) {
	if _, err := DecodeStored("{not json"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	if !ParseTimestamp("yesterday").IsZero() {
		t.Fatal("expected zero time for invalid timestamp")
	}
}

func TestValidateFlagName(t *testing.T) {
	for _, tc := range []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Valid", "feature_darkMode", false},
		{"Empty", "", true},
		{"Whitespace", "feature dark", true},
		{"TooLong", strings.Repeat("a", 201), true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFlagName(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateFlagName(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected *ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestValidateVariants(t *testing.T) {
	if err := ValidateVariants([]string{"control", "treatment"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateVariants(nil); err == nil {
		t.Error("expected error for empty variants")
	}
	err := ValidateVariants([]string{"a", "a", " "})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %v", err)
	}
}
