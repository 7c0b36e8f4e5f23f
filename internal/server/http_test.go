package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alfredjeanlab/toggles/internal/analytics"
	"github.com/alfredjeanlab/toggles/internal/flags"
	"github.com/alfredjeanlab/toggles/internal/metrics"
	"github.com/alfredjeanlab/toggles/internal/model"
	flagsync "github.com/alfredjeanlab/toggles/internal/sync"
)

func TestHandleHealth(t *testing.T) {
	env := newTestServer(t, Options{})
	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	requireStatus(t, rec, http.StatusOK)

	got := decodeJSON[healthResponse](t, rec)
	if got.Status != "ok" || got.Initialized {
		t.Fatalf("unexpected health response %+v", got)
	}
}

func TestHandleListFlags(t *testing.T) {
	env := newTestServer(t, Options{})
	env.engine.Set("b_flag", model.Patch{Enabled: model.Bool(true), Source: model.SourceConfig})
	env.engine.Set("a_flag", model.Patch{Enabled: model.Bool(false), Source: model.SourceRemote})
	env.engine.Set("c_flag", model.Patch{Enabled: model.Bool(true), Source: model.SourceConfig})

	for _, tc := range []struct {
		name   string
		path   string
		status int
		want   []string
	}{
		{"all sorted", "/v1/flags", http.StatusOK, []string{"a_flag", "b_flag", "c_flag"}},
		{"by source", "/v1/flags?source=config", http.StatusOK, []string{"b_flag", "c_flag"}},
		{"empty source", "/v1/flags?source=override", http.StatusOK, []string{}},
		{"unknown source", "/v1/flags?source=bogus", http.StatusBadRequest, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tc.path, nil)
			requireStatus(t, rec, tc.status)
			if tc.status != http.StatusOK {
				return
			}
			got := decodeJSON[listFlagsResponse](t, rec)
			if len(got.Flags) != len(tc.want) {
				t.Fatalf("expected %d flags, got %d", len(tc.want), len(got.Flags))
			}
			for i, name := range tc.want {
				if got.Flags[i].Name != name {
					t.Errorf("flags[%d] = %q, want %q", i, got.Flags[i].Name, name)
				}
			}
		})
	}
}

func TestHandleGetFlag(t *testing.T) {
	env := newTestServer(t, Options{})
	env.engine.Set("feature_darkMode", model.Patch{Enabled: model.Bool(true), Source: model.SourceRemote})

	rec := env.do(t, http.MethodGet, "/v1/flags/feature_darkMode", nil)
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[model.Flag](t, rec)
	if !got.Enabled || got.Source != model.SourceRemote {
		t.Fatalf("unexpected flag %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/v1/flags/missing", nil)
	requireStatus(t, rec, http.StatusNotFound)
}

func TestHandleSetFlag(t *testing.T) {
	env := newTestServer(t, Options{})
	env.engine.Override("feature_x", true, 0)

	rec := env.do(t, http.MethodPut, "/v1/flags/feature_x", map[string]any{"enabled": false, "description": "kill switch"})
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[model.Flag](t, rec)
	if got.Enabled || got.Source != model.SourceManual || got.Original != nil || got.Description != "kill switch" {
		t.Fatalf("unexpected flag %+v", got)
	}

	for _, tc := range []struct {
		name string
		body string
	}{
		{"missing enabled", `{}`},
		{"unknown field", `{"enabled":true,"extra":1}`},
		{"malformed", `{"enabled":`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/flags/feature_x", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)
			requireStatus(t, rec, http.StatusBadRequest)
		})
	}
}

func TestHandleOverride(t *testing.T) {
	env := newTestServer(t, Options{})
	env.engine.Set("feature_beta", model.Patch{Enabled: model.Bool(false), Source: model.SourceConfig})

	client, _ := env.srv.hub.subscribe([]string{"toggles.override.*"}, 0)
	defer env.srv.hub.unsubscribe(client)

	rec := env.do(t, http.MethodPost, "/v1/flags/feature_beta/override", map[string]any{"enabled": true, "duration": "30s"})
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[model.Flag](t, rec)
	if !got.Enabled || got.Source != model.SourceOverride {
		t.Fatalf("unexpected flag %+v", got)
	}
	if got.Original == nil || got.Original.Enabled || got.Original.Source != model.SourceConfig {
		t.Fatalf("unexpected original %+v", got.Original)
	}

	select {
	case evt := <-client.ch:
		var payload struct {
			ID        string     `json:"id"`
			Flag      string     `json:"flag"`
			ExpiresAt *time.Time `json:"expires_at"`
		}
		if err := json.Unmarshal(evt.Data, &payload); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		want := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
		if evt.Topic != "toggles.override.set" || payload.Flag != "feature_beta" || payload.ID == "" {
			t.Fatalf("unexpected event %s %s", evt.Topic, evt.Data)
		}
		if payload.ExpiresAt == nil || !payload.ExpiresAt.Equal(want) {
			t.Fatalf("expires_at = %v, want %v", payload.ExpiresAt, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for override event")
	}

	rec = env.do(t, http.MethodGet, "/v1/overrides", nil)
	requireStatus(t, rec, http.StatusOK)
	overrides := decodeJSON[listOverridesResponse](t, rec)
	if len(overrides.Overrides) != 1 || overrides.Overrides[0].ExpiresAt == nil {
		t.Fatalf("unexpected overrides %+v", overrides)
	}

	for _, body := range []map[string]any{
		{"duration": "1m"},
		{"enabled": true, "duration": "soon"},
		{"enabled": true, "duration": "-5s"},
	} {
		rec := env.do(t, http.MethodPost, "/v1/flags/feature_beta/override", body)
		requireStatus(t, rec, http.StatusBadRequest)
	}
}

func TestHandleRevert(t *testing.T) {
	env := newTestServer(t, Options{})
	env.engine.Set("feature_beta", model.Patch{Enabled: model.Bool(false), Source: model.SourceRemote})
	env.engine.Override("feature_beta", true, time.Hour)

	rec := env.do(t, http.MethodDelete, "/v1/flags/feature_beta/override", nil)
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[model.Flag](t, rec)
	if got.Enabled || got.Source != model.SourceRemote || got.Original != nil {
		t.Fatalf("unexpected flag after revert %+v", got)
	}

	// Reverting a flag that is not overridden is a no-op.
	rec = env.do(t, http.MethodDelete, "/v1/flags/feature_beta/override", nil)
	requireStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodDelete, "/v1/flags/missing/override", nil)
	requireStatus(t, rec, http.StatusNotFound)
}

func TestHandleEvaluations(t *testing.T) {
	m := metrics.NewHTTPMetrics()
	env := newTestServer(t, Options{Metrics: m})
	env.engine.SetEnabled("feature_darkMode", true)
	env.engine.SetEnabled("experimental_newEditor", false)

	rec := env.do(t, http.MethodGet, "/v1/features/darkMode", nil)
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[evaluationResponse](t, rec)
	if !got.Enabled || got.Flag != "feature_darkMode" || got.Key != "darkMode" {
		t.Fatalf("unexpected feature evaluation %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/v1/experimental/newEditor", nil)
	requireStatus(t, rec, http.StatusOK)
	if got := decodeJSON[evaluationResponse](t, rec); got.Enabled {
		t.Fatalf("expected experimental flag off, got %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/v1/features/unknown", nil)
	requireStatus(t, rec, http.StatusOK)
	if got := decodeJSON[evaluationResponse](t, rec); got.Enabled {
		t.Fatal("expected unknown feature to be off")
	}

	if v := testutil.ToFloat64(m.Evaluations.WithLabelValues("feature", "true")); v != 1 {
		t.Errorf("feature/true evaluations = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.Evaluations.WithLabelValues("feature", "false")); v != 1 {
		t.Errorf("feature/false evaluations = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.Evaluations.WithLabelValues("experimental", "false")); v != 1 {
		t.Errorf("experimental/false evaluations = %v, want 1", v)
	}
}

func TestHandleVariant(t *testing.T) {
	env := newTestServer(t, Options{})
	variants := []string{"control", "blue", "green"}
	body := map[string]any{"variants": variants, "subject_id": "user-42"}

	rec := env.do(t, http.MethodPost, "/v1/variants/checkout", body)
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[variantResponse](t, rec)
	if got.Active || got.Variant != "control" || got.Flag != "ab_test_checkout" {
		t.Fatalf("expected control while test is off, got %+v", got)
	}

	env.engine.SetEnabled("ab_test_checkout", true)
	want := variants[flags.Bucket("checkout", "user-42", len(variants))]
	for range 3 {
		rec = env.do(t, http.MethodPost, "/v1/variants/checkout", body)
		requireStatus(t, rec, http.StatusOK)
		got = decodeJSON[variantResponse](t, rec)
		if !got.Active || got.Variant != want {
			t.Fatalf("expected stable variant %q, got %+v", want, got)
		}
	}

	for _, bad := range []map[string]any{
		{"subject_id": "u"},
		{"variants": []string{"a", "a"}, "subject_id": "u"},
		{"variants": []string{"a", " "}, "subject_id": "u"},
	} {
		rec := env.do(t, http.MethodPost, "/v1/variants/checkout", bad)
		requireStatus(t, rec, http.StatusBadRequest)
	}
}

func TestHandleTrackUsage(t *testing.T) {
	tracker := analytics.New(true)
	env := newTestServer(t, Options{Usage: tracker}, flags.WithAnalytics(tracker))
	env.engine.SetEnabled("feature_darkMode", true)

	rec := env.do(t, http.MethodPost, "/v1/flags/feature_darkMode/usage", map[string]any{"context": map[string]any{"page": "home"}})
	requireStatus(t, rec, http.StatusAccepted)

	rec = env.do(t, http.MethodPost, "/v1/flags/missing/usage", nil)
	requireStatus(t, rec, http.StatusNotFound)

	rec = env.do(t, http.MethodGet, "/v1/usage?stale=0s", nil)
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[usageResponse](t, rec)
	if len(got.Usage) != 1 || got.Usage[0].Flag != "feature_darkMode" || got.Usage[0].Reads != 1 {
		t.Fatalf("unexpected usage %+v", got.Usage)
	}

	rec = env.do(t, http.MethodGet, "/v1/usage?stale=later", nil)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestHandleListUsage_NotConfigured(t *testing.T) {
	env := newTestServer(t, Options{})
	rec := env.do(t, http.MethodGet, "/v1/usage", nil)
	requireStatus(t, rec, http.StatusNotImplemented)
}

func TestHandleSave(t *testing.T) {
	env := newTestServer(t, Options{})
	env.engine.SetEnabled("a", true)
	env.engine.SetEnabled("b", false)

	rec := env.do(t, http.MethodPost, "/v1/save", nil)
	requireStatus(t, rec, http.StatusOK)
	if got := decodeJSON[saveResponse](t, rec); got.Saved != 2 {
		t.Fatalf("saved = %d, want 2", got.Saved)
	}

	rec = env.do(t, http.MethodPost, "/v1/save", map[string]any{"flags": []string{"a"}})
	requireStatus(t, rec, http.StatusOK)
	if got := decodeJSON[saveResponse](t, rec); got.Saved != 1 {
		t.Fatalf("saved = %d, want 1", got.Saved)
	}
}

func TestHandleSave_NoStorage(t *testing.T) {
	env := newTestServer(t, Options{}, flags.WithStorage(nil))
	rec := env.do(t, http.MethodPost, "/v1/save", nil)
	requireStatus(t, rec, http.StatusInternalServerError)
}

type fakeSyncer struct {
	calls int
	res   flagsync.Result
}

func (f *fakeSyncer) SyncOnce(context.Context) flagsync.Result {
	f.calls++
	return f.res
}

func TestHandleSync(t *testing.T) {
	for _, tc := range []struct {
		name   string
		remote flags.RemoteSource
		status int
	}{
		{"no remote", nil, http.StatusConflict},
		{"fetch failure", fakeRemote{err: errors.New("connection refused")}, http.StatusBadGateway},
		{"malformed", fakeRemote{body: []byte(`[1,2`)}, http.StatusBadGateway},
		{"ok", fakeRemote{body: []byte(`{"feature_a":{"enabled":true}}`)}, http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var opts []flags.Option
			if tc.remote != nil {
				opts = append(opts, flags.WithRemote(tc.remote))
			}
			env := newTestServer(t, Options{}, opts...)
			rec := env.do(t, http.MethodPost, "/v1/sync", nil)
			requireStatus(t, rec, tc.status)
			if tc.status != http.StatusOK {
				return
			}
			got := decodeJSON[syncResponse](t, rec)
			if !got.Refreshed || got.FlagCount != 1 || got.LastSync == nil {
				t.Fatalf("unexpected sync response %+v", got)
			}
			if !env.engine.IsEnabled("feature_a") {
				t.Fatal("expected remote flag to be applied")
			}
		})
	}
}

func TestHandleSync_WithSyncer(t *testing.T) {
	last := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	syncer := &fakeSyncer{res: flagsync.Result{Refreshed: true, FlagCount: 4, Bytes: 512, LastSync: last}}
	env := newTestServer(t, Options{Syncer: syncer})

	rec := env.do(t, http.MethodPost, "/v1/sync", nil)
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[syncResponse](t, rec)
	if syncer.calls != 1 || got.FlagCount != 4 || got.Exported != 512 || !got.LastSync.Equal(last) {
		t.Fatalf("unexpected sync response %+v (calls=%d)", got, syncer.calls)
	}
}

func TestHandleExport(t *testing.T) {
	env := newTestServer(t, Options{})
	env.engine.SetEnabled("feature_b", true)
	env.engine.Override("feature_a", true, 0)

	rec := env.do(t, http.MethodGet, "/v1/export", nil)
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[map[string]model.ExportedFlag](t, rec)
	if len(got) != 2 || got["feature_a"].OriginalValue == nil {
		t.Fatalf("unexpected export %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/v1/export?format=jsonl", nil)
	requireStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}
	lines := 0
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		lines++
	}
	if lines != 3 {
		t.Fatalf("expected header plus 2 records, got %d lines", lines)
	}

	rec = env.do(t, http.MethodGet, "/v1/export?format=xml", nil)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestHandleDebug(t *testing.T) {
	env := newTestServer(t, Options{})
	env.engine.SetEnabled("feature_b", true)
	env.engine.Override("feature_a", false, time.Minute)

	rec := env.do(t, http.MethodGet, "/v1/debug", nil)
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[debugResponse](t, rec)
	if got.FlagCount != 2 || got.Listeners != 1 {
		t.Fatalf("unexpected debug info %+v", got.DebugInfo)
	}
	if len(got.ActiveOverrides) != 1 || got.ActiveOverrides[0] != "feature_a" {
		t.Fatalf("active overrides = %v", got.ActiveOverrides)
	}
	if len(got.Overrides) != 1 || got.Overrides[0].ExpiresAt == nil {
		t.Fatalf("overrides = %+v", got.Overrides)
	}
}

func TestHandleMetrics(t *testing.T) {
	m := metrics.NewHTTPMetrics()
	env := newTestServer(t, Options{Metrics: m})
	env.srv.opts.Registry = metrics.NewRegistry(env.engine, m)
	env.handler = env.srv.Handler()
	env.engine.SetEnabled("feature_darkMode", true)

	env.do(t, http.MethodGet, "/v1/flags", nil)
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	requireStatus(t, rec, http.StatusOK)

	body := rec.Body.String()
	for _, want := range []string{
		`toggles_flag_enabled{flag="feature_darkMode",source="manual"} 1`,
		`toggles_http_requests_total{method="GET",route="/v1/flags",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
