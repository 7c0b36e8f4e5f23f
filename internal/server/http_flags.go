package server

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/alfredjeanlab/toggles/internal/events"
	"github.com/alfredjeanlab/toggles/internal/flags"
	"github.com/alfredjeanlab/toggles/internal/model"
)

type listFlagsResponse struct {
	Flags []model.Flag `json:"flags"`
}

// handleListFlags handles GET /v1/flags, optionally filtered by ?source=.
func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	var all map[string]model.Flag
	if q := r.URL.Query().Get("source"); q != "" {
		src := model.Source(q)
		if !src.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown source "+strconv.Quote(q))
			return
		}
		all = s.engine.BySource(src)
	} else {
		all = s.engine.All()
	}

	resp := listFlagsResponse{Flags: make([]model.Flag, 0, len(all))}
	for _, f := range all {
		resp.Flags = append(resp.Flags, f)
	}
	sort.Slice(resp.Flags, func(i, j int) bool { return resp.Flags[i].Name < resp.Flags[j].Name })
	writeJSON(w, http.StatusOK, resp)
}

// handleGetFlag handles GET /v1/flags/{name}.
func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	name, err := flagName(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, ok := s.engine.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "flag not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type setFlagRequest struct {
	Enabled     *bool   `json:"enabled"`
	Description *string `json:"description"`
}

// handleSetFlag handles PUT /v1/flags/{name}. The flag is written with
// source "manual", which also drops any override on it.
func (s *Server) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	name, err := flagName(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req setFlagRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	s.engine.Set(name, model.Patch{
		Enabled:     req.Enabled,
		Source:      model.SourceManual,
		Description: req.Description,
	})
	f, _ := s.engine.Get(name)
	writeJSON(w, http.StatusOK, f)
}

type overrideRequest struct {
	Enabled  *bool  `json:"enabled"`
	Duration string `json:"duration"`
}

// handleOverride handles POST /v1/flags/{name}/override. An empty duration
// makes the override permanent until reverted.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	name, err := flagName(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req overrideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	var d time.Duration
	if req.Duration != "" {
		d, err = time.ParseDuration(req.Duration)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "duration must be a non-negative Go duration such as \"30s\"")
			return
		}
	}

	s.engine.Override(name, *req.Enabled, d)

	ev := &events.OverrideSet{Flag: name, Enabled: *req.Enabled}
	if d > 0 {
		exp := s.engine.Clock().Now().Add(d).UTC()
		ev.ExpiresAt = &exp
	}
	s.Emit(events.TopicOverrideSet, ev)

	f, _ := s.engine.Get(name)
	writeJSON(w, http.StatusOK, f)
}

// handleRevert handles DELETE /v1/flags/{name}/override.
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	name, err := flagName(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, ok := s.engine.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "flag not found")
		return
	}
	if f.IsOverridden() {
		s.engine.RevertOverride(name)
		s.Emit(events.TopicOverrideReverted, &events.OverrideReverted{Flag: name})
		f, _ = s.engine.Get(name)
	}
	writeJSON(w, http.StatusOK, f)
}

type listOverridesResponse struct {
	Overrides []flags.OverrideInfo `json:"overrides"`
}

// handleListOverrides handles GET /v1/overrides.
func (s *Server) handleListOverrides(w http.ResponseWriter, _ *http.Request) {
	resp := listOverridesResponse{Overrides: s.engine.ActiveOverrides()}
	if resp.Overrides == nil {
		resp.Overrides = []flags.OverrideInfo{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type evaluationResponse struct {
	Key     string `json:"key"`
	Flag    string `json:"flag"`
	Enabled bool   `json:"enabled"`
}

// handleFeature handles GET /v1/features/{key}.
func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	name := flags.FeatureFlagName(key)
	if err := model.ValidateFlagName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	enabled := s.engine.IsFeatureEnabled(key)
	s.countEvaluation("feature", strconv.FormatBool(enabled))
	writeJSON(w, http.StatusOK, evaluationResponse{Key: key, Flag: name, Enabled: enabled})
}

// handleExperimental handles GET /v1/experimental/{key}.
func (s *Server) handleExperimental(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	name := flags.ExperimentalFlagName(key)
	if err := model.ValidateFlagName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	enabled := s.engine.IsExperimentalEnabled(key)
	s.countEvaluation("experimental", strconv.FormatBool(enabled))
	writeJSON(w, http.StatusOK, evaluationResponse{Key: key, Flag: name, Enabled: enabled})
}

type variantRequest struct {
	Variants  []string `json:"variants"`
	SubjectID string   `json:"subject_id"`
}

type variantResponse struct {
	Test      string `json:"test"`
	Flag      string `json:"flag"`
	SubjectID string `json:"subject_id"`
	Variant   string `json:"variant"`
	Active    bool   `json:"active"`
}

// handleVariant handles POST /v1/variants/{test}.
func (s *Server) handleVariant(w http.ResponseWriter, r *http.Request) {
	test := r.PathValue("test")
	name := flags.ABTestFlagName(test)
	if err := model.ValidateFlagName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req variantRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := model.ValidateVariants(req.Variants); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active := s.engine.IsEnabled(name)
	variant := s.engine.GetVariant(test, req.Variants, req.SubjectID)
	result := "control"
	if active {
		result = "assigned"
	}
	s.countEvaluation("variant", result)

	writeJSON(w, http.StatusOK, variantResponse{
		Test:      test,
		Flag:      name,
		SubjectID: req.SubjectID,
		Variant:   variant,
		Active:    active,
	})
}

type trackUsageRequest struct {
	Context map[string]any `json:"context"`
}

// handleTrackUsage handles POST /v1/flags/{name}/usage.
func (s *Server) handleTrackUsage(w http.ResponseWriter, r *http.Request) {
	name, err := flagName(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req trackUsageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := s.engine.Get(name); !ok {
		writeError(w, http.StatusNotFound, "flag not found")
		return
	}
	s.engine.TrackUsage(name, req.Context)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) countEvaluation(kind, result string) {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.Evaluations.WithLabelValues(kind, result).Inc()
}
