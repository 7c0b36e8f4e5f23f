package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/alfredjeanlab/toggles/internal/analytics"
	"github.com/alfredjeanlab/toggles/internal/events"
	"github.com/alfredjeanlab/toggles/internal/flags"
	flagsync "github.com/alfredjeanlab/toggles/internal/sync"
)

type saveRequest struct {
	Flags []string `json:"flags"`
}

type saveResponse struct {
	Saved int `json:"saved"`
}

// handleSave handles POST /v1/save. An optional body {"flags":[...]}
// limits the save to the named flags.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.SaveLocalFlags(r.Context(), req.Flags...); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	n := len(req.Flags)
	if n == 0 {
		n = s.engine.Len()
	}
	s.Emit(events.TopicFlagsSaved, &events.FlagsSaved{Count: n})
	writeJSON(w, http.StatusOK, saveResponse{Saved: n})
}

type syncResponse struct {
	Refreshed bool       `json:"refreshed"`
	FlagCount int        `json:"flag_count"`
	Exported  int        `json:"exported_bytes"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
}

// handleSync handles POST /v1/sync. With a Syncer the full pass runs and
// its own hook reports the result; otherwise only the remote refresh runs.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.opts.Syncer != nil {
		res := s.opts.Syncer.SyncOnce(r.Context())
		writeJSON(w, http.StatusOK, newSyncResponse(res))
		return
	}

	err := s.engine.SyncRemote(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, flags.ErrRemoteDisabled):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, flags.ErrRemoteFetch), errors.Is(err, flags.ErrMalformedRemotePayload):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res := flagsync.Result{Refreshed: true, FlagCount: s.engine.Len(), LastSync: s.engine.LastSync()}
	s.Emit(events.TopicFlagsSynced, &events.FlagsSynced{Count: res.FlagCount, LastSync: res.LastSync})
	writeJSON(w, http.StatusOK, newSyncResponse(res))
}

func newSyncResponse(res flagsync.Result) syncResponse {
	out := syncResponse{Refreshed: res.Refreshed, FlagCount: res.FlagCount, Exported: res.Bytes}
	if !res.LastSync.IsZero() {
		ts := res.LastSync.UTC()
		out.LastSync = &ts
	}
	return out
}

// handleExport handles GET /v1/export. ?format=jsonl streams the snapshot
// format written to sync destinations; the default is a JSON object keyed
// by flag name.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, s.engine.ExportFlags())
	case "jsonl":
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		if _, err := flagsync.ExportJSONL(s.engine, w, s.engine.Clock().Now()); err != nil {
			s.logger.Warn("export stream failed", "err", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "format must be json or jsonl")
	}
}

type debugResponse struct {
	flags.DebugInfo
	Overrides []flags.OverrideInfo `json:"overrides"`
}

// handleDebug handles GET /v1/debug.
func (s *Server) handleDebug(w http.ResponseWriter, _ *http.Request) {
	resp := debugResponse{
		DebugInfo: s.engine.DebugInfo(),
		Overrides: s.engine.ActiveOverrides(),
	}
	if resp.Overrides == nil {
		resp.Overrides = []flags.OverrideInfo{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type usageResponse struct {
	Usage []analytics.Entry `json:"usage"`
}

// handleListUsage handles GET /v1/usage. ?stale= (a Go duration, default
// 5m) hides flags not read within that window.
func (s *Server) handleListUsage(w http.ResponseWriter, r *http.Request) {
	if s.opts.Usage == nil {
		writeError(w, http.StatusNotImplemented, "usage tracking is not configured")
		return
	}
	stale := 5 * time.Minute
	if q := r.URL.Query().Get("stale"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "stale must be a non-negative Go duration")
			return
		}
		stale = d
	}

	resp := usageResponse{Usage: s.opts.Usage.Usage(stale)}
	if resp.Usage == nil {
		resp.Usage = []analytics.Entry{}
	}
	writeJSON(w, http.StatusOK, resp)
}
