package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/glider-logs/internal/config"
	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/divelog"
	"github.com/banshee-data/glider-logs/internal/httputil"
	"github.com/banshee-data/glider-logs/internal/merge"
	"github.com/banshee-data/glider-logs/internal/monitoring"
	"github.com/banshee-data/glider-logs/internal/security"
)

// MergeRequest is the body of POST /api/merge. Records and snapshots use
// the dive document format read by divelog.Decode. Options override the
// server defaults field by field.
type MergeRequest struct {
	Records   []json.RawMessage   `json:"records"`
	Snapshots []json.RawMessage   `json:"snapshots,omitempty"`
	Options   *config.MergeConfig `json:"options,omitempty"`
	Label     string              `json:"label,omitempty"`
}

// DirMergeRequest is the body of POST /api/merge/dir. Dir is relative to
// the server's log root.
type DirMergeRequest struct {
	Dir     string              `json:"dir"`
	Options *config.MergeConfig `json:"options,omitempty"`
	Label   string              `json:"label,omitempty"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if !httputil.DecodeJSONBody(w, r, &req, s.maxBody) {
		return
	}

	records := make([]dive.Record, len(req.Records))
	for i, raw := range req.Records {
		rec, err := divelog.Decode(raw)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("record %d: %v", i, err))
			return
		}
		records[i] = rec
	}

	var snapshots []dive.Snapshot
	if req.Snapshots != nil {
		snapshots = make([]dive.Snapshot, len(req.Snapshots))
		for i, raw := range req.Snapshots {
			snap, err := divelog.DecodeSnapshot(raw)
			if err != nil {
				httputil.BadRequest(w, fmt.Sprintf("snapshot %d: %v", i, err))
				return
			}
			snapshots[i] = snap
		}
	}

	s.runMerge(w, r, records, snapshots, req.Options, req.Label)
}

func (s *Server) handleMergeDir(w http.ResponseWriter, r *http.Request) {
	if s.fsys == nil || s.logRoot == "" {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no log root configured")
		return
	}
	var req DirMergeRequest
	if !httputil.DecodeJSONBody(w, r, &req, s.maxBody) {
		return
	}
	if req.Dir == "" {
		httputil.BadRequest(w, "missing dir")
		return
	}

	dir, err := security.ResolveWithin(s.logRoot, req.Dir)
	if err != nil {
		if errors.Is(err, security.ErrOutsideRoot) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	if !s.fsys.Exists(dir) {
		httputil.NotFound(w, fmt.Sprintf("no such log directory %q", req.Dir))
		return
	}

	records, err := divelog.LoadDir(s.fsys, dir)
	if err != nil {
		writeMergeError(w, err)
		return
	}
	label := req.Label
	if label == "" {
		label = req.Dir
	}
	s.runMerge(w, r, records, nil, req.Options, label)
}

// runMerge merges with the request options over the server defaults and
// writes the formatted output. With ?save=true the dataset is also stored
// and its run id returned in RunIDHeader.
func (s *Server) runMerge(w http.ResponseWriter, r *http.Request, records []dive.Record, snapshots []dive.Snapshot, overrides *config.MergeConfig, label string) {
	save := false
	if v := r.URL.Query().Get("save"); v != "" {
		var err error
		if save, err = strconv.ParseBool(v); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid save value %q", v))
			return
		}
	}
	if save && s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}

	opts, err := merge.OptionsFromConfig(s.defaults.Overlay(overrides))
	if err != nil {
		writeMergeError(w, err)
		return
	}
	ds, err := merge.Build(records, snapshots, opts)
	if err != nil {
		writeMergeError(w, err)
		return
	}
	out, err := merge.FormatDataset(ds, opts.Format)
	if err != nil {
		writeMergeError(w, err)
		return
	}

	if save {
		runID, err := s.store.SaveDataset(ds, label)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to save run: %v", err))
			return
		}
		w.Header().Set(RunIDHeader, runID)
	}
	monitoring.Debugf("api: merged %d of %d dives as %s", out.Len(), len(records), opts.Format)
	httputil.WriteJSONOK(w, out)
}

func writeMergeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, merge.ErrInvalidInputShape),
		errors.Is(err, merge.ErrInvalidOptions),
		errors.Is(err, merge.ErrInvalidOutputFormat),
		errors.Is(err, divelog.ErrInvalidLog):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
