package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/banshee-data/glider-logs/internal/httputil"
	"github.com/banshee-data/glider-logs/internal/merge"
	"github.com/banshee-data/glider-logs/internal/report"
	"github.com/banshee-data/glider-logs/internal/store"
)

// ScalarResponse is one stored scalar column.
type ScalarResponse struct {
	RunID  string        `json:"run_id"`
	Field  string        `json:"field"`
	Values *merge.Column `json:"values"`
}

// TableResponse is one stored compound or block table with per-member
// statistics of its numeric columns.
type TableResponse struct {
	RunID   string                 `json:"run_id"`
	Field   string                 `json:"field"`
	Table   *merge.Table           `json:"table"`
	Summary []report.ColumnSummary `json:"summary,omitempty"`
}

// requireStore writes 503 and returns false when no store is configured.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no run store configured")
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) || errors.Is(err, store.ErrFieldNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	runs, err := s.store.ListRuns()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.DeleteRun(r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getScalar(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, field := r.PathValue("id"), r.PathValue("field")
	col, err := s.store.ScalarColumn(id, field)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, ScalarResponse{RunID: id, Field: field, Values: col})
}

func (s *Server) getCompound(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, field := r.PathValue("id"), r.PathValue("field")
	t, err := s.store.CompoundTable(id, field)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, TableResponse{RunID: id, Field: field, Table: t, Summary: report.TableSummary(t)})
}

func (s *Server) getBlock(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, block := r.PathValue("id"), r.PathValue("block")
	t, err := s.store.BlockTable(id, block)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, TableResponse{RunID: id, Field: block, Table: t, Summary: report.TableSummary(t)})
}

// scalarChart serves an HTML line chart of a stored scalar column.
func (s *Server) scalarChart(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, field := r.URL.Query().Get("run"), r.URL.Query().Get("field")
	if id == "" || field == "" {
		httputil.BadRequest(w, "run and field are required")
		return
	}
	run, err := s.store.GetRun(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	col, err := s.store.ScalarColumn(id, field)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.ScalarChart(&buf, field, run.Headers, col); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// blockChart serves a PNG time plot of a stored block.
func (s *Server) blockChart(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, block := r.URL.Query().Get("run"), r.URL.Query().Get("block")
	if id == "" || block == "" {
		httputil.BadRequest(w, "run and block are required")
		return
	}
	t, err := s.store.BlockTable(id, block)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	dir, err := os.MkdirTemp("", "glider-plot-")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to create plot directory: %v", err))
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "block.png")
	if err := report.PlotTable(t, block, path); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to plot block: %v", err))
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}
