package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glider-logs/internal/config"
	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/divelog"
	"github.com/banshee-data/glider-logs/internal/fsutil"
	"github.com/banshee-data/glider-logs/internal/monitoring"
	"github.com/banshee-data/glider-logs/internal/store"
	"github.com/banshee-data/glider-logs/internal/testutil"
)

// outputBody is the subset of the merge output the handlers are checked on.
type outputBody struct {
	Format    string                     `json:"format"`
	Headers   []dive.Header              `json:"headers"`
	Sources   []string                   `json:"sources"`
	Scalars   map[string][]any           `json:"scalars"`
	Compounds map[string]json.RawMessage `json:"compounds"`
	Series    map[string][]any           `json:"series"`
}

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "merge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func missionBody(t *testing.T, options string) []byte {
	t.Helper()
	req, err := NewMergeRequest(testutil.Mission())
	require.NoError(t, err)
	data, err := json.Marshal(req)
	require.NoError(t, err)
	if options == "" {
		return data
	}
	// Splice the options object in as raw JSON.
	return append(data[:len(data)-1], []byte(`,"options":`+options+`}`)...)
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeOutput(t *testing.T, rec *httptest.ResponseRecorder) outputBody {
	t.Helper()
	var out outputBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandleMerge(t *testing.T) {
	mux := NewServer(nil).ServeMux()

	rec := do(t, mux, http.MethodPost, "/api/merge", missionBody(t, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get(RunIDHeader))

	out := decodeOutput(t, rec)
	assert.Equal(t, "array", out.Format)
	require.Len(t, out.Headers, 3)
	assert.Equal(t, 1, out.Headers[0].DiveNumber)
	assert.Equal(t, 2, out.Headers[1].DiveNumber)
	assert.Equal(t, 2, out.Headers[2].MissionNumber)
	assert.Equal(t, []any{80.0, 90.0, 100.0}, out.Scalars["D_TGT"])
	assert.Equal(t, []any{30.0, nil, nil}, out.Scalars["T_DIVE"])
	assert.Contains(t, out.Compounds, "GC")
}

func TestHandleMerge_OptionsOverrideDefaults(t *testing.T) {
	defaults := config.DefaultMergeConfig()
	mux := NewServer(defaults).ServeMux()

	rec := do(t, mux, http.MethodPost, "/api/merge", missionBody(t, `{"format":"merged","params":["D_TGT","GC"]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decodeOutput(t, rec)
	assert.Equal(t, "merged", out.Format)
	assert.Contains(t, out.Scalars, "D_TGT")
	assert.Contains(t, out.Scalars, "GC_a")
	assert.NotContains(t, out.Scalars, "T_DIVE")
	assert.Nil(t, out.Compounds)

	// Server defaults are not changed by a request.
	assert.Equal(t, config.FormatArray, defaults.GetFormat())
}

func TestHandleMerge_Errors(t *testing.T) {
	mux := NewServer(nil, WithMaxBody(1<<20)).ServeMux()
	record, err := divelog.Encode(testutil.NewRecord(1, 1, 0).Scalar("D_TGT", 80).Build())
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		msg    string
	}{
		{"malformed_body", "/api/merge", `{"records":`, http.StatusBadRequest, "invalid JSON body"},
		{"unknown_key", "/api/merge", `{"recs":[]}`, http.StatusBadRequest, "invalid JSON body"},
		{"bad_record", "/api/merge", `{"records":[{"header":{},"scalars":{"X":{}}}]}`, http.StatusBadRequest, "record 0"},
		{"bad_snapshot", "/api/merge", `{"records":[` + string(record) + `],"snapshots":[{"extra":1}]}`, http.StatusBadRequest, "snapshot 0"},
		{"snapshot_shape", "/api/merge", `{"records":[` + string(record) + `],"snapshots":[{},{}]}`, http.StatusBadRequest, "invalid input shape"},
		{"bad_format", "/api/merge", `{"records":[],"options":{"format":"xml"}}`, http.StatusBadRequest, "invalid output format"},
		{"bad_ordering", "/api/merge", `{"records":[],"options":{"ordering":"chronological"}}`, http.StatusBadRequest, "invalid merge options"},
		{"bad_save", "/api/merge?save=maybe", `{"records":[]}`, http.StatusBadRequest, "invalid save value"},
		{"save_without_store", "/api/merge?save=true", `{"records":[]}`, http.StatusServiceUnavailable, "no run store"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, tc.target, []byte(tc.body))
			assert.Equal(t, tc.status, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp["error"], tc.msg)
		})
	}
}

func TestHandleMerge_EmptyInput(t *testing.T) {
	mux := NewServer(nil).ServeMux()

	rec := do(t, mux, http.MethodPost, "/api/merge", []byte(`{"records":[]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[]`, string(mustField(t, rec.Body.Bytes(), "headers")))
	assert.JSONEq(t, `null`, string(mustField(t, rec.Body.Bytes(), "mission_start")))
}

func mustField(t *testing.T, data []byte, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	v, ok := m[key]
	require.True(t, ok, "missing %s in %s", key, data)
	return v
}

func TestMethodRouting(t *testing.T) {
	mux := NewServer(nil).ServeMux()

	rec := do(t, mux, http.MethodGet, "/api/merge", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/runs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSavedRunRoutes(t *testing.T) {
	st := setupStore(t)
	mux := NewServer(nil, WithStore(st)).ServeMux()

	rec := do(t, mux, http.MethodPost, "/api/merge?save=1", missionBody(t, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	runID := rec.Header().Get(RunIDHeader)
	require.NotEmpty(t, runID)

	t.Run("list", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/api/runs", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var runs []store.RunSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, runID, runs[0].ID)
		assert.Equal(t, 3, runs[0].DiveCount)
	})

	t.Run("get", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/api/runs/"+runID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var run store.Run
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
		assert.Len(t, run.Headers, 3)
		assert.Equal(t, []string{"a", "b", "c"}, run.Compounds["GC"])
	})

	t.Run("scalar", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/api/runs/"+runID+"/scalars/MISSION_NAME", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"run_id":%q,"field":"MISSION_NAME","values":["shelf","shelf","slope"]}`, runID), rec.Body.String())
	})

	t.Run("compound", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/api/runs/"+runID+"/compounds/GC", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"members":["a","b","c"]`)
		assert.Contains(t, rec.Body.String(), `{"member":"a","count":2,"min":1,"max":10,"mean":5.5}`)
	})

	t.Run("block", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/api/runs/"+runID+"/blocks/STATE", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Summary []struct {
				Member string `json:"member"`
				Count  int    `json:"count"`
			} `json:"summary"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Summary, 3)
		assert.Equal(t, "secs", resp.Summary[0].Member)
		assert.Equal(t, 6, resp.Summary[0].Count)
	})

	t.Run("charts", func(t *testing.T) {
		rec := do(t, mux, http.MethodGet, "/charts/scalar?run="+runID+"&field=D_TGT", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "D_TGT")

		rec = do(t, mux, http.MethodGet, "/charts/scalar?run="+runID+"&field=MISSION_NAME", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, mux, http.MethodGet, "/charts/scalar?run="+runID, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, mux, http.MethodGet, "/charts/block?run="+runID+"&block=STATE", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("not_found", func(t *testing.T) {
		for _, target := range []string{
			"/api/runs/nope",
			"/api/runs/" + runID + "/scalars/NOPE",
			"/api/runs/" + runID + "/compounds/NOPE",
			"/api/runs/" + runID + "/blocks/NOPE",
			"/charts/block?run=nope&block=STATE",
		} {
			rec := do(t, mux, http.MethodGet, target, nil)
			assert.Equal(t, http.StatusNotFound, rec.Code, target)
		}
	})

	rec = do(t, mux, http.MethodDelete, "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, mux, http.MethodDelete, "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMergeDir(t *testing.T) {
	root := t.TempDir()
	fsys := fsutil.OSFileSystem{}
	for _, r := range testutil.Mission() {
		name := fmt.Sprintf("m%d_%s.json", r.Header.MissionNumber, r.SourceName)
		path := filepath.Join(root, "mission", name)
		require.NoError(t, divelog.WriteFile(fsys, path, r))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "mission", "notes.txt"), []byte("ignored"), 0o644))

	st := setupStore(t)
	mux := NewServer(nil, WithStore(st), WithLogRoot(fsys, root)).ServeMux()

	rec := do(t, mux, http.MethodPost, "/api/merge/dir?save=true", []byte(`{"dir":"mission","options":{"params":["D_TGT"]}}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeOutput(t, rec)
	require.Len(t, out.Headers, 3)
	assert.Equal(t, []any{80.0, 90.0, 100.0}, out.Scalars["D_TGT"])
	assert.Len(t, out.Scalars, 1)

	runs, err := st.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "mission", runs[0].Label)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"escape", `{"dir":"../elsewhere"}`, http.StatusBadRequest},
		{"absolute", `{"dir":"/etc"}`, http.StatusBadRequest},
		{"missing_dir", `{"dir":""}`, http.StatusBadRequest},
		{"no_such_dir", `{"dir":"mission9"}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, "/api/merge/dir", []byte(tc.body))
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}

	rec = do(t, NewServer(nil).ServeMux(), http.MethodPost, "/api/merge/dir", []byte(`{"dir":"mission"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestShowConfigAndVersion(t *testing.T) {
	mux := NewServer(config.DefaultMergeConfig()).ServeMux()

	rec := do(t, mux, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg, err := config.ParseMergeConfig(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultBlocks, cfg.GetBlocks())

	rec = do(t, mux, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"dev","git_sha":"unknown","build_time":"unknown"}`, rec.Body.String())
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := do(t, h, http.MethodGet, "/api/runs?x=1", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "["+colorBoldRed+"418"+colorReset+"] GET "), lines[0])
	assert.Contains(t, lines[0], "/api/runs?x=1")
}

func TestStatusCodeColor(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, colorBoldGreen + "200" + colorReset},
		{304, colorYellow + "304" + colorReset},
		{404, colorBoldRed + "404" + colorReset},
		{503, colorBoldRed + "503" + colorReset},
		{101, "101"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, statusCodeColor(tc.code))
	}
}
