package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glider-logs/internal/config"
	"github.com/banshee-data/glider-logs/internal/monitoring"
	"github.com/banshee-data/glider-logs/internal/store"
)

func TestNewHandler(t *testing.T) {
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	st, err := store.Open(filepath.Join(t.TempDir(), "merge.db"))
	require.NoError(t, err)
	defer st.Close()

	h, err := newHandler(config.DefaultMergeConfig(), st, t.TempDir())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/debug/", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewHandler_WithoutStore(t *testing.T) {
	h, err := newHandler(config.DefaultMergeConfig(), nil, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/debug/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadDefaults()
	require.NoError(t, err)
	assert.Equal(t, config.FormatArray, cfg.GetFormat())
}
