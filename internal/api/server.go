// Package api serves the merge engine over HTTP: merging posted or
// server-side dive logs, browsing saved runs and charting their columns.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/glider-logs/internal/config"
	"github.com/banshee-data/glider-logs/internal/fsutil"
	"github.com/banshee-data/glider-logs/internal/httputil"
	"github.com/banshee-data/glider-logs/internal/monitoring"
	"github.com/banshee-data/glider-logs/internal/store"
	"github.com/banshee-data/glider-logs/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultMaxBody bounds a merge request body.
const DefaultMaxBody = 64 << 20

// RunIDHeader carries the id of a saved run on merge responses.
const RunIDHeader = "X-Run-ID"

// Server handles the merge API. The store and log root are optional; the
// routes that need them answer 503 when they are not configured.
type Server struct {
	defaults *config.MergeConfig
	store    *store.Store
	fsys     fsutil.FileSystem
	logRoot  string
	maxBody  int64
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables saving merges and the /api/runs routes.
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithLogRoot enables POST /api/merge/dir for directories under root.
func WithLogRoot(fsys fsutil.FileSystem, root string) Option {
	return func(s *Server) {
		s.fsys = fsys
		s.logRoot = root
	}
}

// WithMaxBody overrides DefaultMaxBody.
func WithMaxBody(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// NewServer returns a Server that applies request options on top of
// defaults. A nil defaults uses config.DefaultMergeConfig.
func NewServer(defaults *config.MergeConfig, opts ...Option) *Server {
	if defaults == nil {
		defaults = config.DefaultMergeConfig()
	}
	s := &Server{defaults: defaults, maxBody: DefaultMaxBody}
	for _, o := range opts {
		o(s)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + code + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + code + colorReset
	case statusCode >= 400:
		return colorBoldRed + code + colorReset
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	s.Attach(mux)
	return mux
}

// Attach registers the API routes on mux.
func (s *Server) Attach(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/merge", s.handleMerge)
	mux.HandleFunc("POST /api/merge/dir", s.handleMergeDir)
	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /api/version", s.showVersion)

	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)
	mux.HandleFunc("GET /api/runs/{id}/scalars/{field}", s.getScalar)
	mux.HandleFunc("GET /api/runs/{id}/compounds/{field}", s.getCompound)
	mux.HandleFunc("GET /api/runs/{id}/blocks/{block}", s.getBlock)

	mux.HandleFunc("GET /charts/scalar", s.scalarChart)
	mux.HandleFunc("GET /charts/block", s.blockChart)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.defaults)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Get())
}
