// Command glider-server serves the merge API, stores merge runs in SQLite
// and mounts the admin debug routes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/glider-logs/internal/api"
	"github.com/banshee-data/glider-logs/internal/config"
	"github.com/banshee-data/glider-logs/internal/fsutil"
	"github.com/banshee-data/glider-logs/internal/monitoring"
	"github.com/banshee-data/glider-logs/internal/store"
	"github.com/banshee-data/glider-logs/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "glider_merge.db", "SQLite database for merge runs, empty to disable")
	configPath  = flag.String("config", "", "Merge defaults JSON (defaults to "+config.DefaultConfigPath+" when present)")
	logRoot     = flag.String("log-root", "", "Directory that POST /api/merge/dir may read from")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadDefaults() (*config.MergeConfig, error) {
	if *configPath != "" {
		return config.LoadMergeConfig(*configPath)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadMergeConfig(config.DefaultConfigPath)
	}
	return config.DefaultMergeConfig(), nil
}

// newHandler builds the full route tree: the API, and the admin routes
// when a store is configured.
func newHandler(defaults *config.MergeConfig, st *store.Store, root string) (http.Handler, error) {
	mux := http.NewServeMux()

	opts := []api.Option{}
	if st != nil {
		if err := st.AttachAdminRoutes(mux); err != nil {
			return nil, fmt.Errorf("failed to attach admin routes: %w", err)
		}
		opts = append(opts, api.WithStore(st))
	}
	if root != "" {
		opts = append(opts, api.WithLogRoot(fsutil.OSFileSystem{}, root))
	}
	api.NewServer(defaults, opts...).Attach(mux)
	return api.LoggingMiddleware(mux), nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	defaults, err := loadDefaults()
	if err != nil {
		log.Fatalf("Failed to load merge defaults: %v", err)
	}
	monitoring.SetVerbose(*verbose || defaults.GetVerbose())

	var st *store.Store
	if *dbPath != "" {
		st, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open merge store: %v", err)
		}
		defer st.Close()
	}

	handler, err := newHandler(defaults, st, *logRoot)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    *listen,
		Handler: handler,
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("%s listening on %s", version.String(), *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
