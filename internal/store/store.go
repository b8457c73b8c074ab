// Package store persists merged datasets in SQLite so they can be listed,
// queried column by column and charted after the merge has run.
//
// Every merge run gets a UUID. Values are kept in long form, one row per
// cell, with the numeric and text sentinels stored as NULL.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/glider-logs/internal/monitoring"
	"github.com/banshee-data/glider-logs/internal/timeutil"
)

var (
	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("merge run not found")
	// ErrFieldNotFound is returned when a run has no field of that name.
	ErrFieldNotFound = errors.New("field not found in merge run")
)

// Store is a SQLite database of merge runs.
type Store struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// Open opens (creating if needed) the database at path, applies the
// connection PRAGMAs and migrates the schema to the latest version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{DB: db, path: path, clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	version, _, err := s.MigrateVersion()
	if err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("store: opened %s at schema version %d", path, version)
	return s, nil
}

// SetClock replaces the clock used to stamp new runs.
func (s *Store) SetClock(c timeutil.Clock) {
	s.clock = c
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
