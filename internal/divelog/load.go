package divelog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/fsutil"
	"github.com/banshee-data/glider-logs/internal/monitoring"
)

// maxLogSize bounds a single dive document.
const maxLogSize = 16 << 20

// LoadFile reads and decodes one dive document. A document without a
// source name takes the file's base name.
func LoadFile(fsys fsutil.FileSystem, path string) (dive.Record, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return dive.Record{}, fmt.Errorf("failed to stat dive log: %w", err)
	}
	if info.Size() > maxLogSize {
		return dive.Record{}, fmt.Errorf("dive log %s too large: %d bytes (max %d)", path, info.Size(), maxLogSize)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return dive.Record{}, fmt.Errorf("failed to read dive log: %w", err)
	}
	r, err := Decode(data)
	if err != nil {
		return dive.Record{}, fmt.Errorf("%s: %w", path, err)
	}
	if r.SourceName == "" {
		r.SourceName = filepath.Base(path)
	}
	return r, nil
}

// LoadDir loads every *.json file directly inside dir in file name order.
// Subdirectories are not descended into.
func LoadDir(fsys fsutil.FileSystem, dir string) ([]dive.Record, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list dive logs: %w", err)
	}

	var records []dive.Record
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		r, err := LoadFile(fsys, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	monitoring.Debugf("divelog: loaded %d dives from %s", len(records), dir)
	return records, nil
}

// WriteFile encodes r into path, creating parent directories.
func WriteFile(fsys fsutil.FileSystem, path string, r dive.Record) error {
	data, err := Encode(r)
	if err != nil {
		return fmt.Errorf("failed to encode dive log: %w", err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return fsys.WriteFile(path, data, 0o644)
}
