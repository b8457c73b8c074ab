package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithin(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "mission7"), 0o755))
	canonicalRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	tests := []struct {
		name string
		rel  string
		want string
		ok   bool
	}{
		{"existing_dir", "mission7", filepath.Join(canonicalRoot, "mission7"), true},
		{"missing_file", "mission7/p5230001.json", filepath.Join(canonicalRoot, "mission7", "p5230001.json"), true},
		{"root_itself", ".", canonicalRoot, true},
		{"cleaned_dots", "mission7/../mission7", filepath.Join(canonicalRoot, "mission7"), true},
		{"parent", "..", "", false},
		{"escape", "mission7/../../etc", "", false},
		{"absolute", "/etc/passwd", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveWithin(root, tc.rel)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrOutsideRoot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveWithin_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	_, err := ResolveWithin(root, "link")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = ResolveWithin(root, "link/new.json")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestResolveWithin_MissingRoot(t *testing.T) {
	_, err := ResolveWithin(filepath.Join(t.TempDir(), "nope"), "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOutsideRoot)
}
