// Package security confines client-supplied paths to a configured root.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot reports a path that resolves outside its root directory.
var ErrOutsideRoot = errors.New("path escapes root directory")

// ResolveWithin joins rel onto root and returns the canonical result.
// Symlinks are resolved on the longest existing prefix, so a link inside
// root that points elsewhere is rejected even when the final element does
// not exist yet. Absolute rel values are rejected.
func ResolveWithin(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q is absolute", ErrOutsideRoot, rel)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	canonicalRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root symlinks: %w", err)
	}

	target := canonicalize(filepath.Join(absRoot, rel))
	if !within(canonicalRoot, target) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	return target, nil
}

// canonicalize resolves symlinks in the longest existing prefix of path and
// re-attaches the missing tail.
func canonicalize(path string) string {
	var tail []string
	for p := path; ; {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path
		}
		tail = append([]string{filepath.Base(p)}, tail...)
		p = parent
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
