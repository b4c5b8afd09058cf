// Package security confines document access to the configured library
// directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator resolves client-supplied paths against the library root and
// rejects anything that escapes it
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at dir. The directory does not
// have to exist yet; until it does, every path is accepted.
func NewPathValidator(dir string) (*PathValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute library directory
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve turns path into a clean absolute path inside the library. Relative
// paths are taken relative to the root; NUL bytes are stripped.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if !v.rootExists() {
		return abs, nil
	}
	if !v.Contains(abs) {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}
	return abs, nil
}

// ValidatePath reports whether path resolves inside the library
func (v *PathValidator) ValidatePath(path string) error {
	_, err := v.Resolve(path)
	return err
}

// Contains reports whether the absolute path lies inside the library, both
// lexically and after following symlinks
func (v *PathValidator) Contains(abs string) bool {
	clean := filepath.Clean(abs)
	if !within(clean, v.root) {
		return false
	}

	realRoot := v.root
	if resolved, err := filepath.EvalSymlinks(v.root); err == nil {
		realRoot = resolved
	}
	real, err := filepath.EvalSymlinks(clean)
	if err != nil {
		// Missing files cannot point anywhere yet
		return true
	}
	return within(real, realRoot) || within(real, v.root)
}

func (v *PathValidator) rootExists() bool {
	_, err := os.Stat(v.root)
	return err == nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
