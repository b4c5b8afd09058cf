package security

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLibrary(t *testing.T) (root string, v *PathValidator) {
	t.Helper()

	root = t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "subdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "valid.pdf"), []byte("test"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "subdir", "sub.pdf"), []byte("test"), 0o644))

	v, err := NewPathValidator(root)
	require.NoError(t, err)
	return root, v
}

func TestNewPathValidator(t *testing.T) {
	tests := []struct {
		name      string
		dir       string
		wantError bool
	}{
		{"valid directory", t.TempDir(), false},
		{"empty directory", "", true},
		{"non-existent directory", "/non/existent/path", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewPathValidator(tt.dir)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(v.Root()))
		})
	}
}

func TestPathValidator_Resolve(t *testing.T) {
	root, v := setupLibrary(t)

	tests := []struct {
		name      string
		path      string
		want      string
		wantError bool
	}{
		{name: "empty path", path: "", wantError: true},
		{name: "blank path", path: "   ", wantError: true},
		{name: "file in root", path: filepath.Join(root, "valid.pdf"), want: filepath.Join(root, "valid.pdf")},
		{name: "file in subdirectory", path: filepath.Join(root, "subdir", "sub.pdf"), want: filepath.Join(root, "subdir", "sub.pdf")},
		{name: "relative to root", path: "subdir/sub.pdf", want: filepath.Join(root, "subdir", "sub.pdf")},
		{name: "dot segments", path: filepath.Join(root, ".", "valid.pdf"), want: filepath.Join(root, "valid.pdf")},
		{name: "missing file inside", path: filepath.Join(root, "later.pdf"), want: filepath.Join(root, "later.pdf")},
		{name: "nul bytes stripped", path: filepath.Join(root, "valid\x00.pdf"), want: filepath.Join(root, "valid.pdf")},
		{name: "outside directory", path: "/etc/passwd", wantError: true},
		{name: "parent traversal", path: filepath.Join(root, "..", "outside.pdf"), wantError: true},
		{name: "relative traversal", path: "../outside.pdf", wantError: true},
		{name: "sibling with shared prefix", path: root + "-other/file.pdf", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Resolve(tt.path)
			if tt.wantError {
				assert.Error(t, err)
				assert.Error(t, v.ValidatePath(tt.path))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathValidator_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}
	root, v := setupLibrary(t)

	outside := filepath.Join(t.TempDir(), "secret.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	link := filepath.Join(root, "link.pdf")
	require.NoError(t, os.Symlink(outside, link))

	assert.False(t, v.Contains(link))
	_, err := v.Resolve(link)
	assert.Error(t, err)

	inner := filepath.Join(root, "inner.pdf")
	require.NoError(t, os.Symlink(filepath.Join(root, "valid.pdf"), inner))
	assert.True(t, v.Contains(inner))
}

func TestPathValidator_MissingRootAcceptsAll(t *testing.T) {
	v, err := NewPathValidator(filepath.Join(t.TempDir(), "not-yet"))
	require.NoError(t, err)

	got, err := v.Resolve("/tmp/anything.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/anything.pdf", got)
}
