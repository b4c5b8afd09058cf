package pdf

import (
	"os"
	"path/filepath"
	"testing"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/source/sourcetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		return path
	}

	valid := write("valid.pdf", sourcetest.Sample())
	large := write("large.pdf", append(sourcetest.Sample(), make([]byte, 64*1024)...))
	empty := write("empty.pdf", nil)
	text := write("notes.txt", []byte("%PDF-1.4"))
	fake := write("fake.pdf", []byte("hello world"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.pdf"), 0o755))

	validator := NewValidator(32 * 1024)

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"valid", valid, ""},
		{"empty path", "", "path cannot be empty"},
		{"missing", filepath.Join(dir, "missing.pdf"), "does not exist"},
		{"directory", filepath.Join(dir, "folder.pdf"), "directory"},
		{"wrong extension", text, "not a PDF"},
		{"empty file", empty, "empty"},
		{"too large", large, "too large"},
		{"missing header", fake, "header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateFile(tt.path)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.True(t, validator.IsValidPDF(tt.path))
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.ErrorIs(t, err, pdferrors.ErrInvalidDocument)
			assert.False(t, validator.IsValidPDF(tt.path))
		})
	}
}

func BenchmarkValidator_ValidateFileInfo(b *testing.B) {
	validator := NewValidator(1024 * 1024)
	path := sourcetest.WriteFile(b, "bench.pdf", sourcetest.Sample())
	info, err := os.Stat(path)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = validator.ValidateFileInfo(path, info)
	}
}
