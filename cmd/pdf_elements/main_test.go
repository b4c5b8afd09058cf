package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/source/sourcetest"
)

func runCommand(t *testing.T, args ...string) (output, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newCommand(&stdout, &stderr).Run(context.Background(), append([]string{"pdf_elements"}, args...))
	var out output
	if err == nil && stdout.Len() > 0 {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	}
	return out, err
}

func TestExtractElements(t *testing.T) {
	sample := sourcetest.WriteFile(t, "sample.pdf", sourcetest.Sample())

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out output)
	}{
		{
			name: "every element",
			args: []string{"--input", sample},
			check: func(t *testing.T, out output) {
				assert.Equal(t, 1, out.PageCount)
				assert.Equal(t, 1.0, out.Scale)
				assert.Equal(t, "rescale", out.ScaleMode)
				assert.Len(t, out.Elements, 7)
			},
		},
		{
			name: "form fields on page 1",
			args: []string{"-i", sample, "--type", "form", "--page", "1"},
			check: func(t *testing.T, out output) {
				require.Len(t, out.Elements, 1)
				assert.Equal(t, extraction.ElementTypeFormField, out.Elements[0].Type)
				assert.Equal(t, "contact.email", out.Elements[0].Content)
			},
		},
		{
			name: "several types",
			args: []string{"-i", sample, "-t", "text", "-t", "image"},
			check: func(t *testing.T, out output) {
				assert.Len(t, out.Elements, 4)
			},
		},
		{
			name: "rescale after build",
			args: []string{"-i", sample, "--rescale-to", "2"},
			check: func(t *testing.T, out output) {
				assert.Equal(t, 2.0, out.Scale)
				assert.Equal(t, uint64(2), out.Generation)
				assert.Len(t, out.Elements, 7)
			},
		},
		{
			name: "reparse mode",
			args: []string{"-i", sample, "--mode", "reparse", "--scale", "0.5", "--rescale-to", "1.5"},
			check: func(t *testing.T, out output) {
				assert.Equal(t, "reparse", out.ScaleMode)
				assert.Equal(t, 1.5, out.Scale)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, tt.args...)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestExtractElements_Errors(t *testing.T) {
	sample := sourcetest.WriteFile(t, "sample.pdf", sourcetest.Sample())
	garbage := sourcetest.WriteFile(t, "garbage.pdf", []byte("not a pdf"))

	tests := []struct {
		name string
		args []string
	}{
		{"missing input", nil},
		{"missing file", []string{"-i", filepath.Join(t.TempDir(), "none.pdf")}},
		{"not a pdf", []string{"-i", garbage}},
		{"unknown type", []string{"-i", sample, "--type", "table"}},
		{"unknown mode", []string{"-i", sample, "--mode", "stretch"}},
		{"page out of range", []string{"-i", sample, "--page", "2"}},
		{"invalid scale", []string{"-i", sample, "--scale=-1"}},
		{"invalid rescale", []string{"-i", sample, "--rescale-to=-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestExtractElements_OutputFile(t *testing.T) {
	sample := sourcetest.WriteFile(t, "two_pages.pdf", sourcetest.TwoPages())
	target := filepath.Join(t.TempDir(), "elements.json")

	_, err := runCommand(t, "-i", sample, "-o", target, "--page", "2")
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	var out output
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 2, out.PageCount)
	require.Len(t, out.Elements, 1)
	assert.Equal(t, "Second page", out.Elements[0].Content)
}

func TestExtractElements_RenderDir(t *testing.T) {
	if testing.Short() {
		t.Skip("starting PDFium is slow")
	}
	sample := sourcetest.WriteFile(t, "two_pages.pdf", sourcetest.TwoPages())
	dir := filepath.Join(t.TempDir(), "pages")

	out, err := runCommand(t, "-i", sample, "--render-dir", dir)
	require.NoError(t, err)

	require.Len(t, out.Rendered, 2)
	for _, path := range out.Rendered {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
