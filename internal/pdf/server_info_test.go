package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerInfo(t *testing.T) {
	dir := setupLibrary(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "deep.PDF"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.pdf"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))

	s := newTestService(t, dir, ServiceOptions{MaxSessions: 4})
	id := openSample(t, s).SessionID

	info, err := s.ServerInfo(context.Background(), PDFServerInfoRequest{}, "test-pdf-server", "1.0.0-test")
	require.NoError(t, err)

	assert.Equal(t, "test-pdf-server", info.ServerName)
	assert.Equal(t, "1.0.0-test", info.Version)
	assert.Equal(t, s.pathValidator.Root(), info.DefaultDirectory)
	assert.Equal(t, int64(testMaxFileSize), info.MaxFileSize)
	assert.Equal(t, DefaultScale, info.DefaultScale)
	assert.Equal(t, DefaultMinScale, info.MinScale)
	assert.Equal(t, DefaultMaxScale, info.MaxScale)
	assert.Equal(t, "rescale", info.ScaleMode)
	assert.False(t, info.RenderEnabled)
	assert.Equal(t, []string{id}, info.OpenSessions)
	assert.Equal(t, 4, info.SessionCache.Capacity)
	assert.Len(t, info.AvailableTools, 8)
	assert.Contains(t, info.UsageGuidance, "pdf_open_document")
	assert.False(t, info.Truncated)

	var names []string
	for _, f := range info.DirectoryContents {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"sample.pdf", "two_pages.pdf", "deep.PDF"}, names)
}

func TestServerInfo_MissingLibrary(t *testing.T) {
	s := newTestService(t, filepath.Join(t.TempDir(), "later"), ServiceOptions{})

	info, err := s.ServerInfo(context.Background(), PDFServerInfoRequest{}, "srv", "v")
	require.NoError(t, err)
	assert.Empty(t, info.DirectoryContents)
}

func TestLibraryScanner_Limits(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-"), 0o644))
	}
	deep := filepath.Join(dir, "1", "2", "3")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "deep.pdf"), []byte("%PDF-"), 0o644))

	t.Run("file limit", func(t *testing.T) {
		s := &libraryScanner{maxDepth: 10, fileLimit: 2, timeLimit: time.Second}
		res, err := s.scan(context.Background(), dir)
		require.NoError(t, err)
		assert.Len(t, res.files, 2)
		assert.True(t, res.truncated)
	})

	t.Run("depth limit", func(t *testing.T) {
		s := &libraryScanner{maxDepth: 2, fileLimit: 100, timeLimit: time.Second}
		res, err := s.scan(context.Background(), dir)
		require.NoError(t, err)
		assert.Len(t, res.files, 3)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := &libraryScanner{maxDepth: 10, fileLimit: 100, timeLimit: time.Second}
		_, err := s.scan(ctx, dir)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLibraryCache_Expires(t *testing.T) {
	c := &libraryCache{ttl: time.Minute}
	assert.Nil(t, c.get())

	c.set(&scanResult{scannedAt: time.Now()})
	assert.NotNil(t, c.get())

	c.set(&scanResult{scannedAt: time.Now().Add(-2 * time.Minute)})
	assert.Nil(t, c.get())
}
