package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/source/sourcetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPool starts a single-instance PDFium runtime for the test
func setupPool(t *testing.T) *Pool {
	t.Helper()

	pool, err := NewPool(1, 30*time.Second)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})
	return pool
}

func TestPDFium_RenderPage(t *testing.T) {
	pool := setupPool(t)

	r, err := pool.Open(sourcetest.Sample())
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 1, r.PageCount())

	tests := []struct {
		name   string
		scale  float64
		width  int
		height int
	}{
		{"natural size", 1.0, 612, 792},
		{"double", 2.0, 1224, 1584},
		{"half", 0.5, 306, 396},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := r.RenderPage(context.Background(), 1, tt.scale)
			require.NoError(t, err)
			assert.InDelta(t, tt.width, img.Bounds().Dx(), 1)
			assert.InDelta(t, tt.height, img.Bounds().Dy(), 1)
		})
	}
}

func TestPDFium_RenderPageErrors(t *testing.T) {
	pool := setupPool(t)

	r, err := pool.Open(sourcetest.Sample())
	require.NoError(t, err)
	defer r.Close()

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		img, err := r.RenderPage(ctx, 1, 1.0)
		assert.Nil(t, img)
		assert.True(t, pdferrors.IsRenderCancelled(err))
	})

	t.Run("page out of range", func(t *testing.T) {
		_, err := r.RenderPage(context.Background(), 2, 1.0)
		require.Error(t, err)
		assert.ErrorIs(t, err, &pdferrors.PDFError{Type: pdferrors.ErrorTypeRenderFailure})
	})

	t.Run("invalid scale", func(t *testing.T) {
		_, err := r.RenderPage(context.Background(), 1, 0)
		require.Error(t, err)
		assert.False(t, pdferrors.IsRenderCancelled(err))
	})

	t.Run("closed renderer", func(t *testing.T) {
		require.NoError(t, r.Close())
		require.NoError(t, r.Close(), "closing twice is a no-op")

		_, err := r.RenderPage(context.Background(), 1, 1.0)
		assert.True(t, pdferrors.IsRenderCancelled(err))
	})
}

func TestPool_OpenRejectsGarbage(t *testing.T) {
	pool := setupPool(t)

	_, err := pool.Open([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestEncodePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, img))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
