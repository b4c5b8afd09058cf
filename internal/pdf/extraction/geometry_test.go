package extraction

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToViewport(t *testing.T) {
	tests := []struct {
		name           string
		x, y, h, scale float64
		wantX, wantY   float64
	}{
		{"identity scale", 72, 700, 792, 1, 72, 92},
		{"double scale", 72, 700, 792, 2, 144, 184},
		{"origin maps to bottom-left", 0, 0, 792, 1.5, 0, 1188},
		{"top edge maps to zero", 10, 792, 792, 1, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			px, py := ToViewport(tt.x, tt.y, tt.h, tt.scale)
			assert.InDelta(t, tt.wantX, px, 1e-9)
			assert.InDelta(t, tt.wantY, py, 1e-9)
		})
	}
}

func TestToViewport_NaNPropagates(t *testing.T) {
	px, py := ToViewport(math.NaN(), 10, 792, 1)
	assert.True(t, math.IsNaN(px))
	assert.False(t, math.IsNaN(py))
}

func TestNewViewport(t *testing.T) {
	vp := NewViewport(Rect{X0: 0, Y0: 0, X1: 595, Y1: 842}, 2)
	assert.Equal(t, Viewport{Width: 1190, Height: 1684, Scale: 2}, vp)

	fallback := NewViewport(Rect{}, 1)
	assert.Equal(t, Viewport{Width: 612, Height: 792, Scale: 1}, fallback)

	flipped := NewViewport(Rect{X0: 612, Y0: 792, X1: 0, Y1: 0}, 1)
	assert.Equal(t, 612.0, flipped.Width)
}

func TestValidateScale(t *testing.T) {
	for _, s := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		err := ValidateScale(s)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidScale))
	}
	assert.NoError(t, ValidateScale(0.25))
}
