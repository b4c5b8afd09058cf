package extraction

import (
	"fmt"
	"math"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

// US Letter, used when a page carries no usable box
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// ErrInvalidScale is matched by errors.Is for every scale rejection
var ErrInvalidScale = pdferrors.ErrInvalidScale

// Viewport is the page area in viewport space at Scale
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// NewViewport scales a user-space page box. Empty or degenerate boxes fall
// back to US Letter.
func NewViewport(box Rect, scale float64) Viewport {
	w, h := PageSize(box)
	return Viewport{Width: w * scale, Height: h * scale, Scale: scale}
}

// PageSize returns the width and height of box in user space
func PageSize(box Rect) (width, height float64) {
	box = box.Normalize()
	if !box.finite() || box.Width() <= 0 || box.Height() <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return box.Width(), box.Height()
}

// ToViewport converts a user-space point (origin bottom-left) into viewport
// space (origin top-left). NaN and Inf propagate.
func ToViewport(userX, userY, pageHeight, scale float64) (px, py float64) {
	return userX * scale, pageHeight*scale - userY*scale
}

// rectToViewport places a user-space rectangle: the top-left corner comes
// from (X0, Y1)
func rectToViewport(r Rect, pageHeight, scale float64) (x, y, w, h float64) {
	r = r.Normalize()
	x, y = ToViewport(r.X0, r.Y1, pageHeight, scale)
	return x, y, r.Width() * scale, r.Height() * scale
}

// clampGeometry enforces x,y >= 0 and the per-kind minimum size
func clampGeometry(x, y, w, h, minW, minH float64) (float64, float64, float64, float64) {
	return math.Max(0, x), math.Max(0, y), math.Max(minW, w), math.Max(minH, h)
}

// ValidateScale rejects zero, negative and non-finite zoom factors
func ValidateScale(scale float64) error {
	if !isFinite(scale) || scale <= 0 {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidScale,
			fmt.Sprintf("scale must be a positive finite number, got %v", scale))
	}
	return nil
}
