package extraction

import "math"

// Line grouping defaults, in user-space units
const (
	DefaultLineTolerance   = 2.0
	DefaultLineHeightRatio = 0.3
)

// LineGrouper reconstructs visual lines from runs in stream order. A run
// starts a new line when its baseline is further than
// max(height*HeightRatio, Tolerance) from the previous run's baseline.
type LineGrouper struct {
	Tolerance   float64
	HeightRatio float64
}

// NewLineGrouper returns a grouper, substituting defaults for non-positive values
func NewLineGrouper(tolerance, heightRatio float64) LineGrouper {
	if !(tolerance > 0) {
		tolerance = DefaultLineTolerance
	}
	if !(heightRatio > 0) {
		heightRatio = DefaultLineHeightRatio
	}
	return LineGrouper{Tolerance: tolerance, HeightRatio: heightRatio}
}

// DefaultLineGrouper returns the grouper used when nothing is configured
func DefaultLineGrouper() LineGrouper {
	return NewLineGrouper(DefaultLineTolerance, DefaultLineHeightRatio)
}

// Group splits runs into lines. The comparison baseline advances with every
// run, not only with line starts.
func (g LineGrouper) Group(runs []RawTextRun) [][]RawTextRun {
	var lines [][]RawTextRun
	var current []RawTextRun
	var lastY float64

	for i, run := range runs {
		y := run.Y()
		if i > 0 && math.Abs(y-lastY) > g.threshold(run.Height) {
			lines = append(lines, current)
			current = nil
		}
		current = append(current, run)
		lastY = y
	}

	if len(current) > 0 {
		lines = append(lines, current)
	}
	return lines
}

func (g LineGrouper) threshold(height float64) float64 {
	return math.Max(height*g.HeightRatio, g.Tolerance)
}
