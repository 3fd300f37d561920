package regions

import (
	"strings"

	"github.com/menta2k/infographic-lens/pkg/types"
)

// Normalize cleans every segment of a result in place and returns it
func Normalize(result *types.AnalysisResult) *types.AnalysisResult {
	if result == nil {
		return &types.AnalysisResult{Segments: []types.Segment{}}
	}
	for i := range result.Segments {
		result.Segments[i] = normalizeSegment(result.Segments[i])
	}
	return result
}

func normalizeSegment(s types.Segment) types.Segment {
	s.Label = strings.TrimSpace(s.Label)
	s.Description = strings.TrimSpace(s.Description)
	s.Icon = strings.TrimSpace(s.Icon)
	// unknown formats are kept; the widget engine falls back to compact for them
	s.Format = types.Format(strings.ToLower(strings.TrimSpace(string(s.Format))))
	s.Category = types.Category(strings.ToLower(strings.TrimSpace(string(s.Category))))
	if !s.Category.Known() {
		// rendered without a tag
		s.Category = ""
	}
	s.Bounds = NormalizeBounds(s.Bounds)
	return s
}

// NormalizeBounds clamps a box into [0,100] and shrinks it so that x+width and y+height stay within 100.
// A box whose values are all within [0,1] is treated as fractional and scaled to percentages.
func NormalizeBounds(b types.BoundingBox) types.BoundingBox {
	if b.X <= 1 && b.Y <= 1 && b.Width <= 1 && b.Height <= 1 && (b.Width > 0 || b.Height > 0) {
		b = types.BoundingBox{X: b.X * 100, Y: b.Y * 100, Width: b.Width * 100, Height: b.Height * 100}
	}

	b.X = clamp(b.X, 0, 100)
	b.Y = clamp(b.Y, 0, 100)
	b.Width = clamp(b.Width, 0, 100-b.X)
	b.Height = clamp(b.Height, 0, 100-b.Y)
	return b
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
