// Package canvas places widgets over the rendered infographic.
//
// All positions derive from percentage bounds, so the HTML composition stays
// correct when the container is resized. The pixel helpers describe the same
// geometry for a concrete container size.
package canvas

import (
	"github.com/menta2k/infographic-lens/pkg/types"
)

// Rect is a rectangle in container pixels
type Rect struct {
	X, Y, Width, Height float64
}

// Placement is the pixel position of one segment's widget
type Placement struct {
	Index   int
	Segment types.Segment
	Rect    Rect
}

// ContainRect returns where an image of imgW x imgH is displayed inside a
// boxW x boxH container with object-fit: contain. The image is scaled to fit
// and centered; the remaining space is letterboxing.
func ContainRect(imgW, imgH, boxW, boxH float64) Rect {
	if imgW <= 0 || imgH <= 0 || boxW <= 0 || boxH <= 0 {
		return Rect{}
	}
	scale := boxW / imgW
	if s := boxH / imgH; s < scale {
		scale = s
	}
	w := imgW * scale
	h := imgH * scale
	return Rect{
		X:      (boxW - w) / 2,
		Y:      (boxH - h) / 2,
		Width:  w,
		Height: h,
	}
}

// Place converts percentage bounds into a rectangle inside display
func Place(display Rect, b types.BoundingBox) Rect {
	return Rect{
		X:      display.X + display.Width*b.X/100,
		Y:      display.Y + display.Height*b.Y/100,
		Width:  display.Width * b.Width / 100,
		Height: display.Height * b.Height / 100,
	}
}

// Layout places every segment, one placement per segment, in order
func Layout(display Rect, segments []types.Segment) []Placement {
	out := make([]Placement, len(segments))
	for i, s := range segments {
		out[i] = Placement{Index: i, Segment: s, Rect: Place(display, s.Bounds)}
	}
	return out
}

// Anchor is the center of r, where a widget's pin sits
func (r Rect) Anchor() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}
