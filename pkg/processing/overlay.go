package processing

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/infographic-lens/pkg/types"
)

var categoryColors = map[types.Category]color.NRGBA{
	types.CategoryConcept:   {99, 102, 241, 255},
	types.CategoryData:      {16, 185, 129, 255},
	types.CategoryProcess:   {245, 158, 11, 255},
	types.CategoryHighlight: {236, 72, 153, 255},
	types.CategoryDetail:    {14, 165, 233, 255},
	types.CategoryContext:   {148, 163, 184, 255},
}

var fallbackColor = color.NRGBA{255, 204, 0, 255}

// CategoryColor returns the overlay color used for a segment category
func CategoryColor(c types.Category) color.NRGBA {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return fallbackColor
}

// CreateAnnotatedOverlay draws every segment's bounds and index label over a copy of img
func (p *Processor) CreateAnnotatedOverlay(img image.Image, segments []types.Segment) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h))))

	for i, seg := range segments {
		col := CategoryColor(seg.Category)
		x0, y0, x1, y1 := boundsToPixels(seg.Bounds, w, h)
		drawBox(nrgba, x0, y0, x1, y1, col, stroke)
		drawLabel(nrgba, x0+stroke+2, y0+stroke+13, fmt.Sprintf("%d %s", i+1, seg.Label), col)
	}

	// image center marker
	ix, iy := w/2, h/2
	blue := color.NRGBA{0, 170, 255, 255}
	drawHLine(nrgba, iy, ix-6, ix+6, blue)
	drawVLine(nrgba, ix, iy-6, iy+6, blue)

	return nrgba
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func drawLabel(img *image.NRGBA, x, y int, text string, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawBox(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
