package vision

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/infographic-lens/pkg/types"
)

// SaliencyDetector finds visually busy regions of an image without a model
type SaliencyDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for saliency detection
type DetectionConfig struct {
	WorkWidth      int     // images are downscaled to this width before analysis
	EdgeThreshold  float64 // minimum mean saliency for a candidate window
	ContrastWeight float64
	ColorWeight    float64
	MinRegionRatio float64 // minimum region area relative to the image
	MaxOverlap     float64 // IoU above which a weaker region is suppressed
}

// DefaultConfig returns the detection settings used by New
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		WorkWidth:      160,
		EdgeThreshold:  0.01,
		ContrastWeight: 0.7,
		ColorWeight:    0.3,
		MinRegionRatio: 0.02,
		MaxOverlap:     0.2,
	}
}

// New creates a new SaliencyDetector with default configuration
func New() *SaliencyDetector {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new SaliencyDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SaliencyDetector {
	return &SaliencyDetector{config: config}
}

// Region is a salient area in percentage coordinates
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Score  float64
}

// Box converts the region into a segment bounding box
func (r Region) Box() types.BoundingBox {
	return types.BoundingBox{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// Area returns the area of the region in squared percentage points
func (r Region) Area() float64 {
	return r.Width * r.Height
}

// DetectRegions returns up to limit non-overlapping salient regions, strongest first
func (d *SaliencyDetector) DetectRegions(img image.Image, limit int) []Region {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || limit <= 0 {
		return nil
	}

	work := img
	if d.config.WorkWidth > 0 && b.Dx() > d.config.WorkWidth {
		work = imaging.Resize(img, d.config.WorkWidth, 0, imaging.Box)
	}
	wb := work.Bounds()
	width, height := wb.Dx(), wb.Dy()

	saliency := d.saliencyMap(work)
	integral := integralImage(saliency, width, height)
	candidates := d.candidateRegions(integral, width, height)

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	var kept []Region
	for _, c := range candidates {
		if len(kept) >= limit {
			break
		}
		suppressed := false
		for _, k := range kept {
			if iou(c, k) > d.config.MaxOverlap {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

func (d *SaliencyDetector) saliencyMap(img image.Image) [][]float64 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	lum := make([][]float64, height)
	for y := 0; y < height; y++ {
		lum[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
			lum[y][x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 65535.0
		}
	}

	sal := make([][]float64, height)
	for y := 0; y < height; y++ {
		sal[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				continue
			}
			// Sobel gradient magnitude
			gx := lum[y-1][x+1] + 2*lum[y][x+1] + lum[y+1][x+1] - lum[y-1][x-1] - 2*lum[y][x-1] - lum[y+1][x-1]
			gy := lum[y+1][x-1] + 2*lum[y+1][x] + lum[y+1][x+1] - lum[y-1][x-1] - 2*lum[y-1][x] - lum[y-1][x+1]
			edge := math.Min(1, math.Sqrt(gx*gx+gy*gy)/4)
			sal[y][x] = d.config.ContrastWeight*edge + d.config.ColorWeight*math.Abs(lum[y][x]-0.5)*edge
		}
	}
	return sal
}

// integralImage builds a summed-area table with a zero row and column
func integralImage(m [][]float64, width, height int) [][]float64 {
	s := make([][]float64, height+1)
	for y := range s {
		s[y] = make([]float64, width+1)
	}
	for y := 1; y <= height; y++ {
		for x := 1; x <= width; x++ {
			s[y][x] = m[y-1][x-1] + s[y-1][x] + s[y][x-1] - s[y-1][x-1]
		}
	}
	return s
}

func (d *SaliencyDetector) candidateRegions(integral [][]float64, width, height int) []Region {
	var regions []Region
	minArea := d.config.MinRegionRatio * 100 * 100

	for _, frac := range []float64{0.15, 0.2, 0.3, 0.4} {
		ww := int(float64(width) * frac)
		wh := int(float64(height) * frac)
		if ww < 4 || wh < 4 {
			continue
		}
		step := maxInt(1, minInt(ww, wh)/3)
		for y := 0; y+wh <= height; y += step {
			for x := 0; x+ww <= width; x += step {
				sum := integral[y+wh][x+ww] - integral[y][x+ww] - integral[y+wh][x] + integral[y][x]
				score := sum / float64(ww*wh)
				if score <= d.config.EdgeThreshold {
					continue
				}
				r := Region{
					X:      100 * float64(x) / float64(width),
					Y:      100 * float64(y) / float64(height),
					Width:  100 * float64(ww) / float64(width),
					Height: 100 * float64(wh) / float64(height),
					Score:  score,
				}
				if r.Area() >= minArea {
					regions = append(regions, r)
				}
			}
		}
	}
	return regions
}

func iou(a, b Region) float64 {
	x0 := math.Max(a.X, b.X)
	y0 := math.Max(a.Y, b.Y)
	x1 := math.Min(a.X+a.Width, b.X+b.Width)
	y1 := math.Min(a.Y+a.Height, b.Y+b.Height)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	inter := (x1 - x0) * (y1 - y0)
	return inter / (a.Area() + b.Area() - inter)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
