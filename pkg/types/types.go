package types

import "strings"

// Format selects how a segment is rendered on the canvas
type Format string

const (
	FormatCompact  Format = "compact"
	FormatStats    Format = "stats"
	FormatDetailed Format = "detailed"
	FormatMini     Format = "mini"
)

// Formats lists the formats the renderer knows about
var Formats = []Format{FormatCompact, FormatStats, FormatDetailed, FormatMini}

// Category is the semantic tag of a segment
type Category string

const (
	CategoryConcept   Category = "concept"
	CategoryData      Category = "data"
	CategoryProcess   Category = "process"
	CategoryHighlight Category = "highlight"
	CategoryDetail    Category = "detail"
	CategoryContext   Category = "context"
)

// Categories lists the known segment categories
var Categories = []Category{
	CategoryConcept, CategoryData, CategoryProcess,
	CategoryHighlight, CategoryDetail, CategoryContext,
}

// Known reports whether c is one of the known categories
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// BoundingBox is a region expressed in percentages [0,100] of the rendered image
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the box lies inside the image
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return b.X+b.Width <= 100 && b.Y+b.Height <= 100
}


// StatItem is a labeled metric shown inside a widget
type StatItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Icon  string `json:"icon,omitempty"`
}

// ActionItem is an optional call-to-action link
type ActionItem struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// Segment is one annotated region of a generated image
type Segment struct {
	Label       string       `json:"label"`
	Format      Format       `json:"format"`
	Description string       `json:"description"`
	Category    Category     `json:"category"`
	Icon        string       `json:"icon"`
	Stats       []StatItem   `json:"stats,omitempty"`
	SourceURL   string       `json:"sourceUrl,omitempty"`
	SourceName  string       `json:"sourceName,omitempty"`
	Actions     []ActionItem `json:"actions,omitempty"`
	Bounds      BoundingBox  `json:"bounds"`
}

// AnalysisResult is the output of the region analysis step
type AnalysisResult struct {
	Segments []Segment `json:"segments"`
}

// Len returns the number of segments; a nil result has none
func (r *AnalysisResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Segments)
}

// GroundingURL is a citation returned alongside a generated image
type GroundingURL struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// GeneratedImage holds an infographic produced by the image model
type GeneratedImage struct {
	Base64        string         `json:"base64"`
	MimeType      string         `json:"mimeType"`
	GroundingURLs []GroundingURL `json:"groundingUrls"`
}

// DataURL returns the image as a data: URL suitable for an <img> tag
func (g GeneratedImage) DataURL() string {
	mime := g.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + g.Base64
}

// Extension returns a file extension matching the image MIME type
func (g GeneratedImage) Extension() string {
	switch strings.ToLower(g.MimeType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
