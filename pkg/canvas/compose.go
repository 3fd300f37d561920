package canvas

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/menta2k/infographic-lens/pkg/types"
	"github.com/menta2k/infographic-lens/pkg/widget"
)

// Scene is everything the canvas needs to draw one frame
type Scene struct {
	ImageURL string
	Width    int // natural image size, used for the aspect ratio
	Height   int
	Alt      string
	Scanning bool
	Phrase   string
	Segments []types.Segment
}

// Item is one positioned widget
type Item struct {
	Index  int
	Format types.Format
	Style  template.CSS
	HTML   template.HTML
}

type sceneView struct {
	ImageURL    template.URL
	FrameStyle  template.CSS
	Alt         string
	Scanning    bool
	Phrase      string
	Items       []Item
}

var canvasTmpl = template.Must(template.New("canvas").Parse(`<div class="canvas{{if .Scanning}} scanning{{end}}">
<div class="canvas-frame" style="{{.FrameStyle}}">
<img class="canvas-image" src="{{.ImageURL}}" alt="{{.Alt}}">
{{- if .Scanning}}
<div class="scan-overlay"><div class="scan-line"></div><div class="scan-phrase">{{.Phrase}}</div></div>
{{- else}}
{{- range .Items}}
<div class="widget-slot format-{{.Format}}" data-index="{{.Index}}" style="{{.Style}}">{{.HTML}}</div>
{{- end}}
{{- end}}
</div>
</div>`))

// Composer renders a scene as one HTML coordinate space
type Composer struct {
	engine *widget.Engine
}

// NewComposer creates a composer using engine for the widgets
func NewComposer(engine *widget.Engine) *Composer {
	if engine == nil {
		engine = widget.NewEngine()
	}
	return &Composer{engine: engine}
}

// Items renders every segment into a positioned item, z-index following order
func (c *Composer) Items(segments []types.Segment) ([]Item, error) {
	widgets := widget.BuildAll(segments)
	items := make([]Item, 0, len(widgets))
	for i, w := range widgets {
		var buf bytes.Buffer
		if err := c.engine.RenderWidget(&buf, w); err != nil {
			return nil, fmt.Errorf("render segment %d: %w", i, err)
		}
		items = append(items, Item{
			Index:  i,
			Format: w.Format,
			Style:  PositionStyle(w.Bounds, i),
			HTML:   template.HTML(buf.String()),
		})
	}
	return items, nil
}

// Compose writes the scene. While scanning no widgets are rendered.
func (c *Composer) Compose(w io.Writer, scene Scene) error {
	view := sceneView{
		ImageURL:    template.URL(scene.ImageURL),
		FrameStyle:  FrameStyle(scene.Width, scene.Height),
		Alt:         scene.Alt,
		Scanning:    scene.Scanning,
		Phrase:      scene.Phrase,
	}
	if !scene.Scanning {
		items, err := c.Items(scene.Segments)
		if err != nil {
			return err
		}
		view.Items = items
	}
	return canvasTmpl.Execute(w, view)
}

// PositionStyle is the absolute percentage placement of a widget
func PositionStyle(b types.BoundingBox, index int) template.CSS {
	return template.CSS(fmt.Sprintf("left:%s%%;top:%s%%;width:%s%%;height:%s%%;z-index:%d",
		pct(b.X), pct(b.Y), pct(b.Width), pct(b.Height), index+1))
}

// MaxFrameHeight caps the rendered canvas height
const MaxFrameHeight = "80vh"

// FrameStyle sizes the canvas frame to exactly the image box. The width
// shrinks once the height cap applies so the aspect ratio always holds.
func FrameStyle(w, h int) template.CSS {
	if w <= 0 || h <= 0 {
		return "width:100%"
	}
	return template.CSS(fmt.Sprintf("aspect-ratio:%d/%d;width:min(100%%,calc(%s * %d / %d))",
		w, h, MaxFrameHeight, w, h))
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
