package widget

import (
	"bytes"
	"html/template"
	"io"

	"github.com/microcosm-cc/bluemonday"

	"github.com/menta2k/infographic-lens/pkg/types"
)

// widgetView is the template-friendly projection of a Widget.
type widgetView struct {
	Widget
	DescriptionHTML template.HTML
}

var widgetTmpl = template.Must(template.New("widget").Parse(`
{{- define "mini" -}}
<div class="widget widget-mini"><span class="icon">{{.Icon}}</span><span class="label">{{.Label}}</span></div>
{{- end -}}

{{- define "compact" -}}
<div class="widget widget-compact">
<div class="head"><span class="icon">{{.Icon}}</span>{{if .Tag}}<span class="tag">{{.Tag}}</span>{{end}}</div>
<h3 class="label">{{.Label}}</h3>
{{- if .DescriptionHTML}}<p class="description">{{.DescriptionHTML}}</p>{{end}}
</div>
{{- end -}}

{{- define "stats" -}}
<div class="widget widget-stats">
<div class="head"><span class="icon">{{.Icon}}</span><h3 class="label">{{.Label}}</h3><span class="tag tag-data">{{.Tag}}</span></div>
{{- if .Unavailable}}
<div class="stats-unavailable">` + UnavailableText + `</div>
{{- else}}
<dl class="stats-grid">
{{- range .Stats}}<div class="stat">{{if .Icon}}<span class="stat-icon">{{.Icon}}</span>{{end}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd></div>{{end}}
</dl>
{{- end}}
{{- if .DescriptionHTML}}<p class="description">{{.DescriptionHTML}}</p>{{end}}
{{- template "footer" .}}
</div>
{{- end -}}

{{- define "detailed" -}}
<div class="widget widget-detailed">
{{- if .Tag}}<span class="tag">{{.Tag}}</span>{{end}}
<div class="head"><span class="icon">{{.Icon}}</span><h3 class="label">{{.Label}}</h3></div>
<hr class="divider">
{{- if .DescriptionHTML}}<p class="description">{{.DescriptionHTML}}</p>{{end}}
{{- if .Stats}}
<div class="stats-strip">
{{- range .Stats}}<div class="stat">{{if .Icon}}<span class="stat-icon">{{.Icon}}</span>{{end}}<span class="stat-value">{{.Value}}</span><span class="stat-label">{{.Label}}</span></div>{{end}}
</div>
{{- end}}
{{- template "footer" .}}
</div>
{{- end -}}

{{- define "footer" -}}
{{- if or .Source .Actions}}
<div class="footer">
{{- with .Source}}<span class="source">Source: {{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Name}}</a>{{else}}{{.Name}}{{end}}</span>{{end}}
{{- range .Actions}}{{if .URL}}<a class="action" href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Label}}</a>{{else}}<span class="action">{{.Label}}</span>{{end}}{{end}}
</div>
{{- end}}
{{- end -}}
`))

// Engine renders widgets as HTML fragments
type Engine struct {
	policy *bluemonday.Policy
}

// NewEngine creates an engine whose descriptions may carry inline emphasis only
func NewEngine() *Engine {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("b", "strong", "i", "em", "code", "br")
	return &Engine{policy: policy}
}

// Render writes the widget for seg
func (e *Engine) Render(w io.Writer, seg types.Segment) error {
	return e.RenderWidget(w, Build(seg))
}

// RenderWidget writes an already resolved widget
func (e *Engine) RenderWidget(w io.Writer, wd Widget) error {
	view := widgetView{
		Widget:          wd,
		DescriptionHTML: template.HTML(e.policy.Sanitize(wd.Description)),
	}
	return widgetTmpl.ExecuteTemplate(w, string(wd.Format), view)
}

// HTML renders the widget for seg into a string
func (e *Engine) HTML(seg types.Segment) (template.HTML, error) {
	var buf bytes.Buffer
	if err := e.Render(&buf, seg); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
