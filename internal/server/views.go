package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/menta2k/infographic-lens/pkg/canvas"
	"github.com/menta2k/infographic-lens/pkg/session"
	"github.com/menta2k/infographic-lens/pkg/types"
)

type imageJSON struct {
	URL           string               `json:"url"`
	MimeType      string               `json:"mimeType"`
	GroundingURLs []types.GroundingURL `json:"groundingUrls"`
}

type dataJSON struct {
	Image    imageJSON             `json:"image"`
	Analysis *types.AnalysisResult `json:"analysis"`
}

// stateJSON is the public shape of session.State
type stateJSON struct {
	Status session.Status `json:"status"`
	Query  string         `json:"query"`
	Error  *string        `json:"error"`
	Phrase string         `json:"phrase,omitempty"`
	Epoch  uint64         `json:"epoch"`
	Data   *dataJSON      `json:"data"`
}

func toStateJSON(st session.State) stateJSON {
	out := stateJSON{
		Status: st.Status,
		Query:  st.Query,
		Phrase: st.StatusPhrase(),
		Epoch:  st.Epoch,
	}
	if st.Error != "" {
		msg := st.Error
		out.Error = &msg
	}
	if st.Data != nil && st.Data.Image != nil {
		grounding := st.Data.Image.GroundingURLs
		if grounding == nil {
			grounding = []types.GroundingURL{}
		}
		out.Data = &dataJSON{
			Image: imageJSON{
				URL:           imageURL(st),
				MimeType:      st.Data.Image.MimeType,
				GroundingURLs: grounding,
			},
			Analysis: st.Data.Analysis,
		}
	}
	return out
}

func imageURL(st session.State) string {
	return fmt.Sprintf("/image?v=%d", st.Epoch)
}

// mainView is the template-friendly projection of the session state.
type mainView struct {
	Status      string
	Query       string
	Error       string
	Suggestions []string
	Canvas      template.HTML
	Sources     []types.GroundingURL
	Segments    []segmentLink
	Complete    bool
}

type segmentLink struct {
	Index int
	Label string
	Icon  string
}

var mainTmpl = template.Must(template.New("main").Parse(`
{{- if eq .Status "idle"}}
<section class="search">
<h1>Infographic Lens</h1>
<p class="intro">Type a topic and get an explorable infographic.</p>
<form method="post" action="/search" class="search-form">
<input type="text" name="query" placeholder="e.g. Anatomy of a Dragon" autocomplete="off" autofocus>
<button type="submit">Create</button>
</form>
{{- if .Error}}
<div class="error" role="alert">{{.Error}}</div>
{{- end}}
{{- if .Suggestions}}
<div class="suggestions">
{{- range .Suggestions}}
<form method="post" action="/search"><input type="hidden" name="query" value="{{.}}"><button type="submit" class="suggestion">{{.}}</button></form>
{{- end}}
</div>
{{- end}}
</section>
{{- else if eq .Status "generating"}}
<section class="generating">
<div class="spinner"></div>
<p>Creating an infographic about <strong>{{.Query}}</strong>...</p>
<form method="post" action="/reset"><button type="submit">Cancel</button></form>
</section>
{{- else}}
<section class="result">
<header class="result-head">
<h2>{{.Query}}</h2>
<form method="post" action="/reset"><button type="submit">New search</button></form>
</header>
{{.Canvas}}
{{- if .Complete}}
<div class="downloads">
<a href="/image" download>Image</a>
{{- if .Segments}} <a href="/image/annotated.png" download>Annotated</a>{{end}}
</div>
{{- if .Segments}}
<ol class="segments">
{{- range .Segments}}<li><a href="/segments/{{.Index}}.png" target="_blank">{{.Icon}} {{.Label}}</a></li>{{end}}
</ol>
{{- else}}
<p class="empty">No interactive regions were found in this image.</p>
{{- end}}
{{- end}}
{{- if .Sources}}
<div class="sources"><h3>Sources</h3><ul>
{{- range .Sources}}<li><a href="{{.URI}}" target="_blank" rel="noopener noreferrer">{{if .Title}}{{.Title}}{{else}}{{.URI}}{{end}}</a></li>{{end}}
</ul></div>
{{- end}}
</section>
{{- end}}`))

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Infographic Lens</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#0f172a;color:#e2e8f0}
main{max-width:1100px;margin:2rem auto;padding:0 1rem}
.search{text-align:center;margin-top:15vh}
.search-form input{width:60%;padding:.7rem 1rem;border-radius:999px;border:1px solid #334155;background:#1e293b;color:inherit}
.search-form button,.result-head button,.generating button{padding:.6rem 1.2rem;border-radius:999px;border:0;background:#6366f1;color:#fff;cursor:pointer}
.suggestions{display:flex;flex-wrap:wrap;gap:.5rem;justify-content:center;margin-top:1.5rem}
.suggestions form{display:inline}
.suggestion{background:#1e293b;border:1px solid #334155;color:#cbd5e1;border-radius:999px;padding:.4rem .9rem;cursor:pointer}
.error{margin:1rem auto;max-width:600px;padding:.7rem 1rem;border-radius:8px;background:#7f1d1d;color:#fecaca}
.generating{text-align:center;margin-top:20vh}
.spinner{width:40px;height:40px;margin:0 auto 1rem;border:4px solid #334155;border-top-color:#6366f1;border-radius:50%;animation:spin 1s linear infinite}
@keyframes spin{to{transform:rotate(360deg)}}
.result-head{display:flex;justify-content:space-between;align-items:center}
.canvas{display:flex;justify-content:center}
.canvas-frame{position:relative}
.canvas-image{position:absolute;inset:0;width:100%;height:100%;object-fit:fill}
.scanning .canvas-image{filter:brightness(.6)}
.scan-overlay{position:absolute;inset:0;display:flex;align-items:flex-end;justify-content:center}
.scan-line{position:absolute;left:0;right:0;height:3px;background:#22d3ee;animation:scan 2s linear infinite}
@keyframes scan{from{top:0}to{top:100%}}
.scan-phrase{margin-bottom:1rem;padding:.4rem .9rem;border-radius:999px;background:rgba(15,23,42,.8)}
.widget-slot{position:absolute;display:flex;align-items:center;justify-content:center;pointer-events:none}
.widget{pointer-events:auto;background:rgba(15,23,42,.92);border:1px solid #334155;border-radius:10px;padding:.5rem .7rem;font-size:.8rem;max-width:260px;max-height:100%;overflow:auto}
.widget-mini{border-radius:999px;display:flex;gap:.3rem;align-items:center}
.tag{font-size:.65rem;text-transform:uppercase;letter-spacing:.05em;background:#334155;border-radius:4px;padding:0 .3rem}
.label{margin:.2rem 0;font-size:.9rem}
.stats-grid{display:grid;grid-template-columns:1fr 1fr;gap:.3rem;margin:.3rem 0}
.stats-grid dt{color:#94a3b8}.stats-grid dd{margin:0;font-weight:600}
.stats-unavailable{color:#94a3b8;font-style:italic}
.stats-strip{display:flex;gap:.5rem;overflow-x:auto}
.divider{border:0;border-top:1px solid #334155}
.footer{display:flex;flex-wrap:wrap;gap:.4rem;margin-top:.3rem;font-size:.7rem}
a{color:#a5b4fc}
</style></head><body>
<main id="main">{{.}}</main>
<script>
(function(){
  if (!window.EventSource) return;
  var es = new EventSource('/events');
  es.addEventListener('state', function(e){ document.getElementById('main').innerHTML = e.data; });
})();
</script>
</body></html>`))

func (s *Server) renderMain(w io.Writer, st session.State) error {
	view := mainView{
		Status:      string(st.Status),
		Query:       st.Query,
		Error:       st.Error,
		Suggestions: s.suggestions,
	}

	if st.Data != nil && st.Data.Image != nil {
		view.Sources = st.Data.Image.GroundingURLs
		view.Complete = st.Status == session.StatusComplete

		scene := canvas.Scene{
			ImageURL: imageURL(st),
			Alt:      st.Query,
			Scanning: st.IsScanning(),
			Phrase:   st.StatusPhrase(),
			Segments: st.Segments(),
		}
		if info, err := s.processor.InfoFromBase64(st.Data.Image.Base64); err == nil {
			scene.Width, scene.Height = info.Width, info.Height
		}

		var buf bytes.Buffer
		if err := s.composer.Compose(&buf, scene); err != nil {
			return err
		}
		view.Canvas = template.HTML(buf.String())

		for i, seg := range st.Segments() {
			icon := seg.Icon
			if icon == "" {
				icon = "•"
			}
			view.Segments = append(view.Segments, segmentLink{Index: i, Label: seg.Label, Icon: icon})
		}
	}

	return mainTmpl.Execute(w, view)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.renderMain(&buf, s.session.State()); err != nil {
		s.logger.Error("render page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	pageTmpl.Execute(w, template.HTML(buf.String()))
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.renderMain(&buf, s.session.State()); err != nil {
		s.logger.Error("render view", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleEvents streams the rendered main fragment after every state change
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			var buf bytes.Buffer
			if err := s.renderMain(&buf, st); err != nil {
				s.logger.Error("render event", "error", err)
				continue
			}
			if err := writeEvent(w, "state", buf.String()); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimRight(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
