// Package widget turns analyzed segments into display widgets.
package widget

import (
	"strings"

	"github.com/menta2k/infographic-lens/pkg/types"
)

const (
	// DefaultIcon replaces a missing segment icon
	DefaultIcon = "✨"
	// DataTag labels stats widgets
	DataTag = "Data"
	// UnavailableText replaces an empty stats grid
	UnavailableText = "Data unavailable"
)

// Source is the attribution footer of a widget
type Source struct {
	Name string
	URL  string // empty when the segment URL is missing or not http(s)
}

// Action is a call to action; URL is empty when it must render as plain text
type Action struct {
	Label string
	URL   string
}

// Widget is the resolved presentation of one segment. Fields that a format
// does not show are left zero.
type Widget struct {
	Format      types.Format // always one of types.Formats
	Icon        string
	Label       string
	Tag         string
	Description string
	Divider     bool

	// Stats holds the grid (stats) or the scrollable strip (detailed)
	Stats       []types.StatItem
	Unavailable bool

	Source  *Source
	Actions []Action

	Bounds types.BoundingBox
}

// Build resolves a segment into a widget. Unknown formats render as compact.
func Build(seg types.Segment) Widget {
	w := Widget{
		Icon:   icon(seg.Icon),
		Label:  strings.TrimSpace(seg.Label),
		Bounds: seg.Bounds,
	}

	switch seg.Format {
	case types.FormatMini:
		w.Format = types.FormatMini

	case types.FormatStats:
		w.Format = types.FormatStats
		w.Tag = DataTag
		w.Description = seg.Description
		if len(seg.Stats) > 0 {
			w.Stats = copyStats(seg.Stats)
		} else {
			w.Unavailable = true
		}
		w.Source = source(seg)
		w.Actions = actions(seg.Actions)

	case types.FormatDetailed:
		w.Format = types.FormatDetailed
		w.Tag = string(seg.Category)
		w.Description = seg.Description
		w.Divider = true
		if len(seg.Stats) > 0 {
			w.Stats = copyStats(seg.Stats)
		}
		w.Source = source(seg)
		w.Actions = actions(seg.Actions)

	default:
		w.Format = types.FormatCompact
		w.Tag = string(seg.Category)
		w.Description = seg.Description
	}

	return w
}

// BuildAll resolves segments in order
func BuildAll(segments []types.Segment) []Widget {
	out := make([]Widget, len(segments))
	for i, s := range segments {
		out[i] = Build(s)
	}
	return out
}

func icon(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return DefaultIcon
	}
	return s
}

func copyStats(stats []types.StatItem) []types.StatItem {
	out := make([]types.StatItem, len(stats))
	copy(out, stats)
	return out
}

func source(seg types.Segment) *Source {
	name := strings.TrimSpace(seg.SourceName)
	url := strings.TrimSpace(seg.SourceURL)
	if name == "" && url == "" {
		return nil
	}
	if !isSafeURL(url) {
		url = ""
	}
	if name == "" {
		if url == "" {
			return nil
		}
		name = url
	}
	return &Source{Name: name, URL: url}
}

func actions(items []types.ActionItem) []Action {
	var out []Action
	for _, a := range items {
		label := strings.TrimSpace(a.Label)
		if label == "" {
			continue
		}
		url := strings.TrimSpace(a.URL)
		if !isSafeURL(url) {
			url = ""
		}
		out = append(out, Action{Label: label, URL: url})
	}
	return out
}

// isSafeURL returns true if the URL uses http or https scheme.
func isSafeURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
