package regions

import (
	"fmt"
	"strings"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks the vision model to map an infographic into interactive segments.
// The single %s verb receives the user's topic.
const DefaultPrompt = `You are annotating an educational infographic about "%s".

Identify the distinct informational regions of the image (panels, diagrams, callouts, charts,
key figures) and return JSON only:
{
  "segments": [
    {
      "label": "short name (max 4 words)",
      "format": "compact | stats | detailed | mini",
      "description": "one or two factual sentences about this region",
      "category": "concept | data | process | highlight | detail | context",
      "icon": "a single emoji",
      "stats": [{"label": "string", "value": "string", "icon": "optional emoji"}],
      "sourceUrl": "optional https URL backing the facts",
      "sourceName": "optional source name",
      "actions": [{"label": "string", "url": "optional https URL"}],
      "bounds": {"x": 0, "y": 0, "width": 0, "height": 0}
    }
  ]
}

HARD RULES
- bounds are PERCENTAGES of the image size in [0,100] (NOT pixels, NOT fractions).
- x + width <= 100 and y + height <= 100.
- Use "stats" only when the region shows numbers; include them in "stats".
- Use "mini" for small labels or icons, "detailed" for dense explanatory panels, otherwise "compact".
- Return between 3 and 8 segments, ordered from background to foreground.
- If nothing can be identified, return {"segments": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// BuildPrompt renders the region prompt for a topic
func BuildPrompt(query string) string {
	return fmt.Sprintf(DefaultPrompt, strings.ReplaceAll(strings.TrimSpace(query), `"`, `'`))
}
