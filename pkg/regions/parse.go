package regions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/infographic-lens/pkg/types"
)

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseAnalysis decodes a model response into an AnalysisResult.
// Both {"segments": [...]} and a bare [...] array are accepted.
func ParseAnalysis(raw string) (*types.AnalysisResult, error) {
	raw = sanitizeModelJSON(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty model response")
	}

	if strings.HasPrefix(raw, "[") {
		var segments []types.Segment
		if err := json.Unmarshal([]byte(raw), &segments); err != nil {
			return nil, fmt.Errorf("failed to parse segment array: %w", err)
		}
		return &types.AnalysisResult{Segments: segments}, nil
	}

	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("no JSON found in model response")
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if result.Segments == nil {
		result.Segments = []types.Segment{}
	}
	return &result, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from a JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	// Only whole-line comments: inline // would eat URLs inside string values
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost object or array, whichever opens first
	obj := strings.Index(raw, "{")
	arr := strings.Index(raw, "[")
	switch {
	case obj >= 0 && (arr < 0 || obj < arr):
		if end := strings.LastIndex(raw, "}"); end > obj {
			raw = raw[obj : end+1]
		}
	case arr >= 0:
		if end := strings.LastIndex(raw, "]"); end > arr {
			raw = raw[arr : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
