package types

import "testing"

func TestAnalysisResultLen(t *testing.T) {
	var nilResult *AnalysisResult
	if nilResult.Len() != 0 {
		t.Error("Expected nil result to have no segments")
	}
	r := &AnalysisResult{Segments: []Segment{{Label: "Wing"}, {Label: "Tail"}}}
	if r.Len() != 2 {
		t.Errorf("Expected 2 segments, got %d", r.Len())
	}
}

func TestCategoryKnown(t *testing.T) {
	for _, c := range Categories {
		if !c.Known() {
			t.Errorf("%q should be known", c)
		}
	}
	for _, c := range []Category{"", "Data", "mythology"} {
		if c.Known() {
			t.Errorf("%q should not be known", c)
		}
	}
}
