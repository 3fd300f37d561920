package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/menta2k/infographic-lens/pkg/client"
	"github.com/menta2k/infographic-lens/pkg/types"
)

var (
	imageA = &types.GeneratedImage{Base64: "QQ==", MimeType: "image/png", GroundingURLs: []types.GroundingURL{}}
	seg1   = types.Segment{Label: "Wing", Format: types.FormatCompact, Bounds: types.BoundingBox{X: 10, Y: 10, Width: 20, Height: 20}}
	seg2   = types.Segment{Label: "Tail", Format: types.FormatStats, Bounds: types.BoundingBox{X: 60, Y: 50, Width: 30, Height: 40}}
)

func TestSubmitFromIdle(t *testing.T) {
	s := State{Status: StatusIdle, Error: "old error", Epoch: 3}

	next, cmds := Transition(s, Submit{Query: "  Anatomy of a Dragon "})
	if next.Status != StatusGenerating {
		t.Fatalf("Expected generating, got %s", next.Status)
	}
	if next.Query != "Anatomy of a Dragon" || next.Error != "" || next.Data != nil {
		t.Errorf("Unexpected state %+v", next)
	}
	if next.Epoch != 4 {
		t.Errorf("Expected epoch 4, got %d", next.Epoch)
	}
	want := []Command{StartGeneration{Epoch: 4, Query: "Anatomy of a Dragon"}}
	if !reflect.DeepEqual(cmds, want) {
		t.Errorf("Commands = %#v, want %#v", cmds, want)
	}
}

func TestSubmitEmptyIsNoop(t *testing.T) {
	states := []State{
		{Status: StatusIdle, Epoch: 1},
		{Status: StatusIdle, Error: "kept", Epoch: 2},
		{Status: StatusComplete, Query: "q", Data: &Data{Image: imageA}, Epoch: 5},
	}
	for _, s := range states {
		for _, q := range []string{"", "   ", "\t\n"} {
			next, cmds := Transition(s, Submit{Query: q})
			if next != s || cmds != nil {
				t.Errorf("Submit(%q) from %+v changed state to %+v (cmds %v)", q, s, next, cmds)
			}
		}
	}
}

func TestDragonScenario(t *testing.T) {
	s := State{Status: StatusIdle}

	s, _ = Transition(s, Submit{Query: "Anatomy of a Dragon"})
	s, cmds := Transition(s, GenerationDone{Epoch: s.Epoch, Image: imageA})
	if s.Status != StatusAnalyzing || s.Data == nil || s.Data.Image != imageA || s.Data.Analysis != nil {
		t.Fatalf("Expected analyzing with image A and no analysis, got %+v", s)
	}
	if !s.IsScanning() || s.Phrase != 0 {
		t.Errorf("Expected scanning from the first phrase, got %+v", s)
	}
	want := []Command{StartAnalysis{Epoch: s.Epoch, Query: "Anatomy of a Dragon", Image: imageA}}
	if !reflect.DeepEqual(cmds, want) {
		t.Errorf("Commands = %#v, want %#v", cmds, want)
	}

	result := &types.AnalysisResult{Segments: []types.Segment{seg1, seg2}}
	s, cmds = Transition(s, AnalysisDone{Epoch: s.Epoch, Result: result})
	if s.Status != StatusComplete || cmds != nil {
		t.Fatalf("Expected complete, got %+v", s)
	}
	if s.Data.Image != imageA {
		t.Error("Image should be kept alongside the analysis")
	}
	if !reflect.DeepEqual(s.Segments(), []types.Segment{seg1, seg2}) {
		t.Errorf("Segments = %+v", s.Segments())
	}
	if s.IsScanning() || s.StatusPhrase() != "" {
		t.Error("Complete state should not be scanning")
	}
}

func TestGenerationFailure(t *testing.T) {
	s, _ := Transition(State{}, Submit{Query: "X"})
	err := &client.GenerationError{Message: "quota exceeded"}

	s, cmds := Transition(s, GenerationDone{Epoch: s.Epoch, Err: err})
	if cmds != nil {
		t.Errorf("Unexpected commands %v", cmds)
	}
	want := State{Status: StatusIdle, Error: "quota exceeded", Epoch: 1}
	if s != want {
		t.Errorf("State = %+v, want %+v", s, want)
	}
}

func TestAnalysisFailureWithoutMessage(t *testing.T) {
	s, _ := Transition(State{}, Submit{Query: "Y"})
	s, _ = Transition(s, GenerationDone{Epoch: s.Epoch, Image: imageA})
	s, _ = Transition(s, AnalysisDone{Epoch: s.Epoch, Err: &client.AnalysisError{}})

	if s.Status != StatusIdle || s.Data != nil || s.Query != "" {
		t.Errorf("Expected idle without data or query, got %+v", s)
	}
	if s.Error != DefaultErrorMessage {
		t.Errorf("Expected fallback message, got %q", s.Error)
	}
}

func TestGenerationWithoutImageFails(t *testing.T) {
	s, _ := Transition(State{}, Submit{Query: "Z"})
	s, _ = Transition(s, GenerationDone{Epoch: s.Epoch})
	if s.Status != StatusIdle || s.Error != DefaultErrorMessage {
		t.Errorf("Expected idle with fallback error, got %+v", s)
	}
}

func TestNilAnalysisResultIsEmpty(t *testing.T) {
	s, _ := Transition(State{}, Submit{Query: "q"})
	s, _ = Transition(s, GenerationDone{Epoch: s.Epoch, Image: imageA})
	s, _ = Transition(s, AnalysisDone{Epoch: s.Epoch})
	if s.Status != StatusComplete {
		t.Fatalf("Expected complete, got %s", s.Status)
	}
	if s.Data.Analysis == nil || len(s.Data.Analysis.Segments) != 0 {
		t.Errorf("Expected empty analysis, got %+v", s.Data.Analysis)
	}
}

func TestResetFromAnyState(t *testing.T) {
	generating, _ := Transition(State{}, Submit{Query: "q"})
	analyzing, _ := Transition(generating, GenerationDone{Epoch: generating.Epoch, Image: imageA})
	analyzing.Phrase = 2
	complete, _ := Transition(analyzing, AnalysisDone{Epoch: analyzing.Epoch, Result: &types.AnalysisResult{}})
	idleWithError := State{Status: StatusIdle, Error: "boom", Epoch: 9}

	for _, s := range []State{generating, analyzing, complete, idleWithError} {
		next, cmds := Transition(s, Reset{})
		want := State{Status: StatusIdle, Epoch: s.Epoch + 1}
		if next != want || cmds != nil {
			t.Errorf("Reset from %s = %+v, want %+v", s.Status, next, want)
		}
	}
}

func TestStaleCompletionsDiscarded(t *testing.T) {
	first, _ := Transition(State{}, Submit{Query: "first"})
	second, _ := Transition(first, Submit{Query: "second"})

	if second.Epoch != first.Epoch+1 || second.Status != StatusGenerating {
		t.Fatalf("Resubmission should supersede, got %+v", second)
	}

	next, cmds := Transition(second, GenerationDone{Epoch: first.Epoch, Image: imageA})
	if next != second || cmds != nil {
		t.Errorf("Stale generation result applied: %+v", next)
	}

	analyzing, _ := Transition(second, GenerationDone{Epoch: second.Epoch, Image: imageA})
	next, _ = Transition(analyzing, AnalysisDone{Epoch: first.Epoch, Result: &types.AnalysisResult{}})
	if next != analyzing {
		t.Errorf("Stale analysis result applied: %+v", next)
	}

	reset, _ := Transition(analyzing, Reset{})
	next, _ = Transition(reset, AnalysisDone{Epoch: analyzing.Epoch, Result: &types.AnalysisResult{}})
	if next != reset {
		t.Errorf("Analysis after reset applied: %+v", next)
	}
}

func TestCompletionInWrongState(t *testing.T) {
	analyzing, _ := Transition(State{}, Submit{Query: "q"})
	analyzing, _ = Transition(analyzing, GenerationDone{Epoch: analyzing.Epoch, Image: imageA})

	next, _ := Transition(analyzing, GenerationDone{Epoch: analyzing.Epoch, Image: imageA})
	if next != analyzing {
		t.Error("Duplicate generation result should be ignored")
	}
}

func TestPhraseTick(t *testing.T) {
	s, _ := Transition(State{}, Submit{Query: "q"})
	s, _ = Transition(s, GenerationDone{Epoch: s.Epoch, Image: imageA})

	if s.StatusPhrase() != StatusPhrases[0] {
		t.Errorf("Expected first phrase, got %q", s.StatusPhrase())
	}
	for i := 1; i <= len(StatusPhrases); i++ {
		s, _ = Transition(s, PhraseTick{Epoch: s.Epoch})
		if want := StatusPhrases[i%len(StatusPhrases)]; s.StatusPhrase() != want {
			t.Errorf("Tick %d: phrase %q, want %q", i, s.StatusPhrase(), want)
		}
	}

	stale, _ := Transition(s, PhraseTick{Epoch: s.Epoch - 1})
	if stale != s {
		t.Error("Tick from another epoch should be ignored")
	}

	done, _ := Transition(s, AnalysisDone{Epoch: s.Epoch, Result: &types.AnalysisResult{}})
	after, _ := Transition(done, PhraseTick{Epoch: done.Epoch})
	if after != done {
		t.Error("Tick after leaving analyzing should be ignored")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, DefaultErrorMessage},
		{"generation", &client.GenerationError{Message: "quota exceeded"}, "quota exceeded"},
		{"analysis", &client.AnalysisError{Message: "bad JSON"}, "bad JSON"},
		{"wrapped cause", &client.AnalysisError{Err: errors.New("timeout")}, "timeout"},
		{"plain", errors.New("network down"), "network down"},
		{"empty", errors.New(""), DefaultErrorMessage},
		{"empty analysis", &client.AnalysisError{}, DefaultErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.want {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
