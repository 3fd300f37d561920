package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/menta2k/infographic-lens/pkg/client"
	"github.com/menta2k/infographic-lens/pkg/types"
)

type generationReply struct {
	image *types.GeneratedImage
	err   error
}

type analysisReply struct {
	result *types.AnalysisResult
	err    error
}

type generationCall struct {
	query string
	reply chan generationReply
}

type analysisCall struct {
	query string
	reply chan analysisReply
}

// fakePipeline blocks every call until the test replies to it
type fakePipeline struct {
	genCalls chan generationCall
	anCalls  chan analysisCall
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		genCalls: make(chan generationCall, 8),
		anCalls:  make(chan analysisCall, 8),
	}
}

func (f *fakePipeline) GenerateInfographic(ctx context.Context, query string) (*types.GeneratedImage, error) {
	call := generationCall{query: query, reply: make(chan generationReply, 1)}
	f.genCalls <- call
	select {
	case r := <-call.reply:
		return r.image, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakePipeline) AnalyzeImageRegions(ctx context.Context, query string, image *types.GeneratedImage) (*types.AnalysisResult, error) {
	call := analysisCall{query: query, reply: make(chan analysisReply, 1)}
	f.anCalls <- call
	select {
	case r := <-call.reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(f *fakePipeline, interval time.Duration) *Session {
	return New(f, f, Options{PhraseInterval: interval, Logger: quietLogger()})
}

// waitFor reads states until cond holds or the timeout expires
func waitFor(t *testing.T, ch <-chan State, cond func(State) bool) State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatal("Subscription closed")
			}
			if cond(st) {
				return st
			}
		case <-timeout:
			t.Fatal("Timed out waiting for state")
		}
	}
}

func nextGeneration(t *testing.T, f *fakePipeline) generationCall {
	t.Helper()
	select {
	case c := <-f.genCalls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for generation call")
	}
	return generationCall{}
}

func nextAnalysis(t *testing.T, f *fakePipeline) analysisCall {
	t.Helper()
	select {
	case c := <-f.anCalls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for analysis call")
	}
	return analysisCall{}
}

func TestSessionSubmitIsSynchronous(t *testing.T) {
	f := newFakePipeline()
	s := newTestSession(f, time.Hour)
	defer s.Close()

	st := s.Submit("Anatomy of a Dragon")
	if st.Status != StatusGenerating {
		t.Fatalf("Submit returned %s, want generating", st.Status)
	}
	if s.State().Status != StatusGenerating {
		t.Error("State should be generating before any result")
	}
	if c := nextGeneration(t, f); c.query != "Anatomy of a Dragon" {
		t.Errorf("Generator called with %q", c.query)
	}
}

func TestSessionFullPipeline(t *testing.T) {
	f := newFakePipeline()
	s := newTestSession(f, time.Hour)
	defer s.Close()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Submit("Anatomy of a Dragon")
	nextGeneration(t, f).reply <- generationReply{image: imageA}

	st := waitFor(t, updates, func(st State) bool { return st.Status == StatusAnalyzing })
	if st.Data == nil || st.Data.Image != imageA || st.Data.Analysis != nil {
		t.Errorf("Unexpected analyzing state %+v", st)
	}

	nextAnalysis(t, f).reply <- analysisReply{result: &types.AnalysisResult{Segments: []types.Segment{seg1, seg2}}}

	st = waitFor(t, updates, func(st State) bool { return st.Status == StatusComplete })
	if len(st.Segments()) != 2 || st.Segments()[0].Label != "Wing" || st.Segments()[1].Label != "Tail" {
		t.Errorf("Unexpected segments %+v", st.Segments())
	}
}

func TestSessionNilAnalysisCompletesEmpty(t *testing.T) {
	f := newFakePipeline()
	s := newTestSession(f, time.Hour)
	defer s.Close()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Submit("Anatomy of a Dragon")
	nextGeneration(t, f).reply <- generationReply{image: imageA}
	nextAnalysis(t, f).reply <- analysisReply{}

	st := waitFor(t, updates, func(st State) bool { return st.Status == StatusComplete })
	if st.Data == nil || st.Data.Analysis == nil || len(st.Segments()) != 0 {
		t.Errorf("Expected an empty analysis, got %+v", st.Data)
	}
	if st.Error != "" {
		t.Errorf("Unexpected error %q", st.Error)
	}
}

func TestSessionGenerationError(t *testing.T) {
	f := newFakePipeline()
	s := newTestSession(f, time.Hour)
	defer s.Close()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Submit("X")
	nextGeneration(t, f).reply <- generationReply{err: &client.GenerationError{Message: "quota exceeded"}}

	st := waitFor(t, updates, func(st State) bool { return st.Status == StatusIdle && st.Error != "" })
	if st.Error != "quota exceeded" || st.Data != nil || st.Query != "" {
		t.Errorf("Unexpected state %+v", st)
	}
}

func TestSessionSupersededGenerationIgnored(t *testing.T) {
	f := newFakePipeline()
	s := newTestSession(f, time.Hour)
	defer s.Close()

	s.Submit("first")
	first := nextGeneration(t, f)

	st := s.Submit("second")
	if st.Query != "second" || st.Status != StatusGenerating {
		t.Fatalf("Unexpected state after resubmit %+v", st)
	}
	second := nextGeneration(t, f)

	// a late answer for the superseded query changes nothing
	first.reply <- generationReply{image: &types.GeneratedImage{Base64: "c3RhbGU="}}
	time.Sleep(20 * time.Millisecond)
	if got := s.State(); got != st {
		t.Fatalf("Stale generation applied: %+v", got)
	}

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	second.reply <- generationReply{image: imageA}
	got := waitFor(t, updates, func(st State) bool { return st.Status == StatusAnalyzing })
	if got.Query != "second" || got.Epoch != st.Epoch || got.Data.Image != imageA {
		t.Errorf("Expected the second pipeline to advance, got %+v", got)
	}
}

func TestSessionResetDuringAnalysis(t *testing.T) {
	f := newFakePipeline()
	s := newTestSession(f, time.Hour)
	defer s.Close()

	s.Submit("q")
	nextGeneration(t, f).reply <- generationReply{image: imageA}
	nextAnalysis(t, f)

	st := s.Reset()
	want := State{Status: StatusIdle, Epoch: st.Epoch}
	if st != want {
		t.Errorf("Reset = %+v, want %+v", st, want)
	}

	// the cancelled analysis must not bring back any data
	time.Sleep(20 * time.Millisecond)
	if got := s.State(); got != want {
		t.Errorf("State after reset = %+v, want %+v", got, want)
	}
}

func TestSessionPhraseRotationStops(t *testing.T) {
	f := newFakePipeline()
	s := newTestSession(f, 5*time.Millisecond)
	defer s.Close()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Submit("q")
	nextGeneration(t, f).reply <- generationReply{image: imageA}
	analysis := nextAnalysis(t, f)

	waitFor(t, updates, func(st State) bool { return st.Status == StatusAnalyzing && st.Phrase > 0 })

	analysis.reply <- analysisReply{result: &types.AnalysisResult{}}
	done := waitFor(t, updates, func(st State) bool { return st.Status == StatusComplete })

	time.Sleep(30 * time.Millisecond)
	if got := s.State(); got != done {
		t.Errorf("State changed after leaving analyzing: %+v", got)
	}
	select {
	case st := <-updates:
		t.Errorf("Unexpected update after completion: %+v", st)
	default:
	}
}

func TestSessionCallTimeout(t *testing.T) {
	f := newFakePipeline()
	s := New(f, f, Options{CallTimeout: 10 * time.Millisecond, Logger: quietLogger()})
	defer s.Close()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Submit("slow")
	nextGeneration(t, f)

	st := waitFor(t, updates, func(st State) bool { return st.Status == StatusIdle && st.Error != "" })
	if st.Error != context.DeadlineExceeded.Error() {
		t.Errorf("Expected deadline error, got %q", st.Error)
	}
}

func TestSessionClose(t *testing.T) {
	f := newFakePipeline()
	s := newTestSession(f, time.Hour)

	updates, _ := s.Subscribe()
	s.Submit("q")
	nextGeneration(t, f)
	s.Close()

	for range updates {
	}
	if st := s.Submit("again"); st.Query == "again" {
		t.Error("Closed session should ignore submissions")
	}
}
