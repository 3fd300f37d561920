// Package session sequences infographic generation and region analysis.
//
// The state machine itself is the pure Transition function: it takes the
// current State and an Event and returns the next State plus the Commands
// the runtime must execute. Session wraps it with goroutines, timers and
// subscribers.
package session

import (
	"errors"
	"strings"

	"github.com/menta2k/infographic-lens/pkg/client"
	"github.com/menta2k/infographic-lens/pkg/types"
)

// Status is the pipeline stage
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusAnalyzing  Status = "analyzing"
	StatusComplete   Status = "complete"
)

// DefaultErrorMessage is shown when a failure carries no message
const DefaultErrorMessage = "Something went wrong. Please try again."

// StatusPhrases rotate while the image is being analyzed
var StatusPhrases = []string{
	"Scanning the infographic...",
	"Identifying key regions...",
	"Reading labels and figures...",
	"Gathering supporting facts...",
	"Placing interactive widgets...",
}

// Data is the result of the current pipeline
type Data struct {
	Image    *types.GeneratedImage
	Analysis *types.AnalysisResult // nil until analysis succeeds
}

// State is the full application state. Epoch increases on every submission
// and reset; completions carrying another epoch are discarded.
type State struct {
	Status Status
	Query  string
	Data   *Data
	Error  string
	Phrase int
	Epoch  uint64
}

// IsScanning reports whether the image is shown while analysis is pending
func (s State) IsScanning() bool {
	return s.Status == StatusAnalyzing
}

// StatusPhrase returns the current rotating phrase, or "" outside analysis
func (s State) StatusPhrase() string {
	if s.Status != StatusAnalyzing || len(StatusPhrases) == 0 {
		return ""
	}
	return StatusPhrases[s.Phrase%len(StatusPhrases)]
}

// Segments returns the analyzed segments, or nil when none are available
func (s State) Segments() []types.Segment {
	if s.Data == nil || s.Data.Analysis == nil {
		return nil
	}
	return s.Data.Analysis.Segments
}

// Event is an input to Transition
type Event interface {
	event()
}

// Submit starts a new pipeline for Query
type Submit struct {
	Query string
}

// Reset returns to idle and discards everything
type Reset struct{}

// GenerationDone reports the outcome of StartGeneration
type GenerationDone struct {
	Epoch uint64
	Image *types.GeneratedImage
	Err   error
}

// AnalysisDone reports the outcome of StartAnalysis
type AnalysisDone struct {
	Epoch  uint64
	Result *types.AnalysisResult
	Err    error
}

// PhraseTick advances the status phrase
type PhraseTick struct {
	Epoch uint64
}

func (Submit) event()         {}
func (Reset) event()          {}
func (GenerationDone) event() {}
func (AnalysisDone) event()   {}
func (PhraseTick) event()     {}

// Command is a side effect requested by Transition
type Command interface {
	command()
}

// StartGeneration asks the runtime to generate an infographic
type StartGeneration struct {
	Epoch uint64
	Query string
}

// StartAnalysis asks the runtime to analyze a generated image
type StartAnalysis struct {
	Epoch uint64
	Query string
	Image *types.GeneratedImage
}

func (StartGeneration) command() {}
func (StartAnalysis) command()   {}

// Transition applies ev to s. It never mutates its input.
func Transition(s State, ev Event) (State, []Command) {
	switch e := ev.(type) {
	case Submit:
		query := strings.TrimSpace(e.Query)
		if query == "" {
			return s, nil
		}
		next := State{
			Status: StatusGenerating,
			Query:  query,
			Epoch:  s.Epoch + 1,
		}
		return next, []Command{StartGeneration{Epoch: next.Epoch, Query: query}}

	case Reset:
		return State{Status: StatusIdle, Epoch: s.Epoch + 1}, nil

	case GenerationDone:
		if e.Epoch != s.Epoch || s.Status != StatusGenerating {
			return s, nil
		}
		if e.Err != nil || e.Image == nil {
			return failed(s, e.Err), nil
		}
		next := State{
			Status: StatusAnalyzing,
			Query:  s.Query,
			Data:   &Data{Image: e.Image},
			Phrase: 0,
			Epoch:  s.Epoch,
		}
		return next, []Command{StartAnalysis{Epoch: s.Epoch, Query: s.Query, Image: e.Image}}

	case AnalysisDone:
		if e.Epoch != s.Epoch || s.Status != StatusAnalyzing {
			return s, nil
		}
		if e.Err != nil {
			return failed(s, e.Err), nil
		}
		result := e.Result
		if result == nil {
			result = &types.AnalysisResult{Segments: []types.Segment{}}
		}
		return State{
			Status: StatusComplete,
			Query:  s.Query,
			Data:   &Data{Image: s.Data.Image, Analysis: result},
			Epoch:  s.Epoch,
		}, nil

	case PhraseTick:
		if e.Epoch != s.Epoch || s.Status != StatusAnalyzing || len(StatusPhrases) == 0 {
			return s, nil
		}
		s.Phrase = (s.Phrase + 1) % len(StatusPhrases)
		return s, nil
	}
	return s, nil
}

// failed drops the query and all data and keeps only the error message
func failed(s State, err error) State {
	return State{
		Status: StatusIdle,
		Error:  ErrorMessage(err),
		Epoch:  s.Epoch,
	}
}

// ErrorMessage converts a pipeline error into one displayable string
func ErrorMessage(err error) string {
	if err == nil {
		return DefaultErrorMessage
	}
	var ge *client.GenerationError
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	var ae *client.AnalysisError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return DefaultErrorMessage
}
