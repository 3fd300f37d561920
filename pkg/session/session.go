package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/infographic-lens/pkg/client"
)

// DefaultPhraseInterval is how often the status phrase rotates
const DefaultPhraseInterval = 2500 * time.Millisecond

// Options configure a Session
type Options struct {
	PhraseInterval time.Duration
	CallTimeout    time.Duration // per AI call, 0 means no limit
	Logger         *slog.Logger
}

// Session runs the state machine. All mutations go through dispatch under mu;
// AI calls and the phrase ticker run in goroutines and re-enter via dispatch.
type Session struct {
	generator client.InfographicGenerator
	analyzer  client.RegionAnalyzer
	opts      Options
	logger    *slog.Logger

	mu    sync.Mutex
	state State

	baseCtx    context.Context
	baseCancel context.CancelFunc
	runCtx     context.Context
	runCancel  context.CancelFunc
	runID      string

	stopTicker chan struct{}

	subs    map[int]chan State
	nextSub int
	closed  bool
	wg      sync.WaitGroup
}

// New creates an idle session
func New(generator client.InfographicGenerator, analyzer client.RegionAnalyzer, opts Options) *Session {
	if opts.PhraseInterval <= 0 {
		opts.PhraseInterval = DefaultPhraseInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	runCtx, runCancel := context.WithCancel(baseCtx)

	return &Session{
		generator:  generator,
		analyzer:   analyzer,
		opts:       opts,
		logger:     logger,
		state:      State{Status: StatusIdle},
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		runCtx:     runCtx,
		runCancel:  runCancel,
		subs:       make(map[int]chan State),
	}
}

// Submit starts a pipeline for query and returns the resulting state.
// An empty query leaves the state unchanged.
func (s *Session) Submit(query string) State {
	return s.dispatch(Submit{Query: query})
}

// Reset discards all results and returns to idle
func (s *Session) Reset() State {
	return s.dispatch(Reset{})
}

// State returns a snapshot of the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel receiving the current state and every later
// change. Slow readers only see the latest state. The returned func
// unsubscribes and closes the channel.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close cancels in-flight work, stops the ticker and closes all subscriptions
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.baseCancel()
	s.haltTicker()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Session) dispatch(ev Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.state
	}

	prev := s.state
	next, cmds := Transition(prev, ev)
	s.state = next

	if next.Epoch != prev.Epoch {
		s.runCancel()
		s.runCtx, s.runCancel = context.WithCancel(s.baseCtx)
		s.runID = uuid.NewString()
	}

	// the ticker lives exactly as long as one analyzing epoch
	wasAnalyzing := prev.Status == StatusAnalyzing
	isAnalyzing := next.Status == StatusAnalyzing
	if wasAnalyzing && (!isAnalyzing || next.Epoch != prev.Epoch) {
		s.haltTicker()
	}
	if isAnalyzing && (!wasAnalyzing || next.Epoch != prev.Epoch) {
		s.startTicker(next.Epoch)
	}

	for _, cmd := range cmds {
		s.execute(cmd)
	}

	if next != prev {
		if next.Status != prev.Status || next.Epoch != prev.Epoch {
			s.logger.Debug("session transition",
				"run", s.runID,
				"from", prev.Status,
				"to", next.Status,
				"epoch", next.Epoch,
				"error", next.Error)
		}
		s.broadcast(next)
	}
	return next
}

func (s *Session) execute(cmd Command) {
	ctx := s.runCtx
	runID := s.runID

	switch c := cmd.(type) {
	case StartGeneration:
		s.logger.Info("generating infographic", "run", runID, "query", c.Query)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			callCtx, cancel := s.callContext(ctx)
			defer cancel()

			start := time.Now()
			img, err := s.generator.GenerateInfographic(callCtx, c.Query)
			if err != nil {
				s.logger.Warn("generation failed", "run", runID, "error", err, "elapsed", time.Since(start))
			}
			s.dispatch(GenerationDone{Epoch: c.Epoch, Image: img, Err: err})
		}()

	case StartAnalysis:
		s.logger.Info("analyzing regions", "run", runID, "query", c.Query)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			callCtx, cancel := s.callContext(ctx)
			defer cancel()

			start := time.Now()
			result, err := s.analyzer.AnalyzeImageRegions(callCtx, c.Query, c.Image)
			if err != nil {
				s.logger.Warn("analysis failed", "run", runID, "error", err, "elapsed", time.Since(start))
			} else {
				s.logger.Info("analysis complete", "run", runID, "segments", result.Len(), "elapsed", time.Since(start))
			}
			s.dispatch(AnalysisDone{Epoch: c.Epoch, Result: result, Err: err})
		}()
	}
}

func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// startTicker must be called with mu held
func (s *Session) startTicker(epoch uint64) {
	stop := make(chan struct{})
	s.stopTicker = stop
	interval := s.opts.PhraseInterval

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				// a tick racing with the stop is discarded by Transition
				s.dispatch(PhraseTick{Epoch: epoch})
			}
		}
	}()
}

// haltTicker must be called with mu held; it never waits for the goroutine
func (s *Session) haltTicker() {
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
}

// broadcast must be called with mu held
func (s *Session) broadcast(st State) {
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}
