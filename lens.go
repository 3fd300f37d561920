// Package lens turns a topic into an explorable infographic.
//
// A generation backend draws the infographic, a vision backend locates the
// regions worth annotating, and the session state machine sequences both
// calls for the web UI.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		lens "github.com/menta2k/infographic-lens"
//		"github.com/menta2k/infographic-lens/internal/config"
//	)
//
//	func main() {
//		cfg := config.Default()
//		cfg.ApplyEnv()
//
//		l, err := lens.New(context.Background(), cfg, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := l.Run(context.Background(), "Anatomy of a Dragon")
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, seg := range result.Analysis.Segments {
//			fmt.Printf("%s at %+v\n", seg.Label, seg.Bounds)
//		}
//	}
//
// The package consists of these main components:
//
// 1. Generation (pkg/infographic): prompt, image backend call, output validation
// 2. Analysis (pkg/regions): region prompt, model JSON parsing, bounds normalization
// 3. Session (pkg/session): the idle/generating/analyzing/complete state machine
// 4. Widgets and canvas (pkg/widget, pkg/canvas): rendering segments over the image
//
// Backends are selected by configuration: gemini, openai (any OpenAI-compatible
// server), ollama for vision, and mock for development without a model.
package lens

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/menta2k/infographic-lens/internal/config"
	"github.com/menta2k/infographic-lens/internal/server"
	"github.com/menta2k/infographic-lens/internal/utils"
	"github.com/menta2k/infographic-lens/pkg/client"
	"github.com/menta2k/infographic-lens/pkg/gemini"
	"github.com/menta2k/infographic-lens/pkg/infographic"
	"github.com/menta2k/infographic-lens/pkg/mock"
	"github.com/menta2k/infographic-lens/pkg/ollama"
	"github.com/menta2k/infographic-lens/pkg/openaicompat"
	"github.com/menta2k/infographic-lens/pkg/processing"
	"github.com/menta2k/infographic-lens/pkg/regions"
	"github.com/menta2k/infographic-lens/pkg/session"
	"github.com/menta2k/infographic-lens/pkg/types"
)

// Version of the infographic lens library
const Version = "1.0.0"

// Lens wires configured backends into the generation and analysis steps
type Lens struct {
	cfg       *config.Config
	generator *infographic.Generator
	analyzer  *regions.Analyzer
	vision    client.VisionClient
	processor *processing.Processor
	logger    *slog.Logger
}

// Result is the outcome of one blocking pipeline run
type Result struct {
	Query    string                `json:"query"`
	Image    *types.GeneratedImage `json:"image"`
	Analysis *types.AnalysisResult `json:"analysis"`
}

// New creates a Lens with the backends named in cfg
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Lens, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	imageClient, err := newImageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("generation backend %s: %w", cfg.Generation.Backend, err)
	}
	visionClient, err := newVisionClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("analysis backend %s: %w", cfg.Analysis.Backend, err)
	}

	return NewWithClients(imageClient, visionClient, cfg, logger), nil
}

// NewWithClients creates a Lens around existing backend clients
func NewWithClients(imageClient client.ImageClient, visionClient client.VisionClient, cfg *config.Config, logger *slog.Logger) *Lens {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Lens{
		cfg:       cfg,
		generator: infographic.NewGenerator(imageClient, cfg.Generation.Model).WithLogger(logger),
		analyzer: regions.NewAnalyzer(visionClient, regions.Config{
			Model:       cfg.Analysis.Model,
			MaxImageDim: cfg.Analysis.MaxImageDim,
			SendFormat:  cfg.Analysis.SendFormat,
			SendQuality: cfg.Analysis.SendQuality,
		}).WithLogger(logger),
		vision:    visionClient,
		processor: processing.NewProcessor(),
		logger:    logger,
	}
}

func newImageClient(ctx context.Context, cfg *config.Config) (client.ImageClient, error) {
	switch cfg.Generation.Backend {
	case "gemini":
		return gemini.NewClient(ctx, cfg.Generation.APIKey)
	case "openai":
		return openaicompat.NewClient(cfg.Generation.ServerURL, cfg.Generation.APIKey)
	case "mock":
		return newMock(cfg), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Generation.Backend)
}

func newVisionClient(ctx context.Context, cfg *config.Config) (client.VisionClient, error) {
	switch cfg.Analysis.Backend {
	case "gemini":
		return gemini.NewClient(ctx, cfg.Analysis.APIKey)
	case "ollama":
		return ollama.NewClient(cfg.Analysis.ServerURL)
	case "openai":
		return openaicompat.NewClient(cfg.Analysis.ServerURL, cfg.Analysis.APIKey)
	case "mock":
		return newMock(cfg), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Analysis.Backend)
}

func newMock(cfg *config.Config) *mock.Client {
	return mock.NewClient(mock.Options{
		Latency:        cfg.Mock.Latency.Std(),
		FailGeneration: cfg.Mock.FailGeneration,
		FailAnalysis:   cfg.Mock.FailAnalysis,
	})
}

// Generator returns the generation step
func (l *Lens) Generator() client.InfographicGenerator {
	return l.generator
}

// Analyzer returns the analysis step
func (l *Lens) Analyzer() client.RegionAnalyzer {
	return l.analyzer
}

// NewSession creates an interactive session using the configured timings
func (l *Lens) NewSession() *session.Session {
	return session.New(l.generator, l.analyzer, session.Options{
		PhraseInterval: l.cfg.Session.PhraseInterval.Std(),
		CallTimeout:    l.cfg.Session.CallTimeout.Std(),
		Logger:         l.logger,
	})
}

// NewServer creates the web UI for sess
func (l *Lens) NewServer(sess *session.Session) *server.Server {
	return server.New(sess, server.Options{
		Suggestions: l.cfg.Server.Suggestions,
		Logger:      l.logger,
	})
}

// Serve runs the web UI on the configured address until ctx is cancelled
func (l *Lens) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = l.cfg.Server.Addr
	}
	sess := l.NewSession()
	defer sess.Close()
	return l.NewServer(sess).Run(ctx, addr)
}

// Run generates and analyzes an infographic for query, blocking until both steps finish
func (l *Lens) Run(ctx context.Context, query string) (*Result, error) {
	img, err := l.generator.GenerateInfographic(ctx, query)
	if err != nil {
		return nil, err
	}
	analysis, err := l.analyzer.AnalyzeImageRegions(ctx, query, img)
	if err != nil {
		return nil, err
	}
	return &Result{Query: query, Image: img, Analysis: analysis}, nil
}

// Analyze runs only the analysis step on an existing image
func (l *Lens) Analyze(ctx context.Context, query string, img *types.GeneratedImage) (*Result, error) {
	analysis, err := l.analyzer.AnalyzeImageRegions(ctx, query, img)
	if err != nil {
		return nil, err
	}
	return &Result{Query: query, Image: img, Analysis: analysis}, nil
}

// CheckVision asks the vision backend to describe an image
func (l *Lens) CheckVision(ctx context.Context, img *types.GeneratedImage) (string, error) {
	return l.analyzer.TestVision(ctx, img)
}

// LoadImage reads an image from a file path or http(s) URL
func (l *Lens) LoadImage(ctx context.Context, source string) (*types.GeneratedImage, error) {
	img, err := l.processor.LoadImageSmart(ctx, source)
	if err != nil {
		return nil, err
	}
	b64, mime, err := l.processor.PrepareImageForModel(img, "png", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &types.GeneratedImage{Base64: b64, MimeType: mime, GroundingURLs: []types.GroundingURL{}}, nil
}

// SaveResult writes the image and the model output into dir, returning the
// written paths. With debug it also writes an annotated overlay and one crop
// per segment.
func (l *Lens) SaveResult(result *Result, dir string, debug bool) ([]string, error) {
	if result == nil || result.Image == nil {
		return nil, fmt.Errorf("nothing to save")
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	img, err := l.processor.DecodeGenerated(result.Image)
	if err != nil {
		return nil, err
	}

	format := l.cfg.Output.DefaultFormat
	quality := l.cfg.Output.Quality
	var written []string

	imagePath := filepath.Join(dir, "infographic."+format)
	if err := l.processor.SaveImage(img, imagePath, format, quality, false); err != nil {
		return written, err
	}
	written = append(written, imagePath)

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return written, fmt.Errorf("failed to marshal result: %w", err)
	}
	// the base64 payload is already saved as an image
	output, err = stripImagePayload(output)
	if err != nil {
		return written, err
	}
	jsonPath := filepath.Join(dir, "model_output.json")
	if err := os.WriteFile(jsonPath, output, 0644); err != nil {
		return written, fmt.Errorf("failed to write model output: %w", err)
	}
	written = append(written, jsonPath)

	if !debug || result.Analysis == nil {
		return written, nil
	}

	overlayPath := filepath.Join(dir, "annotated.png")
	overlay := l.processor.CreateAnnotatedOverlay(img, result.Analysis.Segments)
	if err := l.processor.SaveImage(overlay, overlayPath, "png", quality, false); err != nil {
		return written, err
	}
	written = append(written, overlayPath)

	for i, seg := range result.Analysis.Segments {
		crop, err := l.processor.CropSegment(img, seg.Bounds)
		if err != nil {
			l.logger.Warn("skipping segment crop", "index", i, "label", seg.Label, "error", err)
			continue
		}
		path := utils.SegmentFilename(dir, i, seg.Label, format)
		if err := l.processor.SaveImage(crop, path, format, quality, false); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

func stripImagePayload(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if img, ok := doc["image"].(map[string]any); ok {
		delete(img, "base64")
	}
	return json.MarshalIndent(doc, "", "  ")
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
