package regions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/menta2k/infographic-lens/pkg/client"
	"github.com/menta2k/infographic-lens/pkg/processing"
	"github.com/menta2k/infographic-lens/pkg/types"
)

// Config controls how images are handed to the vision model
type Config struct {
	Model       string
	MaxImageDim int    // long side sent to the model in pixels, 0 keeps the original
	SendFormat  string // jpg or png
	SendQuality int
}

// Analyzer locates interactive regions on an infographic using a vision model
type Analyzer struct {
	client    client.VisionClient
	config    Config
	processor *processing.Processor
	logger    *slog.Logger
}

// NewAnalyzer creates a new analyzer with a vision client
func NewAnalyzer(c client.VisionClient, config Config) *Analyzer {
	if config.SendFormat == "" {
		config.SendFormat = "jpg"
	}
	if config.SendQuality <= 0 {
		config.SendQuality = 85
	}
	return &Analyzer{
		client:    c,
		config:    config,
		processor: processing.NewProcessor(),
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger used by the analyzer
func (a *Analyzer) WithLogger(logger *slog.Logger) *Analyzer {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// AnalyzeImageRegions asks the vision model for the segments of a generated infographic
func (a *Analyzer) AnalyzeImageRegions(ctx context.Context, query string, image *types.GeneratedImage) (*types.AnalysisResult, error) {
	if image == nil || image.Base64 == "" {
		return nil, &client.AnalysisError{Message: "There is no image to analyze."}
	}

	imgB64, mime, err := a.prepare(image)
	if err != nil {
		return nil, &client.AnalysisError{Message: "The generated image could not be read.", Err: err}
	}

	start := time.Now()
	raw, err := a.client.AnalyzeImage(ctx, a.config.Model, BuildPrompt(query), imgB64, mime)
	if err != nil {
		a.logger.Error("region analysis failed", "model", a.config.Model, "error", err)
		return nil, &client.AnalysisError{Message: err.Error(), Err: err}
	}

	result, err := ParseAnalysis(raw)
	if err != nil {
		a.logger.Warn("unreadable region analysis", "model", a.config.Model, "error", err)
		return nil, &client.AnalysisError{Message: "The image analysis could not be understood.", Err: err}
	}
	result = Normalize(result)

	a.logger.Info("region analysis complete",
		"model", a.config.Model,
		"segments", len(result.Segments),
		"took", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (a *Analyzer) TestVision(ctx context.Context, image *types.GeneratedImage) (string, error) {
	imgB64, _, err := a.prepare(image)
	if err != nil {
		return "", err
	}
	return a.client.SimpleQuery(ctx, a.config.Model, SimpleTestPrompt, imgB64)
}

// prepare downsizes the image for the model; percentages are scale invariant so segments still line up
func (a *Analyzer) prepare(image *types.GeneratedImage) (string, string, error) {
	if a.config.MaxImageDim <= 0 && image.MimeType != "" {
		return image.Base64, image.MimeType, nil
	}
	img, err := a.processor.DecodeGenerated(image)
	if err != nil {
		return "", "", fmt.Errorf("decode image: %w", err)
	}
	return a.processor.PrepareImageForModel(img, a.config.SendFormat, a.config.MaxImageDim, a.config.SendQuality)
}
