package infographic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/menta2k/infographic-lens/pkg/client"
	"github.com/menta2k/infographic-lens/pkg/processing"
	"github.com/menta2k/infographic-lens/pkg/types"
)

// DefaultPrompt is the image prompt; the single %s verb receives the user's topic
const DefaultPrompt = `Create a detailed, visually rich educational infographic about: %s.

Layout: a clear central illustration surrounded by distinct labeled panels, callouts and small
data charts. Use bold readable headings, icons and short captions. Keep regions well separated so
each one can be annotated individually. Use accurate, up-to-date facts.`

// MinImageSize is the smallest side accepted from the image model
const MinImageSize = 64

// Generator turns a topic into an infographic image using an image backend
type Generator struct {
	client    client.ImageClient
	model     string
	processor *processing.Processor
	logger    *slog.Logger
}

// NewGenerator creates a new generator with an image client
func NewGenerator(c client.ImageClient, model string) *Generator {
	return &Generator{
		client:    c,
		model:     model,
		processor: processing.NewProcessor(),
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger used by the generator
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// BuildPrompt renders the infographic prompt for a topic
func BuildPrompt(query string) string {
	return fmt.Sprintf(DefaultPrompt, strings.TrimSpace(query))
}

// GenerateInfographic generates an infographic image for the query
func (g *Generator) GenerateInfographic(ctx context.Context, query string) (*types.GeneratedImage, error) {
	start := time.Now()

	img, err := g.client.GenerateImage(ctx, g.model, BuildPrompt(query))
	if err != nil {
		g.logger.Error("image generation failed", "model", g.model, "error", err)
		var genErr *client.GenerationError
		if errors.As(err, &genErr) {
			return nil, err
		}
		return nil, &client.GenerationError{Message: err.Error(), Err: err}
	}
	if img == nil || img.Base64 == "" {
		return nil, &client.GenerationError{Message: "The model did not return an image. Try rephrasing the topic."}
	}

	data, decoded, err := g.processor.DecodeBase64(img.Base64)
	if err != nil {
		return nil, &client.GenerationError{Message: "The generated image could not be read.", Err: err}
	}
	if err := g.processor.ValidateImage(decoded, MinImageSize); err != nil {
		return nil, &client.GenerationError{Message: "The generated image is too small.", Err: err}
	}

	out := *img
	if out.MimeType == "" || !strings.HasPrefix(out.MimeType, "image/") {
		out.MimeType = g.processor.DetectMIME(data)
	}
	if out.GroundingURLs == nil {
		out.GroundingURLs = []types.GroundingURL{}
	}

	info := g.processor.Info(decoded)
	g.logger.Info("infographic generated",
		"model", g.model,
		"mime", out.MimeType,
		"size", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"sources", len(out.GroundingURLs),
		"took", time.Since(start).Round(time.Millisecond))
	return &out, nil
}
