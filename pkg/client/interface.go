package client

import (
	"context"

	"github.com/menta2k/infographic-lens/pkg/types"
)

// ImageClient is a backend able to synthesize an image from a text prompt
type ImageClient interface {
	GenerateImage(ctx context.Context, model, prompt string) (*types.GeneratedImage, error)
}

// VisionClient is a backend able to answer prompts about an image.
// AnalyzeImage returns the raw model text; parsing is left to the caller.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64, mimeType string) (string, error)
}

// InfographicGenerator turns a topic into an infographic image
type InfographicGenerator interface {
	GenerateInfographic(ctx context.Context, query string) (*types.GeneratedImage, error)
}

// RegionAnalyzer locates annotated regions on a generated infographic
type RegionAnalyzer interface {
	AnalyzeImageRegions(ctx context.Context, query string, image *types.GeneratedImage) (*types.AnalysisResult, error)
}
