package infographic

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/menta2k/infographic-lens/pkg/client"
	"github.com/menta2k/infographic-lens/pkg/processing"
	"github.com/menta2k/infographic-lens/pkg/types"
)

type fakeImages struct {
	img    *types.GeneratedImage
	err    error
	prompt string
}

func (f *fakeImages) GenerateImage(ctx context.Context, model, prompt string) (*types.GeneratedImage, error) {
	f.prompt = prompt
	return f.img, f.err
}

func encodedImage(t *testing.T, size int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{200, uint8(x % 256), 40, 255})
		}
	}
	data, _, err := processing.NewProcessor().EncodeImage(img, "png", 90)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func TestGenerateInfographic(t *testing.T) {
	images := &fakeImages{img: &types.GeneratedImage{
		Base64:        encodedImage(t, 128),
		GroundingURLs: []types.GroundingURL{{Title: "Wiki", URI: "https://example.com"}},
	}}
	gen := NewGenerator(images, "test-model")

	out, err := gen.GenerateInfographic(context.Background(), "  Anatomy of a Dragon ")
	if err != nil {
		t.Fatalf("GenerateInfographic failed: %v", err)
	}
	if out.MimeType != "image/png" {
		t.Errorf("Expected sniffed MIME image/png, got %q", out.MimeType)
	}
	if len(out.GroundingURLs) != 1 {
		t.Errorf("Grounding URLs lost: %+v", out.GroundingURLs)
	}
	if !strings.Contains(images.prompt, "about: Anatomy of a Dragon.") {
		t.Errorf("Prompt does not carry the trimmed topic: %q", images.prompt)
	}
	if images.img.MimeType != "" {
		t.Error("Generator must not mutate the backend result")
	}
}

func TestGenerateInfographicEmptyGrounding(t *testing.T) {
	gen := NewGenerator(&fakeImages{img: &types.GeneratedImage{Base64: encodedImage(t, 96), MimeType: "image/png"}}, "m")
	out, err := gen.GenerateInfographic(context.Background(), "x")
	if err != nil {
		t.Fatalf("GenerateInfographic failed: %v", err)
	}
	if out.GroundingURLs == nil {
		t.Error("GroundingURLs should be an empty slice, not nil")
	}
}

func TestGenerateInfographicErrors(t *testing.T) {
	upstream := errors.New("quota exceeded")

	tests := []struct {
		name    string
		images  *fakeImages
		message string
	}{
		{"backend error", &fakeImages{err: upstream}, "quota exceeded"},
		{"typed backend error", &fakeImages{err: &client.GenerationError{Message: "blocked by safety filter"}}, "blocked by safety filter"},
		{"no image", &fakeImages{}, "The model did not return an image. Try rephrasing the topic."},
		{"empty image", &fakeImages{img: &types.GeneratedImage{}}, "The model did not return an image. Try rephrasing the topic."},
		{"undecodable", &fakeImages{img: &types.GeneratedImage{Base64: "Zm9vYmFy"}}, "The generated image could not be read."},
		{"too small", &fakeImages{img: &types.GeneratedImage{Base64: encodedImage(t, 16)}}, "The generated image is too small."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.images, "m").GenerateInfographic(context.Background(), "topic")

			var genErr *client.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("Expected GenerationError, got %v", err)
			}
			if genErr.Message != tt.message {
				t.Errorf("Message = %q, expected %q", genErr.Message, tt.message)
			}
		})
	}
}
