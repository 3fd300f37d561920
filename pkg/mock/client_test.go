package mock

import (
	"context"
	"testing"
	"time"

	"github.com/menta2k/infographic-lens/pkg/infographic"
	"github.com/menta2k/infographic-lens/pkg/regions"
	"github.com/menta2k/infographic-lens/pkg/types"
)

func TestGenerateImageDeterministic(t *testing.T) {
	c := NewClient(Options{Width: 300, Height: 200})

	a, err := c.GenerateImage(context.Background(), "mock", "Anatomy of a Dragon")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	b, _ := c.GenerateImage(context.Background(), "mock", "Anatomy of a Dragon")
	if a.Base64 != b.Base64 {
		t.Error("Expected identical images for identical prompts")
	}
	if a.MimeType != "image/png" {
		t.Errorf("Expected image/png, got %s", a.MimeType)
	}
	if len(a.GroundingURLs) != 1 {
		t.Errorf("Expected one grounding source, got %d", len(a.GroundingURLs))
	}

	info, err := c.processor.InfoFromBase64(a.Base64)
	if err != nil {
		t.Fatalf("Generated image is not decodable: %v", err)
	}
	if info.Width != 300 || info.Height != 200 {
		t.Errorf("Expected 300x200, got %dx%d", info.Width, info.Height)
	}
}

func TestGroundingTitleNamesTopic(t *testing.T) {
	c := NewClient(Options{Width: 120, Height: 80})
	img, err := c.GenerateImage(context.Background(), "mock", infographic.BuildPrompt("The Water Cycle"))
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if got := img.GroundingURLs[0].Title; got != "Mock source for The Water Cycle" {
		t.Errorf("Unexpected grounding title %q", got)
	}

	for prompt, want := range map[string]string{
		"Bees":                 "Bees",
		"about: Bees.\nLayout": "Bees",
		"":                     "",
	} {
		if got := topicOf(prompt); got != want {
			t.Errorf("topicOf(%q) = %q, want %q", prompt, got, want)
		}
	}
}

func TestAnalyzeImageProducesParseableSegments(t *testing.T) {
	c := NewClient(Options{Width: 320, Height: 240, MaxSegments: 4})
	img, err := c.GenerateImage(context.Background(), "mock", "volcanoes")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}

	raw, err := c.AnalyzeImage(context.Background(), "mock", "prompt", img.Base64, img.MimeType)
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	result, err := regions.ParseAnalysis(raw)
	if err != nil {
		t.Fatalf("Mock output is not parseable: %v", err)
	}
	if len(result.Segments) == 0 || len(result.Segments) > 4 {
		t.Fatalf("Expected 1..4 segments, got %d", len(result.Segments))
	}
	for i, s := range result.Segments {
		if !s.Bounds.Valid() {
			t.Errorf("Segment %d has invalid bounds %+v", i, s.Bounds)
		}
		if s.Format != types.Formats[i%len(types.Formats)] {
			t.Errorf("Segment %d format = %s", i, s.Format)
		}
	}
}

func TestFailureInjection(t *testing.T) {
	c := NewClient(Options{FailGeneration: "quota exceeded", FailAnalysis: "vision down"})
	if _, err := c.GenerateImage(context.Background(), "m", "x"); err == nil || err.Error() != "quota exceeded" {
		t.Errorf("Expected injected generation failure, got %v", err)
	}
	if _, err := c.AnalyzeImage(context.Background(), "m", "p", "", ""); err == nil || err.Error() != "vision down" {
		t.Errorf("Expected injected analysis failure, got %v", err)
	}
}

func TestLatencyHonorsContext(t *testing.T) {
	c := NewClient(Options{Latency: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := c.GenerateImage(ctx, "m", "x"); err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
