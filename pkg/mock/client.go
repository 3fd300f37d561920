// Package mock provides an offline backend for development and tests.
// Images are synthetic panels and segments come from saliency detection.
package mock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/menta2k/infographic-lens/pkg/processing"
	"github.com/menta2k/infographic-lens/pkg/types"
	"github.com/menta2k/infographic-lens/pkg/vision"
)

// Options tune the mock backend
type Options struct {
	Latency        time.Duration // artificial delay per call
	FailGeneration string        // non-empty makes GenerateImage fail with this message
	FailAnalysis   string        // non-empty makes AnalyzeImage fail with this message
	Width          int
	Height         int
	MaxSegments    int
}

// Client implements both client.ImageClient and client.VisionClient without a network
type Client struct {
	opts      Options
	processor *processing.Processor
	detector  *vision.SaliencyDetector
}

// NewClient creates a mock backend
func NewClient(opts Options) *Client {
	if opts.Width <= 0 {
		opts.Width = 960
	}
	if opts.Height <= 0 {
		opts.Height = 640
	}
	if opts.MaxSegments <= 0 {
		opts.MaxSegments = 5
	}
	return &Client{
		opts:      opts,
		processor: processing.NewProcessor(),
		detector:  vision.New(),
	}
}

var palette = []color.NRGBA{
	{99, 102, 241, 255},
	{16, 185, 129, 255},
	{245, 158, 11, 255},
	{236, 72, 153, 255},
	{14, 165, 233, 255},
	{168, 85, 247, 255},
}

// GenerateImage draws a deterministic panel layout seeded by the prompt
func (c *Client) GenerateImage(ctx context.Context, model, prompt string) (*types.GeneratedImage, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if c.opts.FailGeneration != "" {
		return nil, errors.New(c.opts.FailGeneration)
	}

	h := fnv.New32a()
	h.Write([]byte(prompt))
	seed := h.Sum32()

	w, ht := c.opts.Width, c.opts.Height
	canvas := imaging.New(w, ht, color.NRGBA{15, 23, 42, 255})

	// central illustration plus four corner panels
	panels := []image.Rectangle{
		image.Rect(w*3/10, ht*3/10, w*7/10, ht*7/10),
		image.Rect(w/20, ht/12, w/4, ht*5/12),
		image.Rect(w*3/4, ht/12, w*19/20, ht*5/12),
		image.Rect(w/20, ht*7/12, w/4, ht*11/12),
		image.Rect(w*3/4, ht*7/12, w*19/20, ht*11/12),
	}
	for i, r := range panels {
		col := palette[(int(seed)+i)%len(palette)]
		panel := imaging.New(r.Dx(), r.Dy(), col)
		canvas = imaging.Paste(canvas, panel, r.Min)
	}

	data, mime, err := c.processor.EncodeImage(canvas, "png", 0)
	if err != nil {
		return nil, fmt.Errorf("mock: encode image: %w", err)
	}

	return &types.GeneratedImage{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MimeType: mime,
		GroundingURLs: []types.GroundingURL{
			{Title: "Mock source for " + truncate(topicOf(prompt), 40), URI: "https://example.com/mock"},
		},
	}, nil
}

// SimpleQuery describes the image dimensions
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	info, err := c.processor.InfoFromBase64(imgB64)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("A %dx%d synthetic image with colored panels.", info.Width, info.Height), nil
}

// AnalyzeImage returns segment JSON built from the salient regions of the image
func (c *Client) AnalyzeImage(ctx context.Context, model, prompt, imgB64, mimeType string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	if c.opts.FailAnalysis != "" {
		return "", errors.New(c.opts.FailAnalysis)
	}

	_, img, err := c.processor.DecodeBase64(imgB64)
	if err != nil {
		return "", err
	}

	regions := c.detector.DetectRegions(img, c.opts.MaxSegments)
	segments := make([]types.Segment, 0, len(regions))
	for i, r := range regions {
		segments = append(segments, segmentFor(i, r))
	}

	out, err := json.Marshal(types.AnalysisResult{Segments: segments})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func segmentFor(i int, r vision.Region) types.Segment {
	format := types.Formats[i%len(types.Formats)]
	category := types.Categories[i%len(types.Categories)]
	seg := types.Segment{
		Label:       fmt.Sprintf("Region %d", i+1),
		Format:      format,
		Description: fmt.Sprintf("Salient region with score %.3f.", r.Score),
		Category:    category,
		Icon:        "🔍",
		Bounds:      r.Box(),
	}
	if format == types.FormatStats || format == types.FormatDetailed {
		seg.Stats = []types.StatItem{
			{Label: "Score", Value: fmt.Sprintf("%.2f", r.Score)},
			{Label: "Area", Value: fmt.Sprintf("%.0f%%", r.Area()/100)},
		}
		seg.SourceName = "Saliency map"
	}
	return seg
}

func (c *Client) wait(ctx context.Context) error {
	if c.opts.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.opts.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// topicOf extracts the topic from an infographic prompt ("... about: <topic>.\n")
func topicOf(prompt string) string {
	topic := prompt
	if i := strings.Index(topic, "about: "); i >= 0 {
		topic = topic[i+len("about: "):]
	}
	if i := strings.Index(topic, "\n"); i >= 0 {
		topic = topic[:i]
	}
	return strings.TrimSuffix(strings.TrimSpace(topic), ".")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
