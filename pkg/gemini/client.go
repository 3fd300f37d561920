package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/menta2k/infographic-lens/pkg/types"
)

// DefaultTimeout applies when the caller's context has no deadline
const DefaultTimeout = 180 * time.Second

// Client wraps the Gemini API for image generation and vision queries
type Client struct {
	client *genai.Client
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: c}, nil
}

// GenerateImage generates an image grounded with Google Search and collects the cited sources
func (c *Client) GenerateImage(ctx context.Context, model, prompt string) (*types.GeneratedImage, error) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Tools:              []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return imageFromResponse(resp)
}

// SimpleQuery asks a free-form question about an image
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.vision(ctx, model, prompt, imgB64, "image/jpeg", nil)
}

// AnalyzeImage asks for a JSON answer about an image and returns the raw text
func (c *Client) AnalyzeImage(ctx context.Context, model, prompt, imgB64, mimeType string) (string, error) {
	temperature := float32(0.2)
	return c.vision(ctx, model, prompt, imgB64, mimeType, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	})
}

func (c *Client) vision(ctx context.Context, model, prompt, imgB64, mimeType string, config *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	data, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 image: %w", err)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini vision: %w", err)
	}

	text := textFromResponse(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}

// imageFromResponse picks the first inline image and the web grounding sources of a response
func imageFromResponse(resp *genai.GenerateContentResponse) (*types.GeneratedImage, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	out := &types.GeneratedImage{GroundingURLs: []types.GroundingURL{}}
	seen := map[string]bool{}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		if cand.Content != nil && out.Base64 == "" {
			for _, part := range cand.Content.Parts {
				if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
					out.Base64 = base64.StdEncoding.EncodeToString(part.InlineData.Data)
					out.MimeType = part.InlineData.MIMEType
					break
				}
			}
		}
		if cand.GroundingMetadata != nil {
			for _, chunk := range cand.GroundingMetadata.GroundingChunks {
				if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
					continue
				}
				seen[chunk.Web.URI] = true
				out.GroundingURLs = append(out.GroundingURLs, types.GroundingURL{
					Title: chunk.Web.Title,
					URI:   chunk.Web.URI,
				})
			}
		}
	}

	if out.Base64 == "" {
		if reason := finishReason(resp); reason != "" {
			return nil, fmt.Errorf("gemini returned no image (finish reason: %s)", reason)
		}
		return nil, fmt.Errorf("gemini returned no image")
	}
	return out, nil
}

func textFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

func finishReason(resp *genai.GenerateContentResponse) string {
	for _, cand := range resp.Candidates {
		if cand != nil && cand.FinishReason != "" {
			return string(cand.FinishReason)
		}
	}
	return ""
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}
