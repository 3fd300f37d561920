package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/infographic-lens/pkg/types"
)

// MaxDownloadSize bounds images fetched by LoadImageFromURL
const MaxDownloadSize = 32 << 20

// Processor handles image processing operations
type Processor struct {
	httpClient  *http.Client
	maxDownload int64
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxDownload: MaxDownloadSize,
	}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspectRatio"`
}

// Info returns basic information about an image
func (p *Processor) Info(img image.Image) ImageInfo {
	b := img.Bounds()
	info := ImageInfo{Width: b.Dx(), Height: b.Dy()}
	if info.Height > 0 {
		info.AspectRatio = float64(info.Width) / float64(info.Height)
	}
	return info
}

// ValidateImage checks that both sides of an image are at least minSize pixels
func (p *Processor) ValidateImage(img image.Image, minSize int) error {
	b := img.Bounds()
	if b.Dx() < minSize || b.Dy() < minSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)", b.Dx(), b.Dy(), minSize)
	}
	return nil
}

// DetectMIME sniffs the MIME type of raw image bytes
func (p *Processor) DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// DecodeBase64 decodes a base64 payload into raw bytes and an image
func (p *Processor) DecodeBase64(b64 string) ([]byte, image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, nil, err
	}
	return data, img, nil
}

// DecodeGenerated decodes the image carried by a GeneratedImage
func (p *Processor) DecodeGenerated(g *types.GeneratedImage) (image.Image, error) {
	if g == nil || g.Base64 == "" {
		return nil, fmt.Errorf("no image data")
	}
	_, img, err := p.DecodeBase64(g.Base64)
	return img, err
}

// InfoFromBase64 reads the dimensions of a base64 image without a full decode when possible
func (p *Processor) InfoFromBase64(b64 string) (ImageInfo, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info := ImageInfo{Width: cfg.Width, Height: cfg.Height}
		if cfg.Height > 0 {
			info.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
		}
		return info, nil
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return ImageInfo{}, err
	}
	return p.Info(img), nil
}

// LoadImageFromURL downloads and loads an image from a URL
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Infographic-Lens/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > p.maxDownload {
		return nil, fmt.Errorf("image exceeds %d bytes", p.maxDownload)
	}
	return p.decodeImageFromBytes(data)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// EncodeImage encodes an image and returns the bytes with their MIME type
func (p *Processor) EncodeImage(img image.Image, format string, quality int) ([]byte, string, error) {
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case "webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/webp", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

// PrepareImageForModel shrinks an image to maxDim on its long side and returns it base64 encoded
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	data, mime, err := p.EncodeImage(img, format, quality)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(data), mime, nil
}

// CropSegment cuts the region described by percentage bounds out of an image
func (p *Processor) CropSegment(img image.Image, bounds types.BoundingBox) (image.Image, error) {
	b := img.Bounds()
	x0, y0, x1, y1 := boundsToPixels(bounds, b.Dx(), b.Dy())
	rect := image.Rect(b.Min.X+x0, b.Min.Y+y0, b.Min.X+x1, b.Min.Y+y1).Intersect(b)
	if rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}
	return imaging.Crop(img, rect), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return webp.Encode(f, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	case "png":
		return imaging.Save(img, path)
	default:
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// boundsToPixels converts percentage bounds into a pixel rectangle of at least 1x1
func boundsToPixels(box types.BoundingBox, w, h int) (int, int, int, int) {
	x0 := int(clamp(box.X, 0, 100)/100*float64(w) + 0.5)
	y0 := int(clamp(box.Y, 0, 100)/100*float64(h) + 0.5)
	x1 := int(clamp(box.X+box.Width, 0, 100)/100*float64(w) + 0.5)
	y1 := int(clamp(box.Y+box.Height, 0, 100)/100*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}
