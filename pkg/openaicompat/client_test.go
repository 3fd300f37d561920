package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("", "")
	if err != nil {
		t.Fatalf("NewClient with defaults failed: %v", err)
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("Unexpected default base URL %s", c.baseURL)
	}
	if _, err := NewClient("localhost:8080", ""); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}

func TestAnalyzeImage(t *testing.T) {
	var got ChatCompletionRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"segments\":[]}"}}]}`))
	}))
	defer server.Close()

	c, _ := NewClient(server.URL+"/", "secret")
	raw, err := c.AnalyzeImage(context.Background(), "qwen-vl", "find regions", "aW1n", "image/png")
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if raw != `{"segments":[]}` {
		t.Errorf("Unexpected content %q", raw)
	}
	if auth != "Bearer secret" {
		t.Errorf("Expected bearer auth, got %q", auth)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("Expected json_object response format, got %+v", got.ResponseFormat)
	}

	parts, ok := got.Messages[0].Content.([]interface{})
	if !ok || len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %#v", got.Messages[0].Content)
	}
	imagePart := parts[1].(map[string]interface{})
	url := imagePart["image_url"].(map[string]interface{})["url"].(string)
	if url != "data:image/png;base64,aW1n" {
		t.Errorf("Unexpected image data URL %q", url)
	}
}

func TestSimpleQueryArrayContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"a dragon"}]}}]}`))
	}))
	defer server.Close()

	c, _ := NewClient(server.URL, "")
	answer, err := c.SimpleQuery(context.Background(), "m", "what?", "aW1n")
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if answer != "a dragon" {
		t.Errorf("Unexpected answer %q", answer)
	}
}

func TestGenerateImage(t *testing.T) {
	var got ImageGenerationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"created":1,"data":[{"b64_json":"aW1hZ2U="}]}`))
	}))
	defer server.Close()

	c, _ := NewClient(server.URL, "")
	img, err := c.GenerateImage(context.Background(), "sd", "a dragon")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if img.Base64 != "aW1hZ2U=" {
		t.Errorf("Unexpected base64 %q", img.Base64)
	}
	if got.ResponseFormat != "b64_json" || got.Prompt != "a dragon" {
		t.Errorf("Unexpected request %+v", got)
	}
}

func TestServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded","type":"rate_limit"}}`))
	}))
	defer server.Close()

	c, _ := NewClient(server.URL, "")
	_, err := c.GenerateImage(context.Background(), "sd", "x")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Expected quota error, got %v", err)
	}

	_, err = c.AnalyzeImage(context.Background(), "m", "p", "aW1n", "image/png")
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c, _ := NewClient(server.URL, "")
	if _, err := c.AnalyzeImage(context.Background(), "m", "p", "aW1n", "image/png"); err == nil {
		t.Error("Expected error for empty choices")
	}
}
