package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		body := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		*seen = body

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   body["model"],
			"message": map[string]any{"role": "assistant", "content": reply},
			"done":    true,
		})
	}))
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient("http://localhost:11434/api/chat"); err != nil {
		t.Errorf("Valid URL rejected: %v", err)
	}
	if _, err := NewClient("::not a url"); err == nil {
		t.Error("Expected error for invalid URL")
	}
	if _, err := NewClient(""); err != nil {
		t.Errorf("Empty URL should use the default: %v", err)
	}
}

func TestAnalyzeImage(t *testing.T) {
	var seen map[string]any
	server := newTestServer(t, `{"segments":[]}`, &seen)
	defer server.Close()

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	img := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
	raw, err := c.AnalyzeImage(context.Background(), "llava", "find regions", img, "image/jpeg")
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if raw != `{"segments":[]}` {
		t.Errorf("Unexpected raw response %q", raw)
	}
	if seen["format"] != "json" {
		t.Errorf("Expected JSON format request, got %v", seen["format"])
	}
	if seen["model"] != "llava" {
		t.Errorf("Expected model llava, got %v", seen["model"])
	}
}

func TestAnalyzeImageEmptyResponse(t *testing.T) {
	var seen map[string]any
	server := newTestServer(t, "  ", &seen)
	defer server.Close()

	c, _ := NewClient(server.URL)
	img := base64.StdEncoding.EncodeToString([]byte("x"))
	if _, err := c.AnalyzeImage(context.Background(), "llava", "p", img, "image/png"); err == nil {
		t.Error("Expected error for empty response")
	}
}

func TestSimpleQueryBadBase64(t *testing.T) {
	c, _ := NewClient("http://localhost:1")
	if _, err := c.SimpleQuery(context.Background(), "m", "p", "***"); err == nil {
		t.Error("Expected base64 decode error")
	}
}
