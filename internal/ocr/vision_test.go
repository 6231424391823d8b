package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/bookscan/internal/ollama"
	"github.com/lehigh-university-libraries/bookscan/internal/openai"
)

func TestVisionOllama(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "三体\n刘慈欣 著"})
	}))
	defer srv.Close()

	r := NewRecognizer(NewVision(ollama.New(srv.URL, srv.Client()), ""), nil)
	text, err := r.Recognize(context.Background(), testImage)
	if err != nil {
		t.Fatal(err)
	}
	if text != "三体\n刘慈欣 著" {
		t.Errorf("Unexpected text %q", text)
	}
	if got["model"] != "mistral-small3.2:24b" {
		t.Errorf("Expected default model, got %v", got["model"])
	}
	if images, ok := got["images"].([]any); !ok || len(images) != 1 {
		t.Errorf("Expected one image in request, got %v", got["images"])
	}
}

func TestVisionOpenAIErrorsAreRecognitionFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewRecognizer(NewVision(openai.New("key", srv.URL, srv.Client()), "gpt-4o"), nil)
	if _, err := r.Recognize(context.Background(), testImage); !errors.Is(err, ErrRecognitionFailed) {
		t.Errorf("Expected ErrRecognitionFailed, got %v", err)
	}

	missingKey := NewRecognizer(NewVision(openai.New("", srv.URL, srv.Client()), "gpt-4o"), nil)
	if _, err := missingKey.Recognize(context.Background(), testImage); !errors.Is(err, ErrRecognitionFailed) {
		t.Errorf("Expected ErrRecognitionFailed without API key, got %v", err)
	}
}
