//go:build tesseract

// Package tesseract is the local Tesseract OCR engine. Building it requires
// cgo and the Tesseract and Leptonica headers:
//
//	apt-get install libtesseract-dev tesseract-ocr-chi-sim
//	go build -tags tesseract
package tesseract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// Engine runs recognition locally through gosseract. Tesseract and the
// language data must be installed on the host.
type Engine struct {
	Languages []string

	mu     sync.Mutex
	client *gosseract.Client
}

// New creates an engine for a "+" separated language list such as
// "chi_sim+eng"
func New(languages string) *Engine {
	if languages == "" {
		languages = "chi_sim+eng"
	}
	return &Engine{Languages: strings.Split(languages, "+")}
}

func (t *Engine) Name() string { return "tesseract" }

func (t *Engine) Init(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	client := gosseract.NewClient()
	if err := client.SetLanguage(t.Languages...); err != nil {
		client.Close()
		return fmt.Errorf("failed to set language: %w", err)
	}
	t.client = client
	return nil
}

// Recognize is serialized; a gosseract client holds one image at a time
func (t *Engine) Recognize(ctx context.Context, img models.RawImage) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return "", fmt.Errorf("tesseract not initialized")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := t.client.SetImageFromBytes(img.Data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

func (t *Engine) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
