// Package ocr recognizes text on book cover images. Results are advisory and
// must be confirmed by a person before they are saved.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// ErrRecognitionFailed is returned when the engine produced no usable text
var ErrRecognitionFailed = errors.New("text recognition failed")

// Engine is a text recognition backend
type Engine interface {
	Name() string
	Init(ctx context.Context) error
	Recognize(ctx context.Context, img models.RawImage) (string, error)
	Close() error
}

// Recognizer owns one Engine. The engine is initialized on first use;
// concurrent first callers share a single initialization.
type Recognizer struct {
	engine Engine
	logger *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	ready bool
}

// NewRecognizer wraps engine
func NewRecognizer(engine Engine, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		engine: engine,
		logger: logger.With("component", "ocr", "engine", engine.Name()),
	}
}

// Engine returns the name of the wrapped engine
func (r *Recognizer) Engine() string {
	return r.engine.Name()
}

func (r *Recognizer) init(ctx context.Context) error {
	r.mu.RLock()
	ready := r.ready
	r.mu.RUnlock()
	if ready {
		return nil
	}

	_, err, _ := r.group.Do("init", func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.ready {
			return nil, nil
		}
		start := time.Now()
		if err := r.engine.Init(ctx); err != nil {
			return nil, err
		}
		r.ready = true
		r.logger.Info("OCR engine initialized", "duration", time.Since(start))
		return nil, nil
	})
	return err
}

// Recognize returns the raw text found in img. Failures, including an
// engine that finds no text, wrap ErrRecognitionFailed and carry no partial
// text.
func (r *Recognizer) Recognize(ctx context.Context, img models.RawImage) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("%w: empty image", ErrRecognitionFailed)
	}
	if err := r.init(ctx); err != nil {
		r.logger.Error("OCR engine initialization failed", "err", err)
		return "", fmt.Errorf("%w: initialize %s: %w", ErrRecognitionFailed, r.engine.Name(), err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return "", fmt.Errorf("%w: engine disposed", ErrRecognitionFailed)
	}

	start := time.Now()
	text, err := r.engine.Recognize(ctx, img)
	if err != nil {
		r.logger.Warn("OCR failed", "err", err, "duration", time.Since(start))
		return "", fmt.Errorf("%w: %w", ErrRecognitionFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		r.logger.Warn("OCR found no text", "duration", time.Since(start))
		return "", fmt.Errorf("%w: no text", ErrRecognitionFailed)
	}
	r.logger.Info("Extracted OCR text", "length", len(text), "duration", time.Since(start))
	return text, nil
}

// Dispose tears the engine down. The next Recognize initializes it again.
func (r *Recognizer) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return nil
	}
	r.ready = false
	if err := r.engine.Close(); err != nil {
		return fmt.Errorf("failed to close %s engine: %w", r.engine.Name(), err)
	}
	r.logger.Info("OCR engine disposed")
	return nil
}
