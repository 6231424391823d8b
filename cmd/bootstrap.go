package cmd

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/bookscan/internal/acquisition"
	"github.com/lehigh-university-libraries/bookscan/internal/barcode"
	"github.com/lehigh-university-libraries/bookscan/internal/config"
	"github.com/lehigh-university-libraries/bookscan/internal/gemini"
	"github.com/lehigh-university-libraries/bookscan/internal/identify"
	"github.com/lehigh-university-libraries/bookscan/internal/metadata"
	"github.com/lehigh-university-libraries/bookscan/internal/ocr"
	"github.com/lehigh-university-libraries/bookscan/internal/ollama"
	"github.com/lehigh-university-libraries/bookscan/internal/openai"
	"github.com/lehigh-university-libraries/bookscan/internal/storage"
)

// pipeline holds the collaborators shared by every orchestrator in a process
type pipeline struct {
	camera     *acquisition.Acquirer
	decoder    *barcode.Decoder
	recognizer *ocr.Recognizer
	resolver   *metadata.Resolver
	books      *storage.BookStore
	cfg        *config.Config
	logger     *slog.Logger
}

func newPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	engine, err := newOCREngine(cfg.OCR)
	if err != nil {
		return nil, err
	}

	provider, err := metadata.NewProvider(cfg.Metadata.Provider, cfg.Metadata.BaseURL, cfg.Metadata.APIKey, &http.Client{Timeout: cfg.Metadata.Timeout})
	if err != nil {
		return nil, err
	}

	driver := acquisition.NewV4L2Driver(
		cfg.Camera.RearDevice,
		cfg.Camera.FrontDevice,
		cfg.Camera.Width,
		cfg.Camera.Height,
		cfg.Camera.FrameTimeout,
		logger,
	)

	return &pipeline{
		camera:     acquisition.New(driver, acquisition.NewLocker(cfg.Camera.LockDir), logger),
		decoder:    barcode.NewDecoder(logger),
		recognizer: ocr.NewRecognizer(engine, logger),
		resolver:   metadata.NewResolver(provider, cfg.Metadata.Timeout, logger),
		books:      storage.New(),
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// newOCREngine selects the recognition backend named in the config
func newOCREngine(cfg config.OCRConfig) (ocr.Engine, error) {
	switch cfg.Engine {
	case "stub", "":
		return ocr.NewStub(), nil
	case "tesseract":
		return newTesseract(cfg.Language)
	case "ollama":
		return ocr.NewVision(ollama.New(cfg.OllamaURL, nil), cfg.Model), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai OCR engine")
		}
		return ocr.NewVision(openai.New(cfg.OpenAIKey, "", nil), cfg.Model), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini OCR engine")
		}
		return ocr.NewVision(gemini.New(cfg.GeminiKey), cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", cfg.Engine)
	}
}

// newOrchestrator builds one entry form over the shared pipeline
func (p *pipeline) newOrchestrator() (*identify.Orchestrator, error) {
	return identify.New(identify.Deps{
		Camera:  p.camera,
		Decoder: p.decoder,
		NewScanner: func() identify.Scanner {
			return barcode.NewScanner(p.decoder, p.cfg.Barcode.SampleInterval, p.logger)
		},
		Recognizer: p.recognizer,
		Resolver:   p.resolver,
		Store:      p.books,
		Logger:     p.logger,
	})
}

func (p *pipeline) Close() {
	if err := p.recognizer.Dispose(); err != nil {
		p.logger.Warn("Failed to dispose OCR engine", "err", err)
	}
}
