package ocr

import (
	"context"
	"fmt"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
	"github.com/lehigh-university-libraries/bookscan/internal/providers"
)

const coverPrompt = `You are performing OCR (Optical Character Recognition) on a photo of a book cover, spine or copyright page.

Your task is to extract ALL visible text from the image exactly as it appears, preserving:
- Line breaks
- The original script (Chinese, Japanese, Latin, ...)
- Digits and hyphens of any ISBN exactly

INSTRUCTIONS:
1. Read the image from top to bottom
2. Put the title on its own line
3. Keep author statements such as "刘慈欣 著" or "by Mark Twain" on one line
4. Do not add any interpretation, commentary, or explanations

OUTPUT FORMAT:
Provide ONLY the extracted text.`

// Vision recognizes text with a vision-capable LLM provider
type Vision struct {
	Provider providers.Provider
	Model    string
}

// NewVision creates a vision engine. An empty model selects the provider's
// usual default.
func NewVision(provider providers.Provider, model string) *Vision {
	if model == "" {
		model = DefaultModel(provider.Name())
	}
	return &Vision{Provider: provider, Model: model}
}

// DefaultModel returns the model used when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o"
	case "ollama":
		return "mistral-small3.2:24b"
	case "gemini":
		return "gemini-1.5-flash"
	default:
		return ""
	}
}

func (v *Vision) Name() string { return v.Provider.Name() }

func (v *Vision) Init(context.Context) error {
	if v.Model == "" {
		return fmt.Errorf("no model configured for %s", v.Provider.Name())
	}
	return nil
}

func (v *Vision) Recognize(ctx context.Context, img models.RawImage) (string, error) {
	return v.Provider.ExtractText(ctx, providers.Config{
		Model:       v.Model,
		Temperature: 0.0,
		Prompt:      coverPrompt,
		Image:       img.Data,
		MIMEType:    img.MIMEType,
	})
}

func (v *Vision) Close() error { return nil }
