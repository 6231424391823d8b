//go:build tesseract

package cmd

import (
	"github.com/lehigh-university-libraries/bookscan/internal/ocr"
	"github.com/lehigh-university-libraries/bookscan/internal/ocr/tesseract"
)

func newTesseract(languages string) (ocr.Engine, error) {
	return tesseract.New(languages), nil
}
