//go:build !tesseract

package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/bookscan/internal/ocr"
)

func newTesseract(string) (ocr.Engine, error) {
	return nil, fmt.Errorf("the tesseract OCR engine requires a build with -tags tesseract")
}
