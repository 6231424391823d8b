// Package barcode locates ISBN barcodes in still images and live camera
// streams. Decoding is restricted to the one-dimensional symbologies printed
// on books: EAN-13, EAN-8 and Code128.
package barcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/bookscan/internal/mjpeg"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

type symbologyReader struct {
	symbology models.Symbology
	newReader func() gozxing.Reader
}

// readers in the order they are tried
var readers = []symbologyReader{
	{models.SymbologyEAN13, oned.NewEAN13Reader},
	{models.SymbologyEAN8, oned.NewEAN8Reader},
	{models.SymbologyCode128, oned.NewCode128Reader},
}

// Decoder decodes single images. It holds no per-image state and is safe for
// concurrent use.
type Decoder struct {
	logger *slog.Logger
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewDecoder creates a decoder
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		logger: logger.With("component", "barcode"),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// DecodeStill decodes a single still image. It returns nil without error
// when no barcode is found; an error means the image itself is unreadable.
func (d *Decoder) DecodeStill(ctx context.Context, img models.RawImage) (*models.DecodedSymbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pixels, err := decodePixels(img)
	if err != nil {
		return nil, err
	}

	symbol := d.DecodeImage(pixels)
	if symbol == nil {
		d.logger.Info("No barcode detected in image")
		return nil, nil
	}
	d.logger.Info("Barcode decoding successful", "code", symbol.Text, "symbology", symbol.Symbology)
	return symbol, nil
}

// DecodeImage tries every supported symbology against img
func (d *Decoder) DecodeImage(img image.Image) *models.DecodedSymbol {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		d.logger.Debug("Failed to binarize image", "err", err)
		return nil
	}
	for _, r := range readers {
		result, err := r.newReader().Decode(bmp, d.hints)
		if err != nil || result == nil {
			continue
		}
		if text := result.GetText(); text != "" {
			return &models.DecodedSymbol{Text: text, Symbology: r.symbology}
		}
	}
	return nil
}

func decodePixels(img models.RawImage) (image.Image, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	pixels, _, err := image.Decode(bytes.NewReader(mjpeg.FillHuffmanTables(img.Data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return pixels, nil
}
