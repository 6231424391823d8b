package acquisition

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/bookscan/internal/mjpeg"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

var formatMIMETypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// LoadStillImage validates an uploaded file and wraps it as a RawImage
func LoadStillImage(data []byte, name string) (models.RawImage, error) {
	if len(data) == 0 {
		return models.RawImage{}, fmt.Errorf("%w: %s is empty", ErrUnsupportedFormat, name)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.RawImage{}, fmt.Errorf("%w: %s: %w", ErrUnsupportedFormat, name, err)
	}
	mimeType, ok := formatMIMETypes[format]
	if !ok {
		return models.RawImage{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if format == "jpeg" {
		data = mjpeg.FillHuffmanTables(data)
	}
	return models.RawImage{
		Data:     data,
		MIMEType: mimeType,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Source:   "upload",
	}, nil
}

// LoadStillImage is also available on the Acquirer for callers holding one
func (a *Acquirer) LoadStillImage(data []byte, name string) (models.RawImage, error) {
	img, err := LoadStillImage(data, name)
	if err != nil {
		a.logger.Warn("Rejected still image", "name", name, "err", err)
		return models.RawImage{}, err
	}
	a.logger.Info("Loaded still image", "name", name, "mime_type", img.MIMEType, "width", img.Width, "height", img.Height)
	return img, nil
}
