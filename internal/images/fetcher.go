package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/lehigh-university-libraries/bookscan/internal/acquisition"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// MaxImageBytes caps downloads and uploads
const MaxImageBytes = 10 * 1024 * 1024

// Fetcher downloads book photos from URLs
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch downloads the image at url and validates it as a still image
func (f *Fetcher) Fetch(ctx context.Context, url string) (models.RawImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.RawImage{}, fmt.Errorf("invalid image URL: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return models.RawImage{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.RawImage{}, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return models.RawImage{}, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxImageBytes {
		return models.RawImage{}, fmt.Errorf("image too large (max %d bytes)", MaxImageBytes)
	}

	name := path.Base(req.URL.Path)
	img, err := acquisition.LoadStillImage(data, name)
	if err != nil {
		return models.RawImage{}, err
	}
	slog.Info("Downloaded image", "url", url, "bytes", len(data), "mime_type", img.MIMEType)
	return img, nil
}
