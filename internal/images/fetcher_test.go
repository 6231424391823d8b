package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/bookscan/internal/acquisition"
)

func TestFetch(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 12, 9))); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			_, _ = w.Write(buf.Bytes())
		case "/notes.txt":
			_, _ = w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewFetcher()

	img, err := f.Fetch(context.Background(), server.URL+"/cover.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if img.MIMEType != "image/png" || img.Width != 12 || img.Height != 9 {
		t.Errorf("Unexpected image %+v", img)
	}

	if _, err := f.Fetch(context.Background(), server.URL+"/notes.txt"); !errors.Is(err, acquisition.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), server.URL+"/missing.jpg"); err == nil {
		t.Error("Expected error for 404")
	}
}
