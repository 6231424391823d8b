package barcode

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

func encode(t *testing.T, writer gozxing.Writer, contents string, format gozxing.BarcodeFormat) models.RawImage {
	t.Helper()
	matrix, err := writer.Encode(contents, format, 400, 120, nil)
	if err != nil {
		t.Fatalf("Failed to encode %s: %v", contents, err)
	}
	return toPNG(t, matrixImage(matrix))
}

func matrixImage(m *gozxing.BitMatrix) image.Image {
	// pad with a quiet zone of white rows so the symbol sits mid-frame
	img := image.NewGray(image.Rect(0, 0, m.GetWidth(), m.GetHeight()+40))
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	for y := 0; y < m.GetHeight(); y++ {
		for x := 0; x < m.GetWidth(); x++ {
			if m.Get(x, y) {
				img.SetGray(x, y+20, color.Gray{Y: 0})
			}
		}
	}
	return img
}

func blank(t *testing.T) models.RawImage {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 320, 240))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return toPNG(t, img)
}

func toPNG(t *testing.T, img image.Image) models.RawImage {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	b := img.Bounds()
	return models.RawImage{Data: buf.Bytes(), MIMEType: "image/png", Width: b.Dx(), Height: b.Dy()}
}

func TestDecodeStill(t *testing.T) {
	tests := []struct {
		name      string
		image     func(t *testing.T) models.RawImage
		want      string
		symbology models.Symbology
	}{
		{
			name: "EAN-13 ISBN",
			image: func(t *testing.T) models.RawImage {
				return encode(t, oned.NewEAN13Writer(), "9787020002207", gozxing.BarcodeFormat_EAN_13)
			},
			want:      "9787020002207",
			symbology: models.SymbologyEAN13,
		},
		{
			name: "EAN-8",
			image: func(t *testing.T) models.RawImage {
				return encode(t, oned.NewEAN8Writer(), "96385074", gozxing.BarcodeFormat_EAN_8)
			},
			want:      "96385074",
			symbology: models.SymbologyEAN8,
		},
		{
			name: "Code128",
			image: func(t *testing.T) models.RawImage {
				return encode(t, oned.NewCode128Writer(), "BOOK-42", gozxing.BarcodeFormat_CODE_128)
			},
			want:      "BOOK-42",
			symbology: models.SymbologyCode128,
		},
	}

	d := NewDecoder(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.DecodeStill(context.Background(), tt.image(t))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got == nil {
				t.Fatal("Expected a symbol, got none")
			}
			if got.Text != tt.want || got.Symbology != tt.symbology {
				t.Errorf("Got %+v, want %s %s", *got, tt.want, tt.symbology)
			}
		})
	}
}

func TestDecodeStillNoBarcode(t *testing.T) {
	got, err := NewDecoder(nil).DecodeStill(context.Background(), blank(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected no symbol, got %+v", *got)
	}
}

// headerlessMJPEG encodes contents as a JPEG and drops its DHT segments, the
// way many UVC cameras send MJPEG frames
func headerlessMJPEG(t *testing.T, contents string) models.RawImage {
	t.Helper()
	matrix, err := oned.NewEAN13Writer().Encode(contents, gozxing.BarcodeFormat_EAN_13, 400, 120, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, matrixImage(matrix), &jpeg.Options{Quality: 100}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	out := append([]byte{}, data[:2]...)
	for i := 2; i+4 <= len(data); {
		marker := data[i+1]
		if marker == 0xda {
			out = append(out, data[i:]...)
			break
		}
		length := int(data[i+2])<<8 | int(data[i+3])
		if marker != 0xc4 {
			out = append(out, data[i:i+2+length]...)
		}
		i += 2 + length
	}
	if bytes.Contains(out, []byte{0xff, 0xc4}) {
		t.Fatal("DHT segment survived")
	}
	return models.RawImage{Data: out, MIMEType: "image/jpeg", Source: "camera"}
}

func TestDecodeStillHeaderlessMJPEG(t *testing.T) {
	img := headerlessMJPEG(t, "9787020002207")
	if _, err := jpeg.Decode(bytes.NewReader(img.Data)); err == nil {
		t.Fatal("Expected image/jpeg to reject a frame without Huffman tables")
	}

	got, err := NewDecoder(nil).DecodeStill(context.Background(), img)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got == nil || got.Text != "9787020002207" || got.Symbology != models.SymbologyEAN13 {
		t.Errorf("Unexpected symbol %+v", got)
	}
}

func TestScannerDetectsInHeaderlessMJPEG(t *testing.T) {
	src := &frameSource{hitAfter: 2, hit: headerlessMJPEG(t, "9787536692930"), miss: blank(t)}
	s := NewScanner(NewDecoder(nil), 5*time.Millisecond, nil)
	defer s.Destroy()

	sym, err := wait(t, s.Start(context.Background(), src))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sym.Text != "9787536692930" {
		t.Errorf("Expected 9787536692930, got %s", sym.Text)
	}
}

func TestDecodeStillUnreadableImage(t *testing.T) {
	d := NewDecoder(nil)
	if _, err := d.DecodeStill(context.Background(), models.RawImage{}); err == nil {
		t.Error("Expected error for empty image")
	}
	if _, err := d.DecodeStill(context.Background(), models.RawImage{Data: []byte("not an image")}); err == nil {
		t.Error("Expected error for garbage bytes")
	}
}

// frameSource serves blank frames until hitAfter captures, then the barcode
type frameSource struct {
	mu       sync.Mutex
	captures int
	hitAfter int
	hit      models.RawImage
	miss     models.RawImage
	err      error
}

func (f *frameSource) Capture(ctx context.Context) (models.RawImage, error) {
	if err := ctx.Err(); err != nil {
		return models.RawImage{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	if f.err != nil {
		return models.RawImage{}, f.err
	}
	if f.hitAfter > 0 && f.captures >= f.hitAfter {
		return f.hit, nil
	}
	return f.miss, nil
}

func (f *frameSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

func wait(t *testing.T, det *Detection) (models.DecodedSymbol, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sym, err := det.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("Detection did not resolve")
	}
	return sym, err
}

func TestScannerDetectsOnce(t *testing.T) {
	src := &frameSource{
		hitAfter: 3,
		hit:      encode(t, oned.NewEAN13Writer(), "9787020002207", gozxing.BarcodeFormat_EAN_13),
		miss:     blank(t),
	}
	s := NewScanner(NewDecoder(nil), 5*time.Millisecond, nil)
	det := s.Start(context.Background(), src)

	sym, err := wait(t, det)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sym.Text != "9787020002207" {
		t.Errorf("Expected 9787020002207, got %s", sym.Text)
	}

	s.Stop()
	if s.State() != StateDetected {
		t.Errorf("Expected detected state, got %s", s.State())
	}
	captured := src.count()
	time.Sleep(30 * time.Millisecond)
	if src.count() != captured {
		t.Error("Scanner kept sampling after detection")
	}
}

func TestScannerStopResolvesPending(t *testing.T) {
	src := &frameSource{miss: blank(t)}
	s := NewScanner(NewDecoder(nil), 5*time.Millisecond, nil)
	det := s.Start(context.Background(), src)

	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()

	if _, err := wait(t, det); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("Expected stopped state, got %s", s.State())
	}
	captured := src.count()
	time.Sleep(30 * time.Millisecond)
	if src.count() != captured {
		t.Error("Scanner kept sampling after stop")
	}
}

func TestScannerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScanner(NewDecoder(nil), 5*time.Millisecond, nil)
	det := s.Start(ctx, &frameSource{miss: blank(t)})
	cancel()

	if _, err := wait(t, det); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
}

func TestScannerSourceFailure(t *testing.T) {
	s := NewScanner(NewDecoder(nil), 5*time.Millisecond, nil)
	det := s.Start(context.Background(), &frameSource{err: errors.New("device unplugged")})

	_, err := wait(t, det)
	if err == nil || errors.Is(err, ErrStopped) {
		t.Fatalf("Expected failure, got %v", err)
	}
	if s.State() != StateFailed {
		t.Errorf("Expected failed state, got %s", s.State())
	}

	// restart is allowed after failure
	src := &frameSource{hitAfter: 1, hit: encode(t, oned.NewEAN13Writer(), "9787536692930", gozxing.BarcodeFormat_EAN_13)}
	sym, err := wait(t, s.Start(context.Background(), src))
	if err != nil || sym.Text != "9787536692930" {
		t.Errorf("Restart failed: %+v %v", sym, err)
	}
}

func TestScannerNilSource(t *testing.T) {
	s := NewScanner(NewDecoder(nil), 0, nil)
	if _, err := wait(t, s.Start(context.Background(), nil)); err == nil {
		t.Error("Expected error for nil source")
	}
	if s.State() != StateFailed {
		t.Errorf("Expected failed state, got %s", s.State())
	}
}

func TestScannerBusy(t *testing.T) {
	s := NewScanner(NewDecoder(nil), 5*time.Millisecond, nil)
	defer s.Destroy()
	s.Start(context.Background(), &frameSource{miss: blank(t)})

	if _, err := wait(t, s.Start(context.Background(), &frameSource{miss: blank(t)})); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
}

func TestScannerDestroy(t *testing.T) {
	s := NewScanner(NewDecoder(nil), 5*time.Millisecond, nil)
	s.Stop()
	s.Destroy()
	s.Destroy()
	s.Stop()

	if _, err := wait(t, s.Start(context.Background(), &frameSource{miss: blank(t)})); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Expected ErrDestroyed, got %v", err)
	}
}

func TestStopConcurrentWithDetection(t *testing.T) {
	hit := encode(t, oned.NewEAN13Writer(), "9787020002207", gozxing.BarcodeFormat_EAN_13)
	for i := 0; i < 20; i++ {
		s := NewScanner(NewDecoder(nil), time.Millisecond, nil)
		det := s.Start(context.Background(), &frameSource{hitAfter: 1, hit: hit})

		s.Stop()
		<-det.Done()

		st := s.State()
		if st != StateStopped && st != StateDetected {
			t.Fatalf("Unexpected state %s", st)
		}
		s.Destroy()
	}
}
