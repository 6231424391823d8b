package mjpeg

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// stripDHT removes every DHT segment ahead of the first SOS, as UVC cameras
// do when sending MJPEG
func stripDHT(t *testing.T, data []byte) []byte {
	t.Helper()
	out := append([]byte{}, data[:2]...)
	i := 2
	for i+4 <= len(data) {
		marker := data[i+1]
		if marker == markerSOS {
			return append(out, data[i:]...)
		}
		length := int(data[i+2])<<8 | int(data[i+3])
		if marker != markerDHT {
			out = append(out, data[i:i+2+length]...)
		}
		i += 2 + length
	}
	t.Fatal("no SOS marker in encoded JPEG")
	return nil
}

func colorImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	return img
}

func grayImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 24, 24))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}
	return img
}

func TestDefaultDHTSegment(t *testing.T) {
	if len(defaultDHT) != 2+0x01a2 {
		t.Fatalf("Expected a 420 byte segment, got %d", len(defaultDHT))
	}
	if defaultDHT[2] != 0x01 || defaultDHT[3] != 0xa2 {
		t.Errorf("Unexpected segment length % x", defaultDHT[2:4])
	}
	for _, tbl := range defaultTables {
		total := 0
		for _, c := range tbl.counts {
			total += int(c)
		}
		if total != len(tbl.values) {
			t.Errorf("Table %#02x: counts sum to %d but has %d values", tbl.class, total, len(tbl.values))
		}
	}
}

func TestFillHuffmanTablesRestoresStrippedFrame(t *testing.T) {
	original := encodeJPEG(t, colorImage())
	stripped := stripDHT(t, original)
	if bytes.Contains(stripped, []byte{markerPrefix, markerDHT}) {
		t.Fatal("DHT still present after stripping")
	}
	if _, err := jpeg.Decode(bytes.NewReader(stripped)); err == nil {
		t.Fatal("Expected a frame without Huffman tables to be undecodable")
	}

	filled := FillHuffmanTables(stripped)
	// image/jpeg writes the same tables in the same place
	if !bytes.Equal(filled, original) {
		t.Error("Filled frame differs from the encoder's output")
	}
	img, err := jpeg.Decode(bytes.NewReader(filled))
	if err != nil {
		t.Fatalf("Unexpected decode error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("Unexpected bounds %v", b)
	}
}

func TestFillHuffmanTablesGrayscale(t *testing.T) {
	original := encodeJPEG(t, grayImage())
	want, err := jpeg.Decode(bytes.NewReader(original))
	if err != nil {
		t.Fatal(err)
	}

	got, err := jpeg.Decode(bytes.NewReader(FillHuffmanTables(stripDHT(t, original))))
	if err != nil {
		t.Fatalf("Unexpected decode error: %v", err)
	}
	wantGray, ok1 := want.(*image.Gray)
	gotGray, ok2 := got.(*image.Gray)
	if !ok1 || !ok2 {
		t.Fatalf("Expected grayscale images, got %T and %T", want, got)
	}
	if !bytes.Equal(wantGray.Pix, gotGray.Pix) {
		t.Error("Pixels differ after restoring tables")
	}
}

func TestFillHuffmanTablesLeavesOtherDataAlone(t *testing.T) {
	complete := encodeJPEG(t, colorImage())
	tests := []struct {
		name string
		data []byte
	}{
		{"frame with tables", complete},
		{"empty", nil},
		{"png signature", []byte("\x89PNG\r\n\x1a\n")},
		{"truncated header", []byte{0xff, 0xd8, 0xff, 0xdb, 0x00}},
		{"garbage after SOI", []byte{0xff, 0xd8, 0x00, 0x01, 0x02, 0x03}},
		{"bad segment length", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x01, 0xff, 0xda}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FillHuffmanTables(tt.data)
			if !bytes.Equal(got, tt.data) {
				t.Errorf("Expected data unchanged, got % x", got)
			}
		})
	}
}
