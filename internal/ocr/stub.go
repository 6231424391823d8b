package ocr

import (
	"context"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// AdvisoryText is what the stub engine recognizes on every image. It reads
// as a placeholder title and author followed by a request for manual entry.
const AdvisoryText = "示例书名\n示例作者 著\n这是模拟的OCR识别结果。由于当前环境无法加载OCR服务，请手动输入图书信息。"

// Stub is the heuristic engine used when no recognition backend is
// configured. It never fails.
type Stub struct {
	Text string
}

// NewStub returns a stub engine answering with AdvisoryText
func NewStub() *Stub {
	return &Stub{Text: AdvisoryText}
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Init(context.Context) error { return nil }

func (s *Stub) Recognize(context.Context, models.RawImage) (string, error) {
	return s.Text, nil
}

func (s *Stub) Close() error { return nil }
