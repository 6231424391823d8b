package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OCR_ENGINE", "OCR_MODEL", "OCR_LANGUAGE", "OLLAMA_URL", "OPENAI_API_KEY", "GEMINI_API_KEY",
		"METADATA_PROVIDER", "METADATA_BASE_URL", "METADATA_API_KEY", "GOOGLE_BOOKS_API_KEY", "METADATA_TIMEOUT",
		"CAMERA_REAR_DEVICE", "CAMERA_FRONT_DEVICE", "CAMERA_LOCK_DIR", "CAMERA_FRAME_TIMEOUT",
		"CAMERA_WIDTH", "CAMERA_HEIGHT", "BARCODE_SAMPLE_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OCR.Engine != "stub" {
		t.Errorf("Expected stub engine, got %s", cfg.OCR.Engine)
	}
	if cfg.Metadata.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %s", cfg.Metadata.Timeout)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bookscan.yaml")
	data := []byte(`
ocr:
  engine: tesseract
  language: eng
metadata:
  provider: douban
  timeout: 3s
camera:
  rear_device: /dev/video2
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("METADATA_PROVIDER", "googlebooks")
	t.Setenv("GOOGLE_BOOKS_API_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OCR.Engine != "tesseract" || cfg.OCR.Language != "eng" {
		t.Errorf("File OCR settings not applied: %+v", cfg.OCR)
	}
	if cfg.Metadata.Provider != "googlebooks" || cfg.Metadata.APIKey != "secret" {
		t.Errorf("Environment did not override file: %+v", cfg.Metadata)
	}
	if cfg.Metadata.Timeout != 3*time.Second {
		t.Errorf("Expected 3s timeout, got %s", cfg.Metadata.Timeout)
	}
	if cfg.Camera.RearDevice != "/dev/video2" || cfg.Camera.FrontDevice != "/dev/video1" {
		t.Errorf("Unexpected camera config: %+v", cfg.Camera)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"OCR_ENGINE", "abbyy"},
		{"METADATA_PROVIDER", "worldcat"},
		{"METADATA_TIMEOUT", "soon"},
		{"METADATA_TIMEOUT", "-1s"},
		{"CAMERA_WIDTH", "wide"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
