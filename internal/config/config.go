// Package config loads bookscan settings from the environment and an optional
// YAML file. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration
type Config struct {
	OCR      OCRConfig      `yaml:"ocr"`
	Metadata MetadataConfig `yaml:"metadata"`
	Camera   CameraConfig   `yaml:"camera"`
	Barcode  BarcodeConfig  `yaml:"barcode"`
}

// OCRConfig selects the text recognition engine
type OCRConfig struct {
	Engine    string `yaml:"engine"` // stub, tesseract, ollama, openai, gemini
	Model     string `yaml:"model"`
	Language  string `yaml:"language"`
	OllamaURL string `yaml:"ollama_url"`
	OpenAIKey string `yaml:"openai_api_key"`
	GeminiKey string `yaml:"gemini_api_key"`
}

// MetadataConfig selects the bibliographic service
type MetadataConfig struct {
	Provider string        `yaml:"provider"` // openlibrary, googlebooks, douban
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CameraConfig maps camera facings to V4L2 devices
type CameraConfig struct {
	RearDevice   string        `yaml:"rear_device"`
	FrontDevice  string        `yaml:"front_device"`
	LockDir      string        `yaml:"lock_dir"`
	Width        int           `yaml:"width"`
	Height       int           `yaml:"height"`
	FrameTimeout time.Duration `yaml:"frame_timeout"`
}

// BarcodeConfig tunes live barcode scanning
type BarcodeConfig struct {
	SampleInterval time.Duration `yaml:"sample_interval"`
}

var (
	ocrEngines        = map[string]bool{"stub": true, "tesseract": true, "ollama": true, "openai": true, "gemini": true}
	metadataProviders = map[string]bool{"openlibrary": true, "googlebooks": true, "douban": true}
)

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		OCR: OCRConfig{
			Engine:   "stub",
			Language: "chi_sim+eng",
		},
		Metadata: MetadataConfig{
			Provider: "openlibrary",
			Timeout:  5 * time.Second,
		},
		Camera: CameraConfig{
			RearDevice:   "/dev/video0",
			FrontDevice:  "/dev/video1",
			LockDir:      os.TempDir(),
			Width:        1280,
			Height:       720,
			FrameTimeout: 2 * time.Second,
		},
		Barcode: BarcodeConfig{
			SampleInterval: 150 * time.Millisecond,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.OCR.Engine, "OCR_ENGINE")
	setString(&c.OCR.Model, "OCR_MODEL")
	setString(&c.OCR.Language, "OCR_LANGUAGE")
	setString(&c.OCR.OllamaURL, "OLLAMA_URL")
	setString(&c.OCR.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.OCR.GeminiKey, "GEMINI_API_KEY")

	setString(&c.Metadata.Provider, "METADATA_PROVIDER")
	setString(&c.Metadata.BaseURL, "METADATA_BASE_URL")
	setString(&c.Metadata.APIKey, "METADATA_API_KEY")
	if c.Metadata.APIKey == "" && c.Metadata.Provider == "googlebooks" {
		setString(&c.Metadata.APIKey, "GOOGLE_BOOKS_API_KEY")
	}

	setString(&c.Camera.RearDevice, "CAMERA_REAR_DEVICE")
	setString(&c.Camera.FrontDevice, "CAMERA_FRONT_DEVICE")
	setString(&c.Camera.LockDir, "CAMERA_LOCK_DIR")

	for _, d := range []struct {
		dst *time.Duration
		key string
	}{
		{&c.Metadata.Timeout, "METADATA_TIMEOUT"},
		{&c.Camera.FrameTimeout, "CAMERA_FRAME_TIMEOUT"},
		{&c.Barcode.SampleInterval, "BARCODE_SAMPLE_INTERVAL"},
	} {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}
	for _, i := range []struct {
		dst *int
		key string
	}{
		{&c.Camera.Width, "CAMERA_WIDTH"},
		{&c.Camera.Height, "CAMERA_HEIGHT"},
	} {
		if err := setInt(i.dst, i.key); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks enumerated values and durations
func (c *Config) Validate() error {
	if !ocrEngines[c.OCR.Engine] {
		return fmt.Errorf("unsupported OCR engine: %s", c.OCR.Engine)
	}
	if !metadataProviders[c.Metadata.Provider] {
		return fmt.Errorf("unsupported metadata provider: %s", c.Metadata.Provider)
	}
	if c.Metadata.Timeout <= 0 {
		return fmt.Errorf("metadata timeout must be positive, got %s", c.Metadata.Timeout)
	}
	if c.Barcode.SampleInterval <= 0 {
		return fmt.Errorf("barcode sample interval must be positive, got %s", c.Barcode.SampleInterval)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}
