//go:build linux

package acquisition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/blackjack/webcam"

	"github.com/lehigh-university-libraries/bookscan/internal/mjpeg"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

func fourcc(code string) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(code[0]) | uint32(code[1])<<8 | uint32(code[2])<<16 | uint32(code[3])<<24)
}

var pixelFormatMJPEG = fourcc("MJPG")

// V4L2Driver opens Video4Linux cameras producing MJPEG frames
type V4L2Driver struct {
	Devices      map[models.Facing]string
	Width        uint32
	Height       uint32
	FrameTimeout time.Duration
	Logger       *slog.Logger
}

// NewV4L2Driver maps the rear and front cameras to device paths
func NewV4L2Driver(rear, front string, width, height int, frameTimeout time.Duration, logger *slog.Logger) *V4L2Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &V4L2Driver{
		Devices: map[models.Facing]string{
			models.FacingEnvironment: rear,
			models.FacingUser:        front,
		},
		Width:        uint32(width),
		Height:       uint32(height),
		FrameTimeout: frameTimeout,
		Logger:       logger,
	}
}

func (d *V4L2Driver) DevicePath(facing models.Facing) (string, error) {
	path := d.Devices[facing]
	if path == "" {
		return "", fmt.Errorf("no camera configured for facing %q", facing)
	}
	return path, nil
}

func (d *V4L2Driver) Open(ctx context.Context, path string) (Device, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if _, ok := cam.GetSupportedFormats()[pixelFormatMJPEG]; !ok {
		cam.Close()
		return nil, fmt.Errorf("%s does not support MJPEG", path)
	}
	_, w, h, err := cam.SetImageFormat(pixelFormatMJPEG, d.Width, d.Height)
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("failed to set image format on %s: %w", path, err)
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("failed to start streaming on %s: %w", path, err)
	}

	d.Logger.Debug("V4L2 device streaming", "device", path, "width", w, "height", h)
	return &v4l2Device{cam: cam, path: path, timeout: d.FrameTimeout}, nil
}

type v4l2Device struct {
	mu      sync.Mutex
	cam     *webcam.Webcam
	path    string
	timeout time.Duration
}

func (v *v4l2Device) ReadFrame(ctx context.Context) (models.RawImage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	seconds := uint32(v.timeout / time.Second)
	if seconds == 0 {
		seconds = 1
	}
	for {
		if err := ctx.Err(); err != nil {
			return models.RawImage{}, err
		}
		err := v.cam.WaitForFrame(seconds)
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			return models.RawImage{}, fmt.Errorf("timed out waiting for frame")
		}
		if err != nil {
			return models.RawImage{}, err
		}

		frame, err := v.cam.ReadFrame()
		if err != nil {
			return models.RawImage{}, err
		}
		if len(frame) == 0 {
			continue
		}

		// the driver reuses its mmap buffers
		data := make([]byte, len(frame))
		copy(data, frame)
		data = mjpeg.FillHuffmanTables(data)

		img := models.RawImage{Data: data, MIMEType: "image/jpeg"}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			img.Width, img.Height = cfg.Width, cfg.Height
		}
		return img, nil
	}
}

func (v *v4l2Device) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.cam.StopStreaming(); err != nil {
		v.cam.Close()
		return err
	}
	return v.cam.Close()
}
