// Package acquisition opens cameras and loads still images.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

var (
	// ErrDeviceUnavailable covers permission denied, missing hardware and a
	// device already held elsewhere
	ErrDeviceUnavailable = errors.New("camera unavailable")
	// ErrNoActiveStream is returned when capturing from a closed stream
	ErrNoActiveStream = errors.New("no active camera stream")
	// ErrUnsupportedFormat is returned for uploads that are not a known image type
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Device is an open camera producing encoded frames
type Device interface {
	ReadFrame(ctx context.Context) (models.RawImage, error)
	Close() error
}

// Driver maps facings to devices and opens them
type Driver interface {
	DevicePath(facing models.Facing) (string, error)
	Open(ctx context.Context, path string) (Device, error)
}

// Acquirer hands out camera streams. At most one stream exists across every
// Acquirer sharing a lock directory.
type Acquirer struct {
	driver Driver
	locker *Locker
	logger *slog.Logger
}

// New creates an acquirer
func New(driver Driver, locker *Locker, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{
		driver: driver,
		locker: locker,
		logger: logger.With("component", "acquisition"),
	}
}

// Stream is an open camera. It is safe for concurrent use; frames are read
// one at a time.
type Stream struct {
	facing  models.Facing
	path    string
	device  Device
	release func()

	mu     sync.Mutex
	closed bool
}

// Facing returns the camera direction actually opened
func (s *Stream) Facing() models.Facing {
	return s.facing
}

// Path returns the device path
func (s *Stream) Path() string {
	return s.path
}

// Active reports whether the stream is still open
func (s *Stream) Active() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Capture snapshots the current frame
func (s *Stream) Capture(ctx context.Context) (models.RawImage, error) {
	if s == nil {
		return models.RawImage{}, ErrNoActiveStream
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.RawImage{}, ErrNoActiveStream
	}
	img, err := s.device.ReadFrame(ctx)
	if err != nil {
		return models.RawImage{}, fmt.Errorf("failed to capture frame from %s: %w", s.path, err)
	}
	img.Source = "camera"
	return img, nil
}

// Close stops the device and releases its lock. Idempotent.
func (s *Stream) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.device.Close()
	s.release()
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", s.path, err)
	}
	return nil
}

// OpenCameraStream opens the preferred camera, falling back once to the
// other facing when the preferred one cannot be found or opened. The camera
// lock is taken first; if another holder has it the call fails at once.
func (a *Acquirer) OpenCameraStream(ctx context.Context, preferred models.Facing) (*Stream, error) {
	if preferred == "" {
		preferred = models.FacingEnvironment
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	release, err := a.locker.Acquire()
	if err != nil {
		a.logger.Warn("Camera lock not acquired", "facing", preferred, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	var lastErr error
	for _, facing := range []models.Facing{preferred, preferred.Opposite()} {
		if err := ctx.Err(); err != nil {
			release()
			return nil, err
		}
		stream, err := a.open(ctx, facing, release)
		if err == nil {
			a.logger.Info("Camera stream opened", "facing", facing, "device", stream.path)
			return stream, nil
		}
		a.logger.Warn("Failed to open camera", "facing", facing, "err", err)
		lastErr = err
	}
	release()
	return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, lastErr)
}

func (a *Acquirer) open(ctx context.Context, facing models.Facing, release func()) (*Stream, error) {
	path, err := a.driver.DevicePath(facing)
	if err != nil {
		return nil, err
	}
	device, err := a.driver.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Stream{facing: facing, path: path, device: device, release: release}, nil
}

// CaptureFrame snapshots the current frame of stream
func (a *Acquirer) CaptureFrame(ctx context.Context, stream *Stream) (models.RawImage, error) {
	return stream.Capture(ctx)
}

// CloseStream releases the device. A nil or closed stream is a no-op.
func (a *Acquirer) CloseStream(stream *Stream) error {
	if err := stream.Close(); err != nil {
		a.logger.Warn("Error closing camera stream", "err", err)
		return err
	}
	return nil
}
