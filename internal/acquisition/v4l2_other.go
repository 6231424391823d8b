//go:build !linux

package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// V4L2Driver is only functional on Linux
type V4L2Driver struct{}

func NewV4L2Driver(rear, front string, width, height int, frameTimeout time.Duration, logger *slog.Logger) *V4L2Driver {
	return &V4L2Driver{}
}

func (d *V4L2Driver) DevicePath(facing models.Facing) (string, error) {
	return "", errors.New("camera capture requires Linux")
}

func (d *V4L2Driver) Open(ctx context.Context, path string) (Device, error) {
	return nil, errors.New("camera capture requires Linux")
}
