package acquisition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// errCameraBusy is returned when the camera lock is already held
var errCameraBusy = errors.New("camera is already in use")

const cameraLockFile = "bookscan-camera.lock"

// Locker grants exclusive use of the cameras. One lock covers every device:
// whoever holds it may open any facing and nobody else may open any.
// Holders in this process are tracked in memory; other processes are
// excluded with a lock file.
type Locker struct {
	dir string

	mu   sync.Mutex
	held bool
}

// NewLocker creates a locker writing its lock file under dir
func NewLocker(dir string) *Locker {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Locker{dir: dir}
}

// Acquire takes the camera lock without waiting. The returned release func
// is safe to call more than once.
func (l *Locker) Acquire() (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return nil, errCameraBusy
	}

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	fl := flock.New(l.lockPath())
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock camera: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w by another process", errCameraBusy)
	}
	l.held = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			_ = fl.Unlock()
			l.held = false
		})
	}, nil
}

// Held reports whether this locker holds the camera lock
func (l *Locker) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *Locker) lockPath() string {
	return filepath.Join(l.dir, cameraLockFile)
}
