package barcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

var (
	// ErrStopped resolves a detection whose scan was stopped before a symbol was found
	ErrStopped = errors.New("barcode scanning stopped")
	// ErrDestroyed is returned when starting a destroyed scanner
	ErrDestroyed = errors.New("barcode scanner destroyed")
	// ErrBusy is returned when starting a scanner that is already scanning
	ErrBusy = errors.New("barcode scanner already scanning")
)

// State of a Scanner
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateScanning
	StateDetected
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateScanning:
		return "scanning"
	case StateDetected:
		return "detected"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FrameSource is a live stream the scanner samples
type FrameSource interface {
	Capture(ctx context.Context) (models.RawImage, error)
}

// Detection resolves at most once with the first symbol found, or with the
// error that ended the scan.
type Detection struct {
	once   sync.Once
	done   chan struct{}
	symbol models.DecodedSymbol
	err    error
}

func newDetection() *Detection {
	return &Detection{done: make(chan struct{})}
}

func (d *Detection) resolve(symbol models.DecodedSymbol, err error) bool {
	resolved := false
	d.once.Do(func() {
		d.symbol, d.err = symbol, err
		close(d.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the detection resolves
func (d *Detection) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the detection resolves or ctx ends
func (d *Detection) Wait(ctx context.Context) (models.DecodedSymbol, error) {
	select {
	case <-d.done:
		return d.symbol, d.err
	case <-ctx.Done():
		return models.DecodedSymbol{}, ctx.Err()
	}
}

// Scanner samples frames from a live stream until a barcode is found.
// A Scanner runs one session at a time.
type Scanner struct {
	decoder  *Decoder
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	loopDone  chan struct{}
	detection *Detection
	destroyed bool
}

// NewScanner creates a scanner sampling at interval
func NewScanner(decoder *Decoder, interval time.Duration, logger *slog.Logger) *Scanner {
	if interval <= 0 {
		interval = 150 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		decoder:  decoder,
		interval: interval,
		logger:   logger.With("component", "barcode_scanner"),
	}
}

// State returns the current state
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start binds the scanner to source and begins sampling. Failures resolve
// the returned detection with an error; Start itself never fails.
func (s *Scanner) Start(ctx context.Context, source FrameSource) *Detection {
	det := newDetection()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.destroyed:
		det.resolve(models.DecodedSymbol{}, ErrDestroyed)
		return det
	case s.state == StateInitializing || s.state == StateScanning:
		det.resolve(models.DecodedSymbol{}, ErrBusy)
		return det
	}

	s.logger.Info("Initializing barcode scanner...")
	s.state = StateInitializing
	s.detection = det
	if source == nil {
		s.failLocked(det, errors.New("no frame source"))
		return det
	}

	if s.cancel != nil {
		s.cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	go s.run(loopCtx, source, det, s.loopDone)
	return det
}

func (s *Scanner) run(ctx context.Context, source FrameSource, det *Detection, done chan struct{}) {
	defer close(done)

	frame, err := source.Capture(ctx)
	if err != nil {
		s.end(ctx, det, err)
		return
	}
	if !s.transition(det, StateInitializing, StateScanning) {
		return
	}
	s.logger.Info("Barcode scanning started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if pixels, err := decodePixels(frame); err == nil {
			if symbol := s.decoder.DecodeImage(pixels); symbol != nil {
				s.detected(det, *symbol)
				return
			}
		} else {
			s.logger.Debug("Skipping undecodable frame", "err", err)
		}

		select {
		case <-ctx.Done():
			s.end(ctx, det, ctx.Err())
			return
		case <-ticker.C:
		}

		frame, err = source.Capture(ctx)
		if err != nil {
			s.end(ctx, det, err)
			return
		}
	}
}

func (s *Scanner) transition(det *Detection, from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detection != det || s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Scanner) detected(det *Detection, symbol models.DecodedSymbol) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detection != det || s.state != StateScanning {
		return
	}
	s.state = StateDetected
	s.logger.Info("Barcode detected", "code", symbol.Text, "symbology", symbol.Symbology)
	det.resolve(symbol, nil)
}

// end resolves a session ended by cancellation or a source error
func (s *Scanner) end(ctx context.Context, det *Detection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detection != det || (s.state != StateInitializing && s.state != StateScanning) {
		return
	}
	if ctx.Err() != nil {
		s.state = StateStopped
		det.resolve(models.DecodedSymbol{}, fmt.Errorf("%w: %w", ErrStopped, ctx.Err()))
		return
	}
	s.failLocked(det, err)
}

func (s *Scanner) failLocked(det *Detection, err error) {
	s.state = StateFailed
	s.logger.Error("Barcode scanner failed", "err", err)
	det.resolve(models.DecodedSymbol{}, fmt.Errorf("barcode scanner failed: %w", err))
}

// Stop halts sampling and waits for the sampling goroutine to exit. It is
// safe in any state and idempotent.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if s.state == StateInitializing || s.state == StateScanning {
		s.state = StateStopped
		if s.detection != nil {
			s.detection.resolve(models.DecodedSymbol{}, ErrStopped)
		}
		s.logger.Info("Barcode scanning stopped")
	}
	cancel, done := s.cancel, s.loopDone
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Destroy stops scanning and detaches the scanner from its stream. A
// destroyed scanner cannot be restarted. Idempotent.
func (s *Scanner) Destroy() {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.detection = nil
	s.loopDone = nil
	s.logger.Info("Barcode scanner destroyed")
}
