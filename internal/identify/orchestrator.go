// Package identify sequences acquisition, barcode decoding, text recognition,
// field extraction and metadata resolution into one book identification
// flow per Orchestrator.
package identify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/bookscan/internal/acquisition"
	"github.com/lehigh-university-libraries/bookscan/internal/barcode"
	"github.com/lehigh-university-libraries/bookscan/internal/extract"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
	"github.com/lehigh-university-libraries/bookscan/internal/ocr"
	"github.com/lehigh-university-libraries/bookscan/internal/storage"
)

var (
	// ErrSuperseded is returned by a flow that was cancelled or replaced by a
	// newer one before its result could be applied
	ErrSuperseded = errors.New("identification cancelled or superseded")
	// ErrEmptyRecord is returned when saving a form with neither title nor ISBN
	ErrEmptyRecord = errors.New("record needs a title or an ISBN")
)

// State of an Orchestrator
type State int

const (
	StateIdle State = iota
	StateAwaitingCapture
	StateExtracting
	StateResolving
	StateFilled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCapture:
		return "awaiting_capture"
	case StateExtracting:
		return "extracting"
	case StateResolving:
		return "resolving"
	case StateFilled:
		return "filled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Camera opens and releases camera streams
type Camera interface {
	OpenCameraStream(ctx context.Context, preferred models.Facing) (*acquisition.Stream, error)
	CaptureFrame(ctx context.Context, stream *acquisition.Stream) (models.RawImage, error)
	CloseStream(stream *acquisition.Stream) error
}

// StillDecoder decodes barcodes in single images
type StillDecoder interface {
	DecodeStill(ctx context.Context, img models.RawImage) (*models.DecodedSymbol, error)
}

// Scanner samples a live stream for a barcode
type Scanner interface {
	Start(ctx context.Context, source barcode.FrameSource) *barcode.Detection
	Stop()
	Destroy()
}

// Recognizer turns an image into text
type Recognizer interface {
	Recognize(ctx context.Context, img models.RawImage) (string, error)
}

// Resolver looks up bibliographic metadata
type Resolver interface {
	ResolveByISBN(ctx context.Context, isbn string) (models.BookMetadata, error)
	ResolveByTitleAuthor(ctx context.Context, title, author string) ([]models.BookMetadata, error)
}

// RecordStore receives saved records
type RecordStore interface {
	AddBook(fields models.BookMetadata) string
	UpdateBook(id string, patch storage.Patch) error
}

// Deps are the collaborators of an Orchestrator. Resolver is required;
// everything else has a default except Camera, without which camera and
// barcode flows report the device as unavailable.
type Deps struct {
	Camera     Camera
	Decoder    StillDecoder
	NewScanner func() Scanner
	Recognizer Recognizer
	Extract    func(text string) (models.ExtractedFields, error)
	Resolver   Resolver
	Store      RecordStore
	Logger     *slog.Logger
}

// ScanSession describes the device an Orchestrator currently holds
type ScanSession struct {
	DeviceHandle string          `json:"deviceHandle,omitempty"`
	Active       bool            `json:"active"`
	Mode         models.ScanMode `json:"mode"`
}

// NoteKind classifies an outcome note
type NoteKind string

const (
	NoteDeviceUnavailable NoteKind = "device_unavailable"
	NoteUnsupportedFormat NoteKind = "unsupported_format"
	NoteRecognitionFailed NoteKind = "recognition_failed"
	NoteNoISBN            NoteKind = "no_isbn"
	NoteNotFound          NoteKind = "not_found"
	NoteBarcode           NoteKind = "barcode_failed"
)

// Note is a transient warning for the user about the last flow
type Note struct {
	Kind    NoteKind `json:"kind"`
	Message string   `json:"message"`
}

// Result is what a flow produced before it was merged into the form
type Result struct {
	Symbol     *models.DecodedSymbol `json:"symbol,omitempty"`
	Fields     models.ExtractedFields `json:"fields"`
	Metadata   models.BookMetadata    `json:"metadata"`
	Candidates []models.BookMetadata  `json:"candidates,omitempty"`
}

type device struct {
	generation uint64
	mode       models.ScanMode
	stream     *acquisition.Stream
	scanner    Scanner
}

// Orchestrator runs one identification flow at a time against one form.
// Starting a flow supersedes whatever flow was running.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	device     device
	form       *Form
	notes      []Note
	recordID   string
}

// New creates an orchestrator
func New(deps Deps) (*Orchestrator, error) {
	if deps.Resolver == nil {
		return nil, errors.New("identify: a metadata resolver is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Decoder == nil {
		deps.Decoder = barcode.NewDecoder(deps.Logger)
	}
	if deps.NewScanner == nil {
		decoder := barcode.NewDecoder(deps.Logger)
		logger := deps.Logger
		deps.NewScanner = func() Scanner { return barcode.NewScanner(decoder, 0, logger) }
	}
	if deps.Recognizer == nil {
		deps.Recognizer = ocr.NewRecognizer(ocr.NewStub(), deps.Logger)
	}
	if deps.Extract == nil {
		deps.Extract = extract.Parse
	}
	if deps.Store == nil {
		deps.Store = storage.New()
	}
	return &Orchestrator{
		deps:   deps,
		logger: deps.Logger.With("component", "identify"),
		form:   newForm(),
	}, nil
}

// State returns the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session describes the held device, if any
func (o *Orchestrator) Session() ScanSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionLocked()
}

func (o *Orchestrator) sessionLocked() ScanSession {
	if o.device.stream == nil && o.device.scanner == nil {
		return ScanSession{Mode: models.ModeIdle}
	}
	s := ScanSession{Active: true, Mode: o.device.mode}
	if o.device.stream != nil {
		s.DeviceHandle = o.device.stream.Path()
	}
	return s
}

// Form returns a snapshot of the form
func (o *Orchestrator) Form() Form {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.form.clone()
}

// Notes returns the warnings raised by the last flow
func (o *Orchestrator) Notes() []Note {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Note(nil), o.notes...)
}

// RecordID returns the id assigned by the first Save, if any
func (o *Orchestrator) RecordID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recordID
}

// Edit sets a field by hand. Later automatic merges leave it alone.
func (o *Orchestrator) Edit(field Field, value string) error {
	if _, err := ParseField(string(field)); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.form.set(field, value)
	return nil
}

// Save hands the merged form to the record store, adding it the first time
// and updating it afterwards. A successful save supersedes the running flow
// so a late result cannot overwrite what was saved.
func (o *Orchestrator) Save(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	o.mu.Lock()

	values := o.form.Values()
	if values.Title == "" && values.ISBN == "" {
		o.mu.Unlock()
		return "", ErrEmptyRecord
	}
	if o.recordID == "" {
		o.recordID = o.deps.Store.AddBook(values)
		o.logger.Info("Book added", "id", o.recordID, "title", values.Title)
	} else {
		if err := o.deps.Store.UpdateBook(o.recordID, storage.Patch{Metadata: &values}); err != nil {
			o.mu.Unlock()
			return "", fmt.Errorf("failed to update book %s: %w", o.recordID, err)
		}
		o.logger.Info("Book updated", "id", o.recordID, "title", values.Title)
	}
	id := o.recordID
	dev := o.stopLocked()
	o.mu.Unlock()

	o.release(dev)
	return id, nil
}

// Cancel abandons the running flow. Sampling stops and the device is
// released before Cancel returns; a late result from the abandoned flow is
// discarded.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	dev := o.stopLocked()
	gen := o.generation
	o.mu.Unlock()

	o.release(dev)
	o.logger.Info("Identification cancelled", "generation", gen)
}

// stopLocked makes the running flow stale and cancels it. The caller
// releases the returned device after unlocking.
func (o *Orchestrator) stopLocked() device {
	o.generation++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state = StateIdle
	return o.takeDeviceLocked(0)
}

// Reset cancels any flow and starts a new, empty record
func (o *Orchestrator) Reset() {
	o.Cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.form = newForm()
	o.notes = nil
	o.recordID = ""
}

// Close releases everything the orchestrator holds
func (o *Orchestrator) Close() {
	o.Cancel()
}

// begin supersedes the running flow and releases its device
func (o *Orchestrator) begin(ctx context.Context) (context.Context, uint64) {
	o.mu.Lock()
	flowCtx, gen := o.advanceLocked(ctx)
	dev := o.takeDeviceLocked(0)
	o.state = StateIdle
	o.mu.Unlock()

	o.release(dev)
	return flowCtx, gen
}

func (o *Orchestrator) advanceLocked(ctx context.Context) (context.Context, uint64) {
	o.generation++
	if o.cancel != nil {
		o.cancel()
	}
	flowCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.notes = nil
	return flowCtx, o.generation
}

// finish ends a flow, leaving its state in place if it is still current
func (o *Orchestrator) finish(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.state != StateFilled && o.state != StateAwaitingCapture {
		o.state = StateIdle
	}
}

func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.generation
}

func (o *Orchestrator) setState(gen uint64, s State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return false
	}
	o.state = s
	return true
}

func (o *Orchestrator) note(gen uint64, kind NoteKind, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return
	}
	o.notes = append(o.notes, Note{Kind: kind, Message: message})
}

// apply runs fn against the form only if gen is still current
func (o *Orchestrator) apply(gen uint64, fn func(f *Form)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		o.logger.Info("Discarding stale result", "generation", gen, "current", o.generation)
		return false
	}
	fn(o.form)
	o.state = StateFilled
	return true
}

// hold records dev as owned by flow gen. A stale flow gets its fresh
// device released instead.
func (o *Orchestrator) hold(gen uint64, dev device) bool {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		o.release(dev)
		return false
	}
	dev.generation = gen
	o.device = dev
	o.mu.Unlock()
	return true
}

// releaseDevice releases the device held by flow gen, if it still holds one
func (o *Orchestrator) releaseDevice(gen uint64) {
	o.mu.Lock()
	dev := o.takeDeviceLocked(gen)
	o.mu.Unlock()
	o.release(dev)
}

// takeDeviceLocked detaches the held device. A non-zero gen only detaches a
// device owned by that generation.
func (o *Orchestrator) takeDeviceLocked(gen uint64) device {
	if gen != 0 && o.device.generation != gen {
		return device{}
	}
	dev := o.device
	o.device = device{}
	return dev
}

func (o *Orchestrator) release(dev device) {
	if dev.scanner != nil {
		dev.scanner.Stop()
		dev.scanner.Destroy()
	}
	if dev.stream != nil && o.deps.Camera != nil {
		_ = o.deps.Camera.CloseStream(dev.stream)
	}
	if dev.scanner != nil || dev.stream != nil {
		o.logger.Info("Device released", "mode", dev.mode, "generation", dev.generation)
	}
}
