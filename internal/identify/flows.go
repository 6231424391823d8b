package identify

import (
	"context"
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/bookscan/internal/acquisition"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// OpenCamera opens a camera and waits for CaptureAndIdentify
func (o *Orchestrator) OpenCamera(ctx context.Context, facing models.Facing) (ScanSession, error) {
	ctx, gen := o.begin(ctx)

	stream, err := o.openStream(ctx, gen, facing)
	if err != nil {
		o.finish(gen)
		return ScanSession{Mode: models.ModeIdle}, err
	}
	if !o.hold(gen, device{mode: models.ModeCamera, stream: stream}) {
		return ScanSession{Mode: models.ModeIdle}, ErrSuperseded
	}
	o.setState(gen, StateAwaitingCapture)
	o.logger.Info("Camera ready for capture", "device", stream.Path(), "generation", gen)
	return o.Session(), nil
}

// CaptureAndIdentify captures a frame from the open camera, releases the
// camera and identifies the book from the recognized cover text.
func (o *Orchestrator) CaptureAndIdentify(ctx context.Context) (Result, error) {
	o.mu.Lock()
	if o.state != StateAwaitingCapture || o.device.stream == nil || o.device.mode != models.ModeCamera {
		o.mu.Unlock()
		return Result{}, acquisition.ErrNoActiveStream
	}
	stream := o.device.stream
	ctx, gen := o.advanceLocked(ctx)
	o.device.generation = gen
	o.state = StateExtracting
	o.mu.Unlock()
	defer o.finish(gen)
	defer o.releaseDevice(gen)

	img, err := o.deps.Camera.CaptureFrame(ctx, stream)
	o.releaseDevice(gen)
	if err != nil {
		if !o.current(gen) {
			return Result{}, ErrSuperseded
		}
		o.note(gen, NoteDeviceUnavailable, "Could not capture a frame from the camera.")
		return Result{}, fmt.Errorf("capture failed: %w", err)
	}
	return o.recognize(ctx, gen, img)
}

// ScanBarcode scans a live camera stream until a barcode is found, then
// releases the camera and looks up the decoded ISBN.
func (o *Orchestrator) ScanBarcode(ctx context.Context, facing models.Facing) (Result, error) {
	ctx, gen := o.begin(ctx)
	defer o.finish(gen)

	stream, err := o.openStream(ctx, gen, facing)
	if err != nil {
		return Result{}, err
	}
	scanner := o.deps.NewScanner()
	if !o.hold(gen, device{mode: models.ModeBarcode, stream: stream, scanner: scanner}) {
		return Result{}, ErrSuperseded
	}
	defer o.releaseDevice(gen)
	o.setState(gen, StateAwaitingCapture)

	symbol, err := scanner.Start(ctx, stream).Wait(ctx)
	o.releaseDevice(gen)
	if !o.current(gen) {
		return Result{}, ErrSuperseded
	}
	if err != nil {
		o.note(gen, NoteBarcode, "Barcode scanning failed. Try again or enter the ISBN manually.")
		return Result{}, fmt.Errorf("barcode scan failed: %w", err)
	}

	o.logger.Info("Barcode scanned", "code", symbol.Text, "generation", gen)
	result := Result{Symbol: &symbol}
	return o.resolveISBN(ctx, gen, result, symbol.Text, false)
}

// IdentifyImage identifies a book from a still photograph, preferring a
// barcode in the picture over recognized text.
func (o *Orchestrator) IdentifyImage(ctx context.Context, img models.RawImage) (Result, error) {
	ctx, gen := o.begin(ctx)
	defer o.finish(gen)

	if img.Empty() {
		o.note(gen, NoteUnsupportedFormat, "The uploaded file is not an image.")
		return Result{}, acquisition.ErrUnsupportedFormat
	}
	o.setState(gen, StateExtracting)

	symbol, err := o.deps.Decoder.DecodeStill(ctx, img)
	if err != nil {
		o.logger.Warn("Barcode decoding failed, falling back to text recognition", "err", err)
	}
	if symbol != nil {
		if !o.current(gen) {
			return Result{}, ErrSuperseded
		}
		return o.resolveISBN(ctx, gen, Result{Symbol: symbol}, symbol.Text, false)
	}
	return o.recognize(ctx, gen, img)
}

// LookupISBN resolves a typed ISBN. Its result overwrites edited fields.
func (o *Orchestrator) LookupISBN(ctx context.Context, isbn string) (Result, error) {
	ctx, gen := o.begin(ctx)
	defer o.finish(gen)
	return o.resolveISBN(ctx, gen, Result{}, isbn, true)
}

// SearchTitleAuthor searches by title and author and applies the best
// candidate. Its result overwrites edited fields.
func (o *Orchestrator) SearchTitleAuthor(ctx context.Context, title, author string) (Result, error) {
	ctx, gen := o.begin(ctx)
	defer o.finish(gen)

	o.setState(gen, StateResolving)
	candidates, err := o.deps.Resolver.ResolveByTitleAuthor(ctx, title, author)
	if err != nil {
		return Result{}, err
	}
	result := Result{Candidates: candidates}
	if len(candidates) == 0 {
		if !o.current(gen) {
			return result, ErrSuperseded
		}
		o.note(gen, NoteNotFound, "No matching books were found.")
		return result, nil
	}

	result.Metadata = candidates[0]
	if !o.apply(gen, func(f *Form) { f.merge(candidates[0], true) }) {
		return result, ErrSuperseded
	}
	return result, nil
}

func (o *Orchestrator) openStream(ctx context.Context, gen uint64, facing models.Facing) (*acquisition.Stream, error) {
	if o.deps.Camera == nil {
		o.note(gen, NoteDeviceUnavailable, "No camera is available.")
		return nil, acquisition.ErrDeviceUnavailable
	}
	stream, err := o.deps.Camera.OpenCameraStream(ctx, facing)
	if err != nil {
		if errors.Is(err, acquisition.ErrDeviceUnavailable) {
			o.note(gen, NoteDeviceUnavailable, "The camera is unavailable. Check permissions or close other scanners.")
		}
		return nil, err
	}
	return stream, nil
}

// recognize runs text recognition and extraction, then resolves the ISBN
// candidate or falls back to the extracted title and author.
func (o *Orchestrator) recognize(ctx context.Context, gen uint64, img models.RawImage) (Result, error) {
	o.setState(gen, StateExtracting)

	text, err := o.deps.Recognizer.Recognize(ctx, img)
	if !o.current(gen) {
		return Result{}, ErrSuperseded
	}
	if err != nil {
		o.note(gen, NoteRecognitionFailed, "Text recognition failed. Please enter the book details manually.")
		return Result{}, err
	}

	fields, err := o.deps.Extract(text)
	if err != nil {
		o.logger.Warn("Field extraction failed, continuing with empty fields", "err", err, "generation", gen)
	}
	result := Result{Fields: fields}
	o.logger.Info("Fields extracted", "title", fields.Title, "author", fields.Author, "isbn", fields.ISBNCandidate, "generation", gen)

	if fields.ISBNCandidate != "" {
		return o.resolveISBN(ctx, gen, result, fields.ISBNCandidate, false)
	}

	extracted := models.BookMetadata{Title: fields.Title, Author: fields.Author}
	if !o.apply(gen, func(f *Form) { f.merge(extracted, false) }) {
		return result, ErrSuperseded
	}
	o.note(gen, NoteNoISBN, "No ISBN was found. Check the title and author or enter the ISBN manually.")
	return result, nil
}

// resolveISBN performs the single lookup of a flow and merges its result.
// Extracted title and author fill in when the lookup returns nothing.
func (o *Orchestrator) resolveISBN(ctx context.Context, gen uint64, result Result, isbn string, overwrite bool) (Result, error) {
	if !o.setState(gen, StateResolving) {
		return result, ErrSuperseded
	}
	md, err := o.deps.Resolver.ResolveByISBN(ctx, isbn)
	if err != nil {
		return result, err
	}
	result.Metadata = md

	if md.IsEmpty() {
		md.Title, md.Author = result.Fields.Title, result.Fields.Author
	}
	if !o.apply(gen, func(f *Form) { f.merge(md, overwrite) }) {
		return result, ErrSuperseded
	}
	if result.Metadata.IsEmpty() {
		o.note(gen, NoteNotFound, "No details were found for this ISBN. Please complete the record manually.")
	}
	return result, nil
}
