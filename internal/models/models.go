package models

import (
	"encoding/base64"
	"strings"
)

// RawImage is a still photograph or a captured video frame
type RawImage struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Source   string `json:"source"` // "upload", "camera"
}

// DataURI returns the image as a base64 data URI
func (i RawImage) DataURI() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Empty reports whether the image carries no pixel data
func (i RawImage) Empty() bool {
	return len(i.Data) == 0
}

// Symbology is the encoding scheme of a barcode
type Symbology string

const (
	SymbologyEAN13   Symbology = "EAN-13"
	SymbologyEAN8    Symbology = "EAN-8"
	SymbologyCode128 Symbology = "Code128"
)

// DecodedSymbol is the payload of one successful barcode detection
type DecodedSymbol struct {
	Text      string    `json:"text"`
	Symbology Symbology `json:"symbology"`
}

// ExtractedFields is the best guess structure pulled from recognized text.
// Every field is empty when nothing was found.
type ExtractedFields struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBNCandidate string `json:"isbnCandidate"`
	RawText       string `json:"rawText"`
}

// BookMetadata is the normalized record returned by a bibliographic lookup
type BookMetadata struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	PublishDate string `json:"publishDate"`
	Price       string `json:"price"`
	ISBN        string `json:"isbn"`
	Description string `json:"description"`
	Cover       string `json:"cover"`
}

// IsEmpty reports whether every field other than the ISBN is blank
func (m BookMetadata) IsEmpty() bool {
	for _, v := range []string{m.Title, m.Author, m.Publisher, m.PublishDate, m.Price, m.Description, m.Cover} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ScanMode identifies which device an orchestrator currently holds
type ScanMode string

const (
	ModeIdle    ScanMode = "idle"
	ModeCamera  ScanMode = "camera"
	ModeBarcode ScanMode = "barcode"
)

// Facing selects a camera by the direction it points
type Facing string

const (
	FacingEnvironment Facing = "environment" // rear
	FacingUser        Facing = "user"        // front
)

// Opposite returns the other facing
func (f Facing) Opposite() Facing {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}
