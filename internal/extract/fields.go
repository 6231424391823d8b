// Package extract turns raw recognized text from a book cover into best guess
// bibliographic fields. It performs no I/O and does no logging.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

var (
	// optional ISBN label, then a 978 prefixed run of digits with spaces or
	// hyphens, or a bare ten character ISBN
	isbnPattern = regexp.MustCompile(`(?i)(?:ISBN(?:-1[03])?)?\s*[:：-]?\s*(978(?:[\s-]*\d){10}|\b\d{9}[\dX]\b)`)

	latinMarker = regexp.MustCompile(`(?i)\bby\b`)
	cjkMarkers  = []string{"作者", "著"}

	separatorTrim = " \t:：,，;；/·-—"
)

// ErrExtraction is returned by Parse when the text could not be processed
var ErrExtraction = errors.New("field extraction failed")

// Fields extracts title, author and ISBN candidate from recognized text.
// Every field defaults to the empty string. Callers that want to report an
// extraction failure use Parse.
func Fields(text string) models.ExtractedFields {
	fields, _ := Parse(text)
	return fields
}

// Parse is Fields with the failure reported. On error the returned fields
// carry only RawText.
func Parse(text string) (fields models.ExtractedFields, err error) {
	defer func() {
		if r := recover(); r != nil {
			fields = models.ExtractedFields{RawText: text}
			err = fmt.Errorf("%w: %v", ErrExtraction, r)
		}
	}()

	lines := splitLines(text)
	return models.ExtractedFields{
		RawText:       text,
		Title:         Title(lines),
		Author:        Author(lines),
		ISBNCandidate: ISBN(lines),
	}, nil
}

var splitLines = func(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// Title returns the first non-blank line. Covers put the title first.
func Title(lines []string) string {
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// Author returns the first line carrying an authorship marker with the
// markers removed.
func Author(lines []string) string {
	for _, line := range lines {
		if !hasAuthorMarker(line) {
			continue
		}
		stripped := latinMarker.ReplaceAllString(line, " ")
		for _, m := range cjkMarkers {
			stripped = strings.ReplaceAll(stripped, m, " ")
		}
		return strings.Trim(strings.Join(strings.Fields(stripped), " "), separatorTrim)
	}
	return ""
}

func hasAuthorMarker(line string) bool {
	for _, m := range cjkMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return latinMarker.MatchString(line)
}

// ISBN returns the digits of the first ISBN looking sequence, separators
// removed.
func ISBN(lines []string) string {
	for _, line := range lines {
		folded := width.Fold.String(line)
		m := isbnPattern.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		return strings.ToUpper(stripSeparators(m[1]))
	}
	return ""
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
}
