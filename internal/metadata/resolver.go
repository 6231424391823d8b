package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

const (
	// DefaultTimeout bounds every lookup
	DefaultTimeout = 5 * time.Second
	// SearchLimit is the number of candidates requested for title/author searches
	SearchLimit = 5
)

// ErrInvalidArgument is returned for lookups with nothing to look up
var ErrInvalidArgument = errors.New("invalid argument")

// Resolver wraps a Provider with timeouts and failure absorption. Network,
// timeout and parse failures never reach the caller; they produce an empty
// record or an empty candidate list.
type Resolver struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewResolver creates a resolver. A zero timeout selects DefaultTimeout.
func NewResolver(provider Provider, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider: provider,
		timeout:  timeout,
		logger:   logger.With("component", "metadata", "provider", provider.Name()),
	}
}

// EmptyMetadata is the fallback record: every field blank except the ISBN
func EmptyMetadata(isbn string) models.BookMetadata {
	return models.BookMetadata{ISBN: isbn}
}

// ResolveByISBN looks up a single ISBN. The provider is queried with the
// separators stripped; when it has no ISBN to offer, the caller's input is
// echoed back trimmed but otherwise as given. The returned ISBN is never
// empty.
func (r *Resolver) ResolveByISBN(ctx context.Context, isbn string) (models.BookMetadata, error) {
	trimmed := strings.TrimSpace(isbn)
	if trimmed == "" {
		return models.BookMetadata{}, fmt.Errorf("%w: isbn must not be empty", ErrInvalidArgument)
	}
	cleaned := CleanISBN(trimmed)
	if cleaned == "" {
		cleaned = trimmed
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	book, err := r.provider.LookupISBN(ctx, cleaned)
	if err != nil {
		r.logger.Warn("ISBN lookup failed, falling back to manual entry", "isbn", cleaned, "duration", time.Since(start), "err", err)
		return EmptyMetadata(trimmed), nil
	}
	if book.ISBN == "" {
		book.ISBN = trimmed
	}

	r.logger.Info("ISBN lookup succeeded", "isbn", book.ISBN, "title", book.Title, "duration", time.Since(start))
	return book, nil
}

// ResolveByTitleAuthor searches for up to SearchLimit candidates. The first
// candidate is the best guess.
func (r *Resolver) ResolveByTitleAuthor(ctx context.Context, title, author string) ([]models.BookMetadata, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" && author == "" {
		return nil, fmt.Errorf("%w: title and author must not both be empty", ErrInvalidArgument)
	}
	query := strings.TrimSpace(title + " " + author)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	candidates, err := r.provider.Search(ctx, query, SearchLimit)
	if err != nil {
		r.logger.Warn("Title/author search failed", "query", query, "duration", time.Since(start), "err", err)
		return []models.BookMetadata{}, nil
	}
	if len(candidates) > SearchLimit {
		candidates = candidates[:SearchLimit]
	}
	if candidates == nil {
		candidates = []models.BookMetadata{}
	}

	r.logger.Info("Title/author search finished", "query", query, "candidates", len(candidates), "duration", time.Since(start))
	return candidates, nil
}
