// Package metadata resolves ISBNs and title/author pairs into normalized book
// metadata using an external bibliographic service.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// Provider is one bibliographic service
type Provider interface {
	Name() string
	// LookupISBN returns the record for an exact ISBN match
	LookupISBN(ctx context.Context, isbn string) (models.BookMetadata, error)
	// Search returns at most limit records for a free-text query
	Search(ctx context.Context, query string, limit int) ([]models.BookMetadata, error)
}

// ErrNotFound is returned by providers when the service has no match
var ErrNotFound = errors.New("no matching book")

// NewProvider returns the provider registered under name. An empty baseURL
// selects the service's public endpoint.
func NewProvider(name, baseURL, apiKey string, client *http.Client) (Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	switch name {
	case "", "openlibrary":
		return NewOpenLibrary(baseURL, client), nil
	case "googlebooks":
		return NewGoogleBooks(baseURL, apiKey, client), nil
	case "douban":
		return NewDouban(baseURL, apiKey, client), nil
	default:
		return nil, fmt.Errorf("unsupported metadata provider: %s", name)
	}
}

// getJSON fetches url and decodes the JSON body into out. Empty and non-JSON
// bodies are errors.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
