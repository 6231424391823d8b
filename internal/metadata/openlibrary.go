package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// OpenLibrary queries the Open Library Books and Search APIs
type OpenLibrary struct {
	BaseURL    string
	CoversURL  string
	HTTPClient *http.Client
}

// openLibraryBook is one entry of the Books API response with jscmd=data
type openLibraryBook struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate string `json:"publish_date"`
	Identifiers struct {
		ISBN10 []string `json:"isbn_10"`
		ISBN13 []string `json:"isbn_13"`
	} `json:"identifiers"`
	Notes any `json:"notes"`
	Cover struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"cover"`
}

type openLibraryDoc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	Publisher        []string `json:"publisher"`
	FirstPublishYear int      `json:"first_publish_year"`
	ISBN             []string `json:"isbn"`
	CoverID          int      `json:"cover_i"`
}

// NewOpenLibrary creates an Open Library provider
func NewOpenLibrary(baseURL string, client *http.Client) *OpenLibrary {
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	return &OpenLibrary{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		CoversURL:  "https://covers.openlibrary.org",
		HTTPClient: client,
	}
}

func (o *OpenLibrary) Name() string { return "openlibrary" }

// LookupISBN queries /api/books?bibkeys=ISBN:{isbn}&format=json&jscmd=data
func (o *OpenLibrary) LookupISBN(ctx context.Context, isbn string) (models.BookMetadata, error) {
	key := "ISBN:" + isbn
	u := fmt.Sprintf("%s/api/books?bibkeys=%s&format=json&jscmd=data", o.BaseURL, url.QueryEscape(key))

	var resp map[string]openLibraryBook
	if err := getJSON(ctx, o.HTTPClient, u, &resp); err != nil {
		return models.BookMetadata{}, fmt.Errorf("open library isbn lookup: %w", err)
	}
	book, ok := resp[key]
	if !ok {
		return models.BookMetadata{}, ErrNotFound
	}

	title := strings.TrimSpace(book.Title)
	if book.Subtitle != "" {
		title += ": " + strings.TrimSpace(book.Subtitle)
	}
	authors := make([]string, 0, len(book.Authors))
	for _, a := range book.Authors {
		authors = append(authors, a.Name)
	}
	publishers := make([]string, 0, len(book.Publishers))
	for _, p := range book.Publishers {
		publishers = append(publishers, p.Name)
	}
	cover := book.Cover.Large
	if cover == "" {
		cover = book.Cover.Medium
	}

	return models.BookMetadata{
		Title:       title,
		Author:      JoinAuthors(authors),
		Publisher:   first(publishers),
		PublishDate: strings.TrimSpace(book.PublishDate),
		ISBN:        PreferISBN13(first(book.Identifiers.ISBN13), first(book.Identifiers.ISBN10)),
		Description: notesText(book.Notes),
		Cover:       cover,
	}, nil
}

// Search queries /search.json
func (o *OpenLibrary) Search(ctx context.Context, query string, limit int) ([]models.BookMetadata, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", "title,author_name,publisher,first_publish_year,isbn,cover_i")

	var resp struct {
		Docs []openLibraryDoc `json:"docs"`
	}
	if err := getJSON(ctx, o.HTTPClient, o.BaseURL+"/search.json?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("open library search: %w", err)
	}

	results := make([]models.BookMetadata, 0, len(resp.Docs))
	for _, d := range resp.Docs {
		m := models.BookMetadata{
			Title:     strings.TrimSpace(d.Title),
			Author:    JoinAuthors(d.AuthorName),
			Publisher: first(d.Publisher),
			ISBN:      pickISBN(d.ISBN),
		}
		if d.FirstPublishYear > 0 {
			m.PublishDate = strconv.Itoa(d.FirstPublishYear)
		}
		if d.CoverID > 0 {
			m.Cover = fmt.Sprintf("%s/b/id/%d-L.jpg", o.CoversURL, d.CoverID)
		}
		results = append(results, m)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// pickISBN prefers the first 13 character ISBN in a mixed list
func pickISBN(isbns []string) string {
	var isbn10 string
	for _, v := range isbns {
		v = CleanISBN(v)
		switch len(v) {
		case 13:
			return v
		case 10:
			if isbn10 == "" {
				isbn10 = v
			}
		}
	}
	return isbn10
}

// notesText handles notes being either a string or {"type":..,"value":..}
func notesText(notes any) string {
	switch n := notes.(type) {
	case string:
		return strings.TrimSpace(n)
	case map[string]any:
		if v, ok := n["value"].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
