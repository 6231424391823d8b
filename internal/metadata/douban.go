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

// Douban queries the Douban book API (v2)
type Douban struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

type doubanBook struct {
	Title     string   `json:"title"`
	Author    []string `json:"author"`
	Publisher string   `json:"publisher"`
	Pubdate   string   `json:"pubdate"`
	Price     string   `json:"price"`
	ISBN10    string   `json:"isbn10"`
	ISBN13    string   `json:"isbn13"`
	Summary   string   `json:"summary"`
	Image     string   `json:"image"`
}

// NewDouban creates a Douban provider
func NewDouban(baseURL, apiKey string, client *http.Client) *Douban {
	if baseURL == "" {
		baseURL = "https://api.douban.com"
	}
	return &Douban{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: client,
	}
}

func (d *Douban) Name() string { return "douban" }

// LookupISBN fetches /v2/book/isbn/{isbn}
func (d *Douban) LookupISBN(ctx context.Context, isbn string) (models.BookMetadata, error) {
	u := fmt.Sprintf("%s/v2/book/isbn/%s", d.BaseURL, url.PathEscape(isbn))
	if d.APIKey != "" {
		u += "?apikey=" + url.QueryEscape(d.APIKey)
	}

	var book doubanBook
	if err := getJSON(ctx, d.HTTPClient, u, &book); err != nil {
		return models.BookMetadata{}, fmt.Errorf("douban isbn lookup: %w", err)
	}
	return book.normalize(), nil
}

// Search fetches /v2/book/search?q=&count=
func (d *Douban) Search(ctx context.Context, query string, limit int) ([]models.BookMetadata, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))
	if d.APIKey != "" {
		params.Set("apikey", d.APIKey)
	}

	var resp struct {
		Books []doubanBook `json:"books"`
	}
	if err := getJSON(ctx, d.HTTPClient, d.BaseURL+"/v2/book/search?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("douban search: %w", err)
	}

	results := make([]models.BookMetadata, 0, len(resp.Books))
	for _, b := range resp.Books {
		results = append(results, b.normalize())
	}
	return results, nil
}

func (b doubanBook) normalize() models.BookMetadata {
	return models.BookMetadata{
		Title:       strings.TrimSpace(b.Title),
		Author:      JoinAuthors(b.Author),
		Publisher:   strings.TrimSpace(b.Publisher),
		PublishDate: strings.TrimSpace(b.Pubdate),
		Price:       NormalizePrice(b.Price),
		ISBN:        PreferISBN13(b.ISBN13, b.ISBN10),
		Description: strings.TrimSpace(b.Summary),
		Cover:       b.Image,
	}
}
