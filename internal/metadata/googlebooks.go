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

// GoogleBooks queries the Google Books volumes API
type GoogleBooks struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

type googleVolume struct {
	VolumeInfo struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks map[string]string `json:"imageLinks"`
	} `json:"volumeInfo"`
	SaleInfo struct {
		ListPrice struct {
			Amount       float64 `json:"amount"`
			CurrencyCode string  `json:"currencyCode"`
		} `json:"listPrice"`
	} `json:"saleInfo"`
}

// NewGoogleBooks creates a Google Books provider
func NewGoogleBooks(baseURL, apiKey string, client *http.Client) *GoogleBooks {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com"
	}
	return &GoogleBooks{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: client,
	}
}

func (g *GoogleBooks) Name() string { return "googlebooks" }

// LookupISBN queries volumes?q=isbn:{isbn} and returns the first volume
func (g *GoogleBooks) LookupISBN(ctx context.Context, isbn string) (models.BookMetadata, error) {
	volumes, err := g.volumes(ctx, "isbn:"+isbn, 1)
	if err != nil {
		return models.BookMetadata{}, fmt.Errorf("google books isbn lookup: %w", err)
	}
	if len(volumes) == 0 {
		return models.BookMetadata{}, ErrNotFound
	}
	return volumes[0].normalize(), nil
}

// Search queries volumes?q={query}
func (g *GoogleBooks) Search(ctx context.Context, query string, limit int) ([]models.BookMetadata, error) {
	volumes, err := g.volumes(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("google books search: %w", err)
	}
	results := make([]models.BookMetadata, 0, len(volumes))
	for _, v := range volumes {
		results = append(results, v.normalize())
	}
	return results, nil
}

func (g *GoogleBooks) volumes(ctx context.Context, q string, limit int) ([]googleVolume, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", strconv.Itoa(limit))
	if g.APIKey != "" {
		params.Set("key", g.APIKey)
	}

	var resp struct {
		Items []googleVolume `json:"items"`
	}
	if err := getJSON(ctx, g.HTTPClient, g.BaseURL+"/books/v1/volumes?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) > limit {
		resp.Items = resp.Items[:limit]
	}
	return resp.Items, nil
}

func (v googleVolume) normalize() models.BookMetadata {
	info := v.VolumeInfo
	title := strings.TrimSpace(info.Title)
	if info.Subtitle != "" {
		title += ": " + strings.TrimSpace(info.Subtitle)
	}

	var isbn13, isbn10 string
	for _, id := range info.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			isbn13 = id.Identifier
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}

	var price string
	if v.SaleInfo.ListPrice.Amount > 0 {
		price = strconv.FormatFloat(v.SaleInfo.ListPrice.Amount, 'f', 2, 64)
	}

	cover := info.ImageLinks["thumbnail"]
	if cover == "" {
		cover = info.ImageLinks["smallThumbnail"]
	}

	return models.BookMetadata{
		Title:       title,
		Author:      JoinAuthors(info.Authors),
		Publisher:   strings.TrimSpace(info.Publisher),
		PublishDate: strings.TrimSpace(info.PublishedDate),
		Price:       price,
		ISBN:        PreferISBN13(isbn13, isbn10),
		Description: strings.TrimSpace(info.Description),
		Cover:       cover,
	}
}
