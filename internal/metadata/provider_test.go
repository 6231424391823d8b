package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

func serveJSON(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDoubanLookupISBN(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/v2/book/isbn/9787536692930": `{
			"title": "三体",
			"author": ["刘慈欣", "某译者"],
			"publisher": "重庆出版社",
			"pubdate": "2008-1",
			"price": "23.00元",
			"isbn10": "7536692935",
			"isbn13": "9787536692930",
			"summary": "文化大革命如火如荼进行的同时……",
			"image": "https://img.example/s2768378.jpg"
		}`,
	})

	got, err := NewDouban(srv.URL, "", srv.Client()).LookupISBN(context.Background(), "9787536692930")
	if err != nil {
		t.Fatal(err)
	}
	want := models.BookMetadata{
		Title:       "三体",
		Author:      "刘慈欣、某译者",
		Publisher:   "重庆出版社",
		PublishDate: "2008-1",
		Price:       "23.00",
		ISBN:        "9787536692930",
		Description: "文化大革命如火如荼进行的同时……",
		Cover:       "https://img.example/s2768378.jpg",
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestDoubanSearch(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/v2/book/search": `{"count": 2, "books": [
			{"title": "三体", "author": ["刘慈欣"], "isbn10": "7536692935"},
			{"title": "三体Ⅱ", "author": ["刘慈欣"], "isbn13": "9787536693968"}
		]}`,
	})

	got, err := NewDouban(srv.URL, "", srv.Client()).Search(context.Background(), "三体 刘慈欣", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(got))
	}
	if got[0].ISBN != "7536692935" || got[1].ISBN != "9787536693968" {
		t.Errorf("Unexpected ISBNs: %q %q", got[0].ISBN, got[1].ISBN)
	}
}

func TestNonJSONResponseIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>rate limited</html>"))
	}))
	defer srv.Close()

	if _, err := NewDouban(srv.URL, "", srv.Client()).LookupISBN(context.Background(), "1"); err == nil {
		t.Error("Expected error for non-JSON body")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer empty.Close()
	if _, err := NewGoogleBooks(empty.URL, "", empty.Client()).LookupISBN(context.Background(), "1"); err == nil {
		t.Error("Expected error for empty body")
	}
}

func TestOpenLibraryLookupISBN(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/api/books": `{"ISBN:9780306406157": {
			"title": "Tom Sawyer",
			"subtitle": "A Novel",
			"authors": [{"name": "Mark Twain"}],
			"publishers": [{"name": "Harper"}],
			"publish_date": "1876",
			"identifiers": {"isbn_10": ["0306406152"], "isbn_13": ["9780306406157"]},
			"notes": {"type": "/type/text", "value": "First edition."},
			"cover": {"large": "https://covers.example/L.jpg"}
		}}`,
	})

	got, err := NewOpenLibrary(srv.URL, srv.Client()).LookupISBN(context.Background(), "9780306406157")
	if err != nil {
		t.Fatal(err)
	}
	want := models.BookMetadata{
		Title:       "Tom Sawyer: A Novel",
		Author:      "Mark Twain",
		Publisher:   "Harper",
		PublishDate: "1876",
		ISBN:        "9780306406157",
		Description: "First edition.",
		Cover:       "https://covers.example/L.jpg",
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	if _, err := NewOpenLibrary(srv.URL, srv.Client()).LookupISBN(context.Background(), "123"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOpenLibrarySearch(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/search.json": `{"docs": [
			{"title": "Dune", "author_name": ["Frank Herbert"], "first_publish_year": 1965, "isbn": ["0441172717", "9780441172719"], "cover_i": 42}
		]}`,
	})

	ol := NewOpenLibrary(srv.URL, srv.Client())
	got, err := ol.Search(context.Background(), "Dune Herbert", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(got))
	}
	if got[0].ISBN != "9780441172719" || got[0].PublishDate != "1965" {
		t.Errorf("Unexpected result %+v", got[0])
	}
	if got[0].Cover != ol.CoversURL+"/b/id/42-L.jpg" {
		t.Errorf("Unexpected cover %q", got[0].Cover)
	}
}

func TestGoogleBooksLookupISBN(t *testing.T) {
	srv := serveJSON(t, map[string]string{
		"/books/v1/volumes": `{"items": [{
			"volumeInfo": {
				"title": "Dune",
				"authors": ["Frank Herbert"],
				"publisher": "Ace",
				"publishedDate": "1990-09-01",
				"industryIdentifiers": [
					{"type": "ISBN_10", "identifier": "0441172717"},
					{"type": "ISBN_13", "identifier": "9780441172719"}
				],
				"imageLinks": {"thumbnail": "https://books.example/thumb"}
			},
			"saleInfo": {"listPrice": {"amount": 9.99, "currencyCode": "USD"}}
		}]}`,
	})

	got, err := NewGoogleBooks(srv.URL, "", srv.Client()).LookupISBN(context.Background(), "0441172717")
	if err != nil {
		t.Fatal(err)
	}
	if got.ISBN != "9780441172719" || got.Price != "9.99" || got.Cover != "https://books.example/thumb" {
		t.Errorf("Unexpected result %+v", got)
	}
}

func TestNewProviderUnknown(t *testing.T) {
	if _, err := NewProvider("worldcat", "", "", nil); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
