package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

func newTestStore() *BookStore {
	s := New()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestAddGetUpdateDelete(t *testing.T) {
	s := newTestStore()
	id := s.AddBook(models.BookMetadata{Title: "三体", Author: "刘慈欣", ISBN: "9787536692930"})

	book, ok := s.Get(id)
	if !ok {
		t.Fatal("Expected book to exist")
	}
	if book.Title != "三体" || book.Status != "available" {
		t.Errorf("Unexpected book %+v", book)
	}

	location := "Shelf A3"
	updated := models.BookMetadata{Title: "三体", Author: "刘慈欣", ISBN: "9787536692930", Price: "23.00"}
	if err := s.UpdateBook(id, Patch{Metadata: &updated, Location: &location, Tags: []string{"科幻"}}); err != nil {
		t.Fatal(err)
	}
	book, _ = s.Get(id)
	if book.Price != "23.00" || book.Location != location || len(book.Tags) != 1 {
		t.Errorf("Update not applied: %+v", book)
	}
	if !book.UpdatedAt.After(book.CreatedAt) {
		t.Error("Expected UpdatedAt to advance")
	}

	if err := s.DeleteBook(id); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get(id); ok {
		t.Error("Expected book to be deleted")
	}
	if err := s.DeleteBook(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateBook("missing", Patch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSearchBooks(t *testing.T) {
	s := newTestStore()
	s.AddBook(models.BookMetadata{Title: "活着", Author: "余华", ISBN: "9787506365437", Publisher: "作家出版社"})
	id := s.AddBook(models.BookMetadata{Title: "The Adventures of Tom Sawyer", Author: "Mark Twain", ISBN: "9780143107330"})
	tag := []string{"Classics"}
	if err := s.UpdateBook(id, Patch{Tags: tag}); err != nil {
		t.Fatal(err)
	}

	tests := map[string]int{
		"":          2,
		"twain":     1,
		"余华":        1,
		"97801":     1,
		"作家":        1,
		"classics":  1,
		"nonexist":  0,
		"  TOM  ":   1,
		"978":       2,
	}
	for q, want := range tests {
		if got := s.SearchBooks(q); len(got) != want {
			t.Errorf("SearchBooks(%q) returned %d results, want %d", q, len(got), want)
		}
	}

	all := s.List()
	if all[0].ID != id {
		t.Error("Expected newest book first")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := newTestStore()
	id := s.AddBook(models.BookMetadata{Title: "Original"})
	book, _ := s.Get(id)
	book.Title = "Changed"
	again, _ := s.Get(id)
	if again.Title != "Original" {
		t.Error("Mutating a returned book changed the store")
	}
}
