package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// ErrNotFound is returned for unknown record ids
var ErrNotFound = errors.New("book not found")

// Book is a saved catalog record
type Book struct {
	ID string `json:"id"`
	models.BookMetadata
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Location  string    `json:"location,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patch carries the fields of an update; nil fields are left unchanged
type Patch struct {
	Metadata *models.BookMetadata
	Category *string
	Tags     []string
	Location *string
	Status   *string
}

// BookStore is an in-memory record store
type BookStore struct {
	books map[string]*Book
	mu    sync.RWMutex
	now   func() time.Time
}

func New() *BookStore {
	return &BookStore{
		books: make(map[string]*Book),
		now:   time.Now,
	}
}

// AddBook stores a new record and returns its id
func (s *BookStore) AddBook(fields models.BookMetadata) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	id := uuid.NewString()
	s.books[id] = &Book{
		ID:           id,
		BookMetadata: fields,
		Status:       "available",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return id
}

// UpdateBook applies patch to the record with id
func (s *BookStore) UpdateBook(id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, exists := s.books[id]
	if !exists {
		return ErrNotFound
	}
	if patch.Metadata != nil {
		book.BookMetadata = *patch.Metadata
	}
	if patch.Category != nil {
		book.Category = *patch.Category
	}
	if patch.Tags != nil {
		book.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.Location != nil {
		book.Location = *patch.Location
	}
	if patch.Status != nil {
		book.Status = *patch.Status
	}
	book.UpdatedAt = s.now()
	return nil
}

// DeleteBook removes the record with id
func (s *BookStore) DeleteBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.books[id]; !exists {
		return ErrNotFound
	}
	delete(s.books, id)
	return nil
}

// Get returns a copy of the record with id
func (s *BookStore) Get(id string) (Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, exists := s.books[id]
	if !exists {
		return Book{}, false
	}
	return copyBook(book), true
}

// List returns every record, newest first
func (s *BookStore) List() []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Book, 0, len(s.books))
	for _, b := range s.books {
		result = append(result, copyBook(b))
	}
	sortNewest(result)
	return result
}

// SearchBooks matches query case-insensitively against title, author, ISBN,
// publisher and tags. A blank query lists everything.
func (s *BookStore) SearchBooks(query string) []Book {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.List()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []Book{}
	for _, b := range s.books {
		if matches(b, q) {
			result = append(result, copyBook(b))
		}
	}
	sortNewest(result)
	return result
}

func matches(b *Book, q string) bool {
	for _, v := range []string{b.Title, b.Author, b.ISBN, b.Publisher} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	for _, tag := range b.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func copyBook(b *Book) Book {
	c := *b
	c.Tags = append([]string(nil), b.Tags...)
	return c
}

func sortNewest(books []Book) {
	sort.SliceStable(books, func(i, j int) bool {
		if books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].ID < books[j].ID
		}
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})
}
