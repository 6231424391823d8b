package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/bookscan/internal/logging"
	"github.com/lehigh-university-libraries/bookscan/internal/storage"
)

// HandleBooks lists saved books, filtered by the q parameter
func (h *Handler) HandleBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.books.SearchBooks(r.URL.Query().Get("q")))
}

// HandleBookDetail serves GET and DELETE on /api/books/{id}
func (h *Handler) HandleBookDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/books/"), "/")

	switch r.Method {
	case "GET":
		book, ok := h.books.Get(id)
		if !ok {
			h.writeError(w, "Book not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, book)
	case "DELETE":
		if err := h.books.DeleteBook(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.writeError(w, "Book not found", http.StatusNotFound)
				return
			}
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleLogs returns recent log entries. limit caps the count; level filters
// by minimum severity.
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
	case "DELETE":
		h.history.Clear()
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries := h.history.Tail(limit)
	if level := r.URL.Query().Get("level"); level != "" {
		filtered := entries[:0]
		minLevel := logging.ParseLevel(level)
		for _, e := range entries {
			if logging.ParseLevel(e.Level) >= minLevel {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	h.writeJSON(w, entries)
}
