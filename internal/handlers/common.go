package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/bookscan/internal/acquisition"
	"github.com/lehigh-university-libraries/bookscan/internal/identify"
	"github.com/lehigh-university-libraries/bookscan/internal/images"
	"github.com/lehigh-university-libraries/bookscan/internal/logging"
	"github.com/lehigh-university-libraries/bookscan/internal/metadata"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
	"github.com/lehigh-university-libraries/bookscan/internal/ocr"
	"github.com/lehigh-university-libraries/bookscan/internal/storage"
)

// OrchestratorFactory builds the orchestrator behind a new entry form
type OrchestratorFactory func() (*identify.Orchestrator, error)

type Handler struct {
	newOrchestrator OrchestratorFactory
	books           *storage.BookStore
	history         *logging.History
	fetcher         *images.Fetcher

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	ID           string
	CreatedAt    time.Time
	orchestrator *identify.Orchestrator
}

// SessionView is the JSON shape of an entry form
type SessionView struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"createdAt"`
	State     string               `json:"state"`
	Scan      identify.ScanSession `json:"scan"`
	Fields    models.BookMetadata  `json:"fields"`
	Edited    []identify.Field     `json:"edited"`
	Notes     []identify.Note      `json:"notes"`
	RecordID  string               `json:"recordId,omitempty"`
}

func New(factory OrchestratorFactory, books *storage.BookStore, history *logging.History) *Handler {
	return &Handler{
		newOrchestrator: factory,
		books:           books,
		history:         history,
		fetcher:         images.NewFetcher(),
		sessions:        make(map[string]*session),
	}
}

// Close cancels every open session and releases their devices
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		s.orchestrator.Close()
		delete(h.sessions, id)
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// writeFlowError reports a failed identification flow along with the notes
// it left for the user
func (h *Handler) writeFlowError(w http.ResponseWriter, s *session, err error) {
	code := statusFor(err)
	slog.Warn("Identification flow failed", "session_id", s.ID, "status", code, "err", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if encErr := json.NewEncoder(w).Encode(map[string]any{
		"error":   err.Error(),
		"session": h.view(s),
	}); encErr != nil {
		slog.Error("Unable to encode JSON response", "err", encErr)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, metadata.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, acquisition.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, acquisition.ErrDeviceUnavailable),
		errors.Is(err, acquisition.ErrNoActiveStream),
		errors.Is(err, identify.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, ocr.ErrRecognitionFailed), errors.Is(err, identify.ErrEmptyRecord):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Session helpers
func (h *Handler) createSession() (*session, error) {
	o, err := h.newOrchestrator()
	if err != nil {
		return nil, err
	}
	s := &session{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now(),
		orchestrator: o,
	}
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	slog.Info("Session created", "session_id", s.ID)
	return s, nil
}

func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*session, bool) {
	h.mu.RLock()
	s, exists := h.sessions[sessionID]
	h.mu.RUnlock()
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *Handler) deleteSession(sessionID string) bool {
	h.mu.Lock()
	s, exists := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	if exists {
		s.orchestrator.Close()
		slog.Info("Session closed", "session_id", sessionID)
	}
	return exists
}

func (h *Handler) view(s *session) SessionView {
	o := s.orchestrator
	form := o.Form()
	notes := o.Notes()
	if notes == nil {
		notes = []identify.Note{}
	}
	return SessionView{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		State:     o.State().String(),
		Scan:      o.Session(),
		Fields:    form.Values(),
		Edited:    form.EditedFields(),
		Notes:     notes,
		RecordID:  o.RecordID(),
	}
}
