package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/bookscan/internal/acquisition"
	"github.com/lehigh-university-libraries/bookscan/internal/identify"
	"github.com/lehigh-university-libraries/bookscan/internal/images"
	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.mu.RLock()
		sessionList := make([]SessionView, 0, len(h.sessions))
		for _, s := range h.sessions {
			sessionList = append(sessionList, h.view(s))
		}
		h.mu.RUnlock()
		h.writeJSON(w, sessionList)
	case "POST":
		s, err := h.createSession()
		if err != nil {
			h.writeError(w, "Failed to create session: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Location", "/api/sessions/"+s.ID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		h.writeJSON(w, h.view(s))
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessionDetail serves /api/sessions/{id} and /api/sessions/{id}/{action}
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	sessionID, action, _ := strings.Cut(path, "/")

	if action == "" {
		switch r.Method {
		case "GET":
			if s, ok := h.getSessionOrError(w, sessionID); ok {
				h.writeJSON(w, h.view(s))
			}
		case "DELETE":
			if !h.deleteSession(sessionID) {
				h.writeError(w, "Session not found", http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	switch action {
	case "isbn":
		h.handleISBN(w, r, s)
	case "search":
		h.handleSearch(w, r, s)
	case "image":
		h.handleImage(w, r, s)
	case "camera":
		h.handleCamera(w, r, s)
	case "capture":
		h.handleCapture(w, r, s)
	case "barcode":
		h.handleBarcode(w, r, s)
	case "cancel":
		s.orchestrator.Cancel()
		h.writeJSON(w, h.view(s))
	case "edit":
		h.handleEdit(w, r, s)
	case "save":
		h.handleSave(w, r, s)
	default:
		h.writeError(w, "Unknown action: "+action, http.StatusNotFound)
	}
}

func (h *Handler) writeResult(w http.ResponseWriter, s *session, result identify.Result, err error) {
	if err != nil {
		h.writeFlowError(w, s, err)
		return
	}
	h.writeJSON(w, map[string]any{
		"result":  result,
		"session": h.view(s),
	})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) handleISBN(w http.ResponseWriter, r *http.Request, s *session) {
	var request struct {
		ISBN string `json:"isbn"`
	}
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.orchestrator.LookupISBN(r.Context(), request.ISBN)
	h.writeResult(w, s, result, err)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request, s *session) {
	var request struct {
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.orchestrator.SearchTitleAuthor(r.Context(), request.Title, request.Author)
	h.writeResult(w, s, result, err)
}

// handleImage accepts a multipart upload in "file" or a JSON body with an
// image_url to download
func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request, s *session) {
	var img models.RawImage

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var request struct {
			ImageURL string `json:"image_url"`
		}
		if err := decodeBody(r, &request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if request.ImageURL == "" {
			h.writeError(w, "image_url is required", http.StatusBadRequest)
			return
		}
		var err error
		img, err = h.fetcher.Fetch(r.Context(), request.ImageURL)
		if err != nil {
			h.writeFlowError(w, s, err)
			return
		}
	} else {
		file, header, err := r.FormFile("file")
		if err != nil {
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, images.MaxImageBytes+1))
		if err != nil {
			h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if len(data) > images.MaxImageBytes {
			h.writeError(w, "File too large (max 10MB)", http.StatusBadRequest)
			return
		}
		img, err = acquisition.LoadStillImage(data, header.Filename)
		if err != nil {
			h.writeFlowError(w, s, err)
			return
		}
	}

	result, err := s.orchestrator.IdentifyImage(r.Context(), img)
	h.writeResult(w, s, result, err)
}

type facingRequest struct {
	Facing models.Facing `json:"facing"`
}

func (h *Handler) readFacing(w http.ResponseWriter, r *http.Request) (models.Facing, bool) {
	var request facingRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &request); err != nil && err != io.EOF {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return "", false
		}
	}
	switch request.Facing {
	case "", models.FacingEnvironment, models.FacingUser:
		return request.Facing, true
	default:
		h.writeError(w, "Invalid facing. Must be 'environment' or 'user'", http.StatusBadRequest)
		return "", false
	}
}

func (h *Handler) handleCamera(w http.ResponseWriter, r *http.Request, s *session) {
	facing, ok := h.readFacing(w, r)
	if !ok {
		return
	}
	if _, err := s.orchestrator.OpenCamera(r.Context(), facing); err != nil {
		h.writeFlowError(w, s, err)
		return
	}
	h.writeJSON(w, h.view(s))
}

func (h *Handler) handleCapture(w http.ResponseWriter, r *http.Request, s *session) {
	result, err := s.orchestrator.CaptureAndIdentify(r.Context())
	h.writeResult(w, s, result, err)
}

func (h *Handler) handleBarcode(w http.ResponseWriter, r *http.Request, s *session) {
	facing, ok := h.readFacing(w, r)
	if !ok {
		return
	}
	result, err := s.orchestrator.ScanBarcode(r.Context(), facing)
	h.writeResult(w, s, result, err)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request, s *session) {
	var request struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	field, err := identify.ParseField(request.Field)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.orchestrator.Edit(field, request.Value); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, h.view(s))
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request, s *session) {
	id, err := s.orchestrator.Save(r.Context())
	if err != nil {
		h.writeFlowError(w, s, err)
		return
	}
	book, _ := h.books.Get(id)
	h.writeJSON(w, map[string]any{
		"book":    book,
		"session": h.view(s),
	})
}
