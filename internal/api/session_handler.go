package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/unalkalkan/VoiceReader/internal/reader"
)

// SessionHandler exposes playback and navigation of the open document
type SessionHandler struct {
	session *reader.Session
}

// NewSessionHandler creates a session handler
func NewSessionHandler(session *reader.Session) *SessionHandler {
	return &SessionHandler{session: session}
}

type seekRequest struct {
	Position *int `json:"position"`
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.session.Summary(), http.StatusOK)
}

// TableOfContents handles GET /api/v1/session/toc
func (h *SessionHandler) TableOfContents(w http.ResponseWriter, r *http.Request) {
	doc := h.session.CurrentDocument.Get()
	if doc == nil {
		respondErr(w, reader.ErrNoDocument)
		return
	}
	respondJSON(w, doc.TableOfContents, http.StatusOK)
}

// JumpToTOCEntry handles POST /api/v1/session/toc/{index}
func (h *SessionHandler) JumpToTOCEntry(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, "invalid table of contents index", http.StatusBadRequest)
		return
	}
	if h.session.CurrentDocument.Get() == nil {
		respondErr(w, reader.ErrNoDocument)
		return
	}
	if err := h.session.JumpToTOCEntry(index); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, h.session.Summary(), http.StatusOK)
}

// Text handles GET /api/v1/session/text
func (h *SessionHandler) Text(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"text": h.session.CurrentText()}, http.StatusOK)
}

// Play handles POST /api/v1/session/play
func (h *SessionHandler) Play(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.session.Play())
}

// Pause handles POST /api/v1/session/pause
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.session.Pause(r.Context()))
}

// Resume handles POST /api/v1/session/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.session.Resume())
}

// Stop handles POST /api/v1/session/stop
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.session.Stop()
	h.respond(w, nil)
}

// Seek handles POST /api/v1/session/seek
func (h *SessionHandler) Seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Position == nil {
		respondError(w, "position is required", http.StatusBadRequest)
		return
	}
	h.respond(w, h.session.UpdatePosition(*req.Position))
}

func (h *SessionHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, h.session.Summary(), http.StatusOK)
}
