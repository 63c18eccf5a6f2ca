package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/unalkalkan/VoiceReader/internal/reader"
	"github.com/unalkalkan/VoiceReader/internal/store"
)

// BookmarksHandler manages bookmarks of the open document
type BookmarksHandler struct {
	session *reader.Session
	store   store.Store
}

// NewBookmarksHandler creates a bookmarks handler
func NewBookmarksHandler(session *reader.Session, st store.Store) *BookmarksHandler {
	return &BookmarksHandler{session: session, store: st}
}

type bookmarkRequest struct {
	Note string `json:"note"`
}

// List handles GET /api/v1/bookmarks. With ?all=true every document's
// bookmarks are returned.
func (h *BookmarksHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("all") == "true" {
		list, err := h.store.ListAllBookmarks(r.Context())
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, list, http.StatusOK)
		return
	}
	respondJSON(w, h.session.Bookmarks.Get(), http.StatusOK)
}

// Create handles POST /api/v1/bookmarks
func (h *BookmarksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	b, err := h.session.CreateBookmark(r.Context(), req.Note)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, b, http.StatusCreated)
}

// CreateAuto handles POST /api/v1/bookmarks/auto
func (h *BookmarksHandler) CreateAuto(w http.ResponseWriter, r *http.Request) {
	b, err := h.session.CreateAutoBookmark(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, b, http.StatusCreated)
}

// Update handles PUT /api/v1/bookmarks/{id}
func (h *BookmarksHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.session.UpdateBookmarkNote(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, b, http.StatusOK)
}

// Delete handles DELETE /api/v1/bookmarks/{id}
func (h *BookmarksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.session.DeleteBookmark(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Jump handles POST /api/v1/bookmarks/{id}/jump
func (h *BookmarksHandler) Jump(w http.ResponseWriter, r *http.Request) {
	if err := h.session.JumpToBookmark(chi.URLParam(r, "id")); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, h.session.Summary(), http.StatusOK)
}
