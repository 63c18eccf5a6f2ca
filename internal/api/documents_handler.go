package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/unalkalkan/VoiceReader/internal/library"
	"github.com/unalkalkan/VoiceReader/internal/parser"
	"github.com/unalkalkan/VoiceReader/internal/reader"
	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/internal/util"
)

const (
	maxUploadBytes = 100 << 20
	uploadPrefix   = "uploads/"
)

// DocumentsHandler serves the recent documents list and opens documents
type DocumentsHandler struct {
	session    *reader.Session
	importer   *library.Importer
	libraryDir string
	blobs      storage.Adapter
}

// NewDocumentsHandler creates a documents handler. importer and blobs may be nil.
func NewDocumentsHandler(session *reader.Session, importer *library.Importer, libraryDir string, blobs storage.Adapter) *DocumentsHandler {
	return &DocumentsHandler{
		session:    session,
		importer:   importer,
		libraryDir: libraryDir,
		blobs:      blobs,
	}
}

type openRequest struct {
	Path string `json:"path"`
}

type openResponse struct {
	Summary reader.Summary `json:"session"`
}

// List handles GET /api/v1/documents
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.session.RefreshRecent(r.Context()); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, h.session.RecentDocuments.Get(), http.StatusOK)
}

// Open handles POST /api/v1/documents. A multipart "file" part is uploaded
// and opened; a JSON body names a file inside the library folder to open.
func (h *DocumentsHandler) Open(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		h.upload(w, r)
		return
	}

	var req openRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		respondError(w, "path is required", http.StatusBadRequest)
		return
	}
	if h.libraryDir == "" {
		respondError(w, "No library directory configured", http.StatusNotFound)
		return
	}

	docPath, resolved, err := resolveInLibrary(h.libraryDir, req.Path)
	switch {
	case errors.Is(err, errOutsideLibrary):
		respondError(w, err.Error(), http.StatusForbidden)
		return
	case errors.Is(err, fs.ErrNotExist):
		respondError(w, fmt.Sprintf("document not found: %s", req.Path), http.StatusNotFound)
		return
	case err != nil:
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	f, err := os.Open(resolved)
	if err != nil {
		respondError(w, fmt.Sprintf("failed to open %s", req.Path), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	// On-disk documents are always declared by their extension
	h.load(r.Context(), w, docPath, parser.MIMEForPath(docPath), f)
}

var errOutsideLibrary = errors.New("path is outside the library folder")

// resolveInLibrary maps p onto a file inside libraryDir. Relative paths are
// taken from libraryDir. key is the cleaned absolute path used to identify
// the document; resolved has every symlink evaluated and is the file to read.
func resolveInLibrary(libraryDir, p string) (key, resolved string, err error) {
	root, err := filepath.Abs(libraryDir)
	if err != nil {
		return "", "", err
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return "", "", fmt.Errorf("failed to resolve library folder: %w", err)
	}

	if !filepath.IsAbs(p) {
		p = filepath.Join(libraryDir, p)
	}
	if key, err = filepath.Abs(p); err != nil {
		return "", "", err
	}
	if resolved, err = filepath.EvalSymlinks(key); err != nil {
		return "", "", err
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", errOutsideLibrary
	}
	return key, resolved, nil
}

func (h *DocumentsHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = parser.MIMEForPath(name)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	docPath := uploadPrefix + name
	if h.blobs != nil {
		key := util.SourcePath(util.DocumentID(docPath), strings.ToLower(path.Ext(name)))
		if err := storage.PutBytes(r.Context(), h.blobs, key, data); err != nil {
			slog.Warn("failed to archive upload", slog.String("path", docPath), slog.Any("error", err))
		}
	}

	h.load(r.Context(), w, docPath, mimeType, bytes.NewReader(data))
}

func (h *DocumentsHandler) load(ctx context.Context, w http.ResponseWriter, docPath, mimeType string, r io.Reader) {
	if _, err := h.session.LoadDocument(ctx, docPath, mimeType, r); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, openResponse{Summary: h.session.Summary()}, http.StatusCreated)
}

// Delete handles DELETE /api/v1/documents/{path}
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docPath := chi.URLParam(r, "*")
	if docPath == "" {
		respondError(w, "document path is required", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(docPath, uploadPrefix) {
		docPath = "/" + strings.TrimPrefix(docPath, "/")
	}

	if err := h.session.DeleteDocument(r.Context(), docPath); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Scan handles POST /api/v1/library/scan
func (h *DocumentsHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil || h.libraryDir == "" {
		respondError(w, "No library directory configured", http.StatusNotFound)
		return
	}

	result, err := h.importer.Scan(r.Context(), h.libraryDir)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := h.session.RefreshRecent(r.Context()); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, result, http.StatusOK)
}
