package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/unalkalkan/VoiceReader/internal/library"
	"github.com/unalkalkan/VoiceReader/internal/parser"
	"github.com/unalkalkan/VoiceReader/internal/reader"
	"github.com/unalkalkan/VoiceReader/internal/store"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

// respondErr maps domain errors onto HTTP statuses
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, err.Error(), errorStatus(err))
}

func errorStatus(err error) int {
	switch parser.KindOf(err) {
	case parser.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case parser.KindCorruptContainer:
		return http.StatusUnprocessableEntity
	case parser.KindIoFailure:
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, library.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reader.ErrNoDocument):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
