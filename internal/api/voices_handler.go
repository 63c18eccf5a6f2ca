package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/unalkalkan/VoiceReader/internal/reader"
	"github.com/unalkalkan/VoiceReader/internal/speech"
)

// VoicesHandler lists speech voices and manages the speech settings
type VoicesHandler struct {
	session *reader.Session
	engines *speech.Registry
}

// NewVoicesHandler creates a new voices handler. engines may be nil, in
// which case only the session's engine is listed.
func NewVoicesHandler(session *reader.Session, engines *speech.Registry) *VoicesHandler {
	return &VoicesHandler{
		session: session,
		engines: engines,
	}
}

// VoiceResponse represents a voice in the API response
type VoiceResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Languages   []string `json:"languages"`
	Gender      string   `json:"gender,omitempty"`
	Accent      string   `json:"accent,omitempty"`
	Description string   `json:"description,omitempty"`
	Engine      string   `json:"engine"`
}

type settingsRequest struct {
	Voice *string  `json:"voice"`
	Rate  *float64 `json:"rate"`
	Pitch *float64 `json:"pitch"`
}

type settingsResponse struct {
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// ListVoices handles GET /api/v1/voices?engine=&gender=male|female
func (h *VoicesHandler) ListVoices(w http.ResponseWriter, r *http.Request) {
	engineName := r.URL.Query().Get("engine")
	gender := r.URL.Query().Get("gender")
	if gender != "" && gender != "male" && gender != "female" {
		respondError(w, fmt.Sprintf("Invalid gender '%s'", gender), http.StatusBadRequest)
		return
	}

	engine := h.session.Sequencer().Engine()
	if engineName != "" && engineName != engine.Name() {
		if h.engines == nil {
			respondError(w, fmt.Sprintf("Engine '%s' not found", engineName), http.StatusNotFound)
			return
		}
		var err error
		if engine, err = h.engines.Get(engineName); err != nil {
			respondError(w, fmt.Sprintf("Engine '%s' not found", engineName), http.StatusNotFound)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	voices, err := engine.Voices(ctx)
	if err != nil {
		slog.Warn("failed to list voices", slog.String("engine", engine.Name()), slog.Any("error", err))
		respondError(w, fmt.Sprintf("Failed to get voices from engine: %v", err), http.StatusBadGateway)
		return
	}
	voices = speech.FilterByGender(voices, gender)

	response := make([]VoiceResponse, 0, len(voices))
	for _, v := range voices {
		response = append(response, VoiceResponse{
			ID:          v.ID,
			Name:        v.Name,
			Languages:   v.Languages,
			Gender:      v.Gender,
			Accent:      v.Accent,
			Description: v.Description,
			Engine:      engine.Name(),
		})
	}

	respondJSON(w, map[string]any{
		"voices": response,
		"count":  len(response),
	}, http.StatusOK)
}

// GetSettings handles GET /api/v1/settings
func (h *VoicesHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.settings(), http.StatusOK)
}

// UpdateSettings handles PUT /api/v1/settings. Omitted fields keep their
// value; rate and pitch are clamped into the supported range.
func (h *VoicesHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Voice != nil {
		if err := h.session.SetVoice(*req.Voice); err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Rate != nil {
		h.session.SetSpeechRate(*req.Rate)
	}
	if req.Pitch != nil {
		h.session.SetSpeechPitch(*req.Pitch)
	}

	respondJSON(w, h.settings(), http.StatusOK)
}

func (h *VoicesHandler) settings() settingsResponse {
	return settingsResponse{
		Voice: h.session.SelectedVoice.Get(),
		Rate:  h.session.SpeechRate.Get(),
		Pitch: h.session.SpeechPitch.Get(),
	}
}
