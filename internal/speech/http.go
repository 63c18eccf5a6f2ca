package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/internal/util"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

const defaultAudioFormat = "mp3"

// HTTPEngine speaks through an OpenAI-compatible /audio/speech endpoint and
// keeps every synthesized utterance in blob storage
type HTTPEngine struct {
	settings
	name       string
	config     types.SpeechEngineConfig
	httpClient *http.Client
	model      string
	format     string
	audio      storage.Adapter
	logger     *slog.Logger

	flight inflight
}

// NewHTTPEngine creates an OpenAI-compatible engine. audio may be nil, in
// which case synthesized audio is discarded.
func NewHTTPEngine(cfg types.SpeechEngineConfig, audio storage.Adapter) (*HTTPEngine, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for OpenAI speech engine")
	}

	model := cfg.Model
	if model == "" {
		model = cfg.Options["model"]
	}
	if model == "" {
		return nil, fmt.Errorf("model is required for OpenAI speech engine")
	}

	format := cfg.Options["response_format"]
	if format == "" {
		format = defaultAudioFormat
	}

	timeout := 300 * time.Second
	if timeoutStr, ok := cfg.Options["timeout"]; ok {
		var timeoutSec int
		if _, err := fmt.Sscanf(timeoutStr, "%d", &timeoutSec); err == nil && timeoutSec > 0 {
			timeout = time.Duration(timeoutSec) * time.Second
		}
	}

	return &HTTPEngine{
		settings: newSettings(cfg.Options["voice"]),
		name:     cfg.Name,
		config:   cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		model:  model,
		format: format,
		audio:  audio,
		logger: slog.Default().With(slog.String("engine", cfg.Name)),
	}, nil
}

func (e *HTTPEngine) Name() string {
	return e.name
}

// Speak synthesizes the utterance and stores the audio under the document's
// audio prefix. It returns once the audio is stored.
func (e *HTTPEngine) Speak(ctx context.Context, u Utterance) error {
	ctx, done := e.flight.begin(ctx)
	defer done()

	voice, rate, _ := e.snapshot()
	req := speechAPIRequest{
		Model:          e.model,
		Input:          strings.TrimSpace(u.Text),
		Voice:          voice,
		Speed:          rate,
		ResponseFormat: e.format,
	}

	audio, err := e.callSpeechAPI(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return engineError(e.name, u, err)
	}

	if e.audio == nil {
		return nil
	}

	key := util.AudioPath(u.DocumentID, u.ID, e.format)
	if err := e.audio.Put(ctx, key, bytes.NewReader(audio)); err != nil {
		return engineError(e.name, u, fmt.Errorf("failed to store audio: %w", err))
	}
	e.logger.Debug("utterance stored", slog.String("path", key), slog.Int("bytes", len(audio)))
	return nil
}

func (e *HTTPEngine) Stop() error {
	e.flight.stop()
	return nil
}

// SetVoice accepts any id; the API rejects unknown voices on the next request
func (e *HTTPEngine) SetVoice(id string) error {
	e.setVoice(id)
	return nil
}

// Voices returns available voices from the /voices endpoint
func (e *HTTPEngine) Voices(ctx context.Context) ([]types.Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url("voices"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := httpReq.URL.Query()
	q.Add("model", e.model)
	httpReq.URL.RawQuery = q.Encode()
	e.authorize(httpReq)

	body, err := e.do(httpReq)
	if err != nil {
		return nil, err
	}

	var apiResp voicesAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	voices := make([]types.Voice, 0, len(apiResp.Data))
	for _, v := range apiResp.Data {
		languages := v.Languages
		if len(languages) == 0 && v.Language != "" {
			languages = []string{v.Language}
		}

		voices = append(voices, types.Voice{
			ID:          v.ID,
			Name:        v.Name,
			Languages:   languages,
			Gender:      v.Gender,
			Accent:      v.Accent,
			Description: v.Description,
		})
	}

	e.logger.Debug("voices listed", slog.Int("count", len(voices)))
	return voices, nil
}

func (e *HTTPEngine) Close() error {
	e.flight.stop()
	e.httpClient.CloseIdleConnections()
	return nil
}

// speechAPIRequest is the OpenAI /audio/speech request body. The API has no
// pitch parameter.
type speechAPIRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

type voicesAPIResponse struct {
	Object string      `json:"object"`
	Data   []voiceData `json:"data"`
}

type voiceData struct {
	ID          string   `json:"id"`
	Object      string   `json:"object"`
	Name        string   `json:"name"`
	Language    string   `json:"language"`
	Languages   []string `json:"languages"`
	Gender      string   `json:"gender"`
	Accent      string   `json:"accent"`
	Description string   `json:"description"`
}

func (e *HTTPEngine) callSpeechAPI(ctx context.Context, req speechAPIRequest) ([]byte, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url("audio/speech"), bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	e.authorize(httpReq)

	e.logger.Debug("synthesizing", slog.String("voice", req.Voice), slog.Int("input_length", len(req.Input)))
	return e.do(httpReq)
}

func (e *HTTPEngine) do(httpReq *http.Request) ([]byte, error) {
	startTime := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp apiErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			e.logger.Warn("speech api error",
				slog.Int("status", resp.StatusCode),
				slog.String("type", errResp.Error.Type),
				slog.String("message", errResp.Error.Message))
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	e.logger.Debug("speech api response",
		slog.String("method", httpReq.Method),
		slog.String("path", httpReq.URL.Path),
		slog.Duration("took", duration),
		slog.Int("bytes", len(body)))
	return body, nil
}

func (e *HTTPEngine) url(path string) string {
	endpoint := e.config.Endpoint
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint + path
}

func (e *HTTPEngine) authorize(req *http.Request) {
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
