package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

func TestStubEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("Records utterances", func(t *testing.T) {
		engine := NewInstantStubEngine("stub")
		for i, text := range []string{"One", "Two"} {
			if err := engine.Speak(ctx, Utterance{ID: "u", Index: i, Text: text}); err != nil {
				t.Fatalf("Speak failed: %v", err)
			}
		}
		spoken := engine.Spoken()
		if len(spoken) != 2 || spoken[1].Text != "Two" {
			t.Errorf("Unexpected spoken utterances: %+v", spoken)
		}
	})

	t.Run("Injected failure", func(t *testing.T) {
		engine, err := NewStubEngine(types.SpeechEngineConfig{
			Name:    "stub",
			Options: map[string]string{"fail_at": "1"},
		})
		if err != nil {
			t.Fatalf("NewStubEngine failed: %v", err)
		}
		if err := engine.Speak(ctx, Utterance{Text: "ok"}); err != nil {
			t.Fatalf("First utterance should succeed: %v", err)
		}
		if err := engine.Speak(ctx, Utterance{Text: "boom"}); !errors.Is(err, ErrEngine) {
			t.Fatalf("Expected ErrEngine, got %v", err)
		}
	})

	t.Run("Stop interrupts", func(t *testing.T) {
		engine, err := NewStubEngine(types.SpeechEngineConfig{
			Name:    "stub",
			Options: map[string]string{"char_delay_ms": "1000"},
		})
		if err != nil {
			t.Fatalf("NewStubEngine failed: %v", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- engine.Speak(ctx, Utterance{Text: "a long sentence"})
		}()

		// Wait until the utterance is in flight
		deadline := time.Now().Add(time.Second)
		for len(engine.Spoken()) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(10 * time.Millisecond)
		engine.Stop()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Speak did not return after Stop")
		}
	})

	t.Run("Invalid options", func(t *testing.T) {
		if _, err := NewStubEngine(types.SpeechEngineConfig{Options: map[string]string{"char_delay_ms": "x"}}); err == nil {
			t.Error("Expected error for invalid char_delay_ms")
		}
	})

	t.Run("SetVoice", func(t *testing.T) {
		engine := NewInstantStubEngine("stub")
		if err := engine.SetVoice("en-gb-male-1"); err != nil {
			t.Fatalf("SetVoice failed: %v", err)
		}
		if engine.Voice() != "en-gb-male-1" {
			t.Errorf("Expected selected voice, got %q", engine.Voice())
		}
		if err := engine.SetVoice("nope"); err == nil {
			t.Error("Expected error for unknown voice")
		}
	})
}

func TestHTTPEngine(t *testing.T) {
	var gotReq speechAPIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		switch r.URL.Path {
		case "/audio/speech":
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Errorf("Failed to decode request: %v", err)
			}
			w.Write([]byte("AUDIO"))
		case "/voices":
			if r.URL.Query().Get("model") != "tts-1" {
				t.Errorf("Expected model query parameter, got %q", r.URL.RawQuery)
			}
			json.NewEncoder(w).Encode(voicesAPIResponse{
				Object: "list",
				Data: []voiceData{
					{ID: "alloy", Name: "Alloy", Languages: []string{"en"}},
					{ID: "fable", Name: "Fable", Language: "en", Gender: "female"},
				},
			})
		case "/fail/audio/speech":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"bad voice","type":"invalid_request_error"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	adapter, err := storage.NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}

	cfg := types.SpeechEngineConfig{
		Name:     "cloud",
		Type:     "openai",
		Enabled:  true,
		Endpoint: server.URL,
		APIKey:   "test-key",
		Model:    "tts-1",
	}
	engine, err := NewHTTPEngine(cfg, adapter)
	if err != nil {
		t.Fatalf("NewHTTPEngine failed: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()

	t.Run("Speak stores audio", func(t *testing.T) {
		engine.SetVoice("alloy")
		engine.SetRate(1.5)
		engine.SetPitch(0.8)

		if err := engine.Speak(ctx, Utterance{ID: "sentence_0", DocumentID: "doc", Text: "  Hello there "}); err != nil {
			t.Fatalf("Speak failed: %v", err)
		}
		if gotReq.Input != "Hello there" || gotReq.Voice != "alloy" || gotReq.Speed != 1.5 || gotReq.Model != "tts-1" {
			t.Errorf("Unexpected request: %+v", gotReq)
		}

		rc, err := adapter.Get(ctx, "documents/doc/audio/sentence_0.mp3")
		if err != nil {
			t.Fatalf("Audio not stored: %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != "AUDIO" {
			t.Errorf("Unexpected audio %q", data)
		}
	})

	t.Run("Voices", func(t *testing.T) {
		voices, err := engine.Voices(ctx)
		if err != nil {
			t.Fatalf("Voices failed: %v", err)
		}
		if len(voices) != 2 || voices[1].Languages[0] != "en" {
			t.Errorf("Unexpected voices: %+v", voices)
		}
	})

	t.Run("API error", func(t *testing.T) {
		failCfg := cfg
		failCfg.Endpoint = server.URL + "/fail"
		failing, err := NewHTTPEngine(failCfg, nil)
		if err != nil {
			t.Fatalf("NewHTTPEngine failed: %v", err)
		}
		err = failing.Speak(ctx, Utterance{ID: "x", Text: "hi"})
		if !errors.Is(err, ErrEngine) || !strings.Contains(err.Error(), "bad voice") {
			t.Errorf("Expected engine error with API message, got %v", err)
		}
	})

	t.Run("Missing endpoint", func(t *testing.T) {
		if _, err := NewHTTPEngine(types.SpeechEngineConfig{Model: "m"}, nil); err == nil {
			t.Error("Expected error for missing endpoint")
		}
	})
}

func TestVoiceFilters(t *testing.T) {
	voices := []types.Voice{
		{ID: "1", Name: "Male Narrator", Languages: []string{"en-US"}},
		{ID: "2", Name: "Female Narrator", Languages: []string{"en-GB"}},
		{ID: "3", Name: "Echo", Gender: "male", Languages: []string{"de"}},
		{ID: "4", Name: "Neutral", Languages: []string{"fr"}},
	}

	ids := func(vs []types.Voice) string {
		var out []string
		for _, v := range vs {
			out = append(out, v.ID)
		}
		return strings.Join(out, ",")
	}

	tests := []struct {
		name string
		got  []types.Voice
		want string
	}{
		{"male", MaleVoices(voices), "1,3"},
		{"female", FemaleVoices(voices), "2"},
		{"gender any", FilterByGender(voices, ""), "1,2,3,4"},
		{"language match", SelectLanguage(voices, "de-DE"), "3"},
		{"language fallback", SelectLanguage(voices, "ja"), "1,2"},
		{"no preference", SelectLanguage(voices, ""), "1,2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(tt.got); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	err := registry.InitializeEngines(types.SpeechConfig{
		DefaultEngine: "narrator",
		Engines: []types.SpeechEngineConfig{
			{Name: "narrator", Type: "stub", Enabled: true},
			{Name: "disabled", Type: "stub", Enabled: false},
		},
	}, nil)
	if err != nil {
		t.Fatalf("InitializeEngines failed: %v", err)
	}

	if names := registry.List(); len(names) != 1 || names[0] != "narrator" {
		t.Errorf("Unexpected engines: %v", names)
	}
	if err := registry.Register(NewInstantStubEngine("narrator")); err == nil {
		t.Error("Expected error when registering duplicate engine")
	}
	if _, err := registry.Get("missing"); err == nil {
		t.Error("Expected error for missing engine")
	}

	engine, err := registry.Default(types.SpeechConfig{DefaultEngine: "narrator"})
	if err != nil || engine.Name() != "narrator" {
		t.Errorf("Default() = %v, %v", engine, err)
	}

	if err := registry.InitializeEngines(types.SpeechConfig{
		Engines: []types.SpeechEngineConfig{{Name: "x", Type: "carrier-pigeon", Enabled: true}},
	}, nil); err == nil {
		t.Error("Expected error for unknown engine type")
	}

	if err := registry.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
