package speech

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// StubEngine is an in-process engine that "speaks" by waiting a fixed time
// per character. It is used for tests, the CLI and servers without a
// synthesis backend.
type StubEngine struct {
	settings
	name      string
	charDelay time.Duration
	failAt    int
	voices    []types.Voice

	flight inflight

	mu     sync.Mutex
	spoken []Utterance
	stops  int
}

// NewStubEngine creates a stub engine from configuration. The options
// "char_delay_ms" and "fail_at" tune the simulated timing and inject a
// failure at the given utterance count.
func NewStubEngine(cfg types.SpeechEngineConfig) (*StubEngine, error) {
	e := &StubEngine{
		settings: newSettings(""),
		name:     cfg.Name,
		failAt:   -1,
		voices:   defaultStubVoices(),
	}

	if v, ok := cfg.Options["char_delay_ms"]; ok {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid char_delay_ms %q", v)
		}
		e.charDelay = time.Duration(ms) * time.Millisecond
	}
	if v, ok := cfg.Options["fail_at"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid fail_at %q", v)
		}
		e.failAt = n
	}

	return e, nil
}

// NewInstantStubEngine returns a stub engine that finishes every utterance
// immediately
func NewInstantStubEngine(name string) *StubEngine {
	return &StubEngine{
		settings: newSettings(""),
		name:     name,
		failAt:   -1,
		voices:   defaultStubVoices(),
	}
}

func (s *StubEngine) Name() string {
	return s.name
}

// Speak records the utterance and waits len(text) * char delay
func (s *StubEngine) Speak(ctx context.Context, u Utterance) error {
	s.mu.Lock()
	count := len(s.spoken)
	s.spoken = append(s.spoken, u)
	s.mu.Unlock()

	if count == s.failAt {
		return engineError(s.name, u, errors.New("injected failure"))
	}

	ctx, done := s.flight.begin(ctx)
	defer done()

	_, rate, _ := s.snapshot()
	if rate <= 0 {
		rate = 1.0
	}
	delay := time.Duration(float64(s.charDelay) * float64(utf8.RuneCountInString(u.Text)) / rate)
	if delay == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *StubEngine) Stop() error {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	s.flight.stop()
	return nil
}

func (s *StubEngine) SetVoice(id string) error {
	for _, v := range s.voices {
		if v.ID == id {
			s.setVoice(id)
			return nil
		}
	}
	return fmt.Errorf("unknown voice: %s", id)
}

func (s *StubEngine) Voices(ctx context.Context) ([]types.Voice, error) {
	return append([]types.Voice(nil), s.voices...), nil
}

func (s *StubEngine) Close() error {
	s.flight.stop()
	return nil
}

// Spoken returns the utterances submitted so far
func (s *StubEngine) Spoken() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Utterance(nil), s.spoken...)
}

// Stops returns how many times Stop was called
func (s *StubEngine) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Voice returns the selected voice id
func (s *StubEngine) Voice() string {
	voice, _, _ := s.snapshot()
	return voice
}

func defaultStubVoices() []types.Voice {
	return []types.Voice{
		{ID: "en-us-female-1", Name: "English US Female", Languages: []string{"en"}, Gender: "female", Accent: "us"},
		{ID: "en-gb-male-1", Name: "English GB Male", Languages: []string{"en"}, Gender: "male", Accent: "gb"},
		{ID: "de-de-female-1", Name: "Deutsch Female", Languages: []string{"de"}, Gender: "female"},
		{ID: "fr-fr-male-1", Name: "Francais Male", Languages: []string{"fr"}},
	}
}
