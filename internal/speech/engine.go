// Package speech contains the speech engines the playback sequencer drives.
package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// ErrEngine wraps every failure reported by an engine while speaking
var ErrEngine = errors.New("speech engine error")

// Utterance is one unit of text submitted to an engine
type Utterance struct {
	ID         string // unique within a document, e.g. "sentence_4"
	DocumentID string
	Index      int
	Text       string
}

// Engine synthesizes utterances one at a time
type Engine interface {
	// Name returns the engine name
	Name() string

	// Speak blocks until the utterance finished or ctx is cancelled
	Speak(ctx context.Context, u Utterance) error

	// Stop interrupts the utterance in flight, if any
	Stop() error

	// SetVoice selects the voice used for following utterances
	SetVoice(id string) error

	// SetRate sets the speech rate multiplier
	SetRate(rate float64)

	// SetPitch sets the speech pitch multiplier
	SetPitch(pitch float64)

	// Voices lists the voices the engine offers
	Voices(ctx context.Context) ([]types.Voice, error)

	// Close cleans up resources
	Close() error
}

func engineError(name string, u Utterance, err error) error {
	return fmt.Errorf("%w: %s utterance %s: %v", ErrEngine, name, u.ID, err)
}

// settings holds the voice parameters shared by every engine implementation
type settings struct {
	mu    sync.RWMutex
	voice string
	rate  float64
	pitch float64
}

func newSettings(voice string) settings {
	return settings{voice: voice, rate: 1.0, pitch: 1.0}
}

func (s *settings) SetRate(rate float64) {
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
}

func (s *settings) SetPitch(pitch float64) {
	s.mu.Lock()
	s.pitch = pitch
	s.mu.Unlock()
}

func (s *settings) setVoice(id string) {
	s.mu.Lock()
	s.voice = id
	s.mu.Unlock()
}

func (s *settings) snapshot() (voice string, rate, pitch float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice, s.rate, s.pitch
}

// inflight tracks the cancel function of the utterance being spoken so
// Stop can interrupt it
type inflight struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (f *inflight) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
	return ctx, func() {
		f.mu.Lock()
		f.cancel = nil
		f.mu.Unlock()
		cancel()
	}
}

func (f *inflight) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}
