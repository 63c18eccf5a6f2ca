package playback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/unalkalkan/VoiceReader/internal/observable"
	"github.com/unalkalkan/VoiceReader/internal/speech"
)

// State is the sequencer's playback state
type State int

const (
	StateIdle State = iota
	StateSpeaking
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sequencer speaks a text sentence by sentence. Only one utterance is ever
// in flight; Pause, Stop and SetText take effect immediately and interrupt it.
type Sequencer struct {
	engine speech.Engine
	logger *slog.Logger

	mu         sync.Mutex
	documentID string
	sentences  []string
	index      int
	state      State
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	onFinished func()
	onProgress func(position int)

	// hookMu is held while onProgress runs; halts wait on it so no stale
	// position is delivered after Pause, Stop or SetText return
	hookMu sync.Mutex

	position *observable.Value[int]
	playing  *observable.Value[bool]
}

// NewSequencer creates a sequencer driving engine
func NewSequencer(engine speech.Engine, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{
		engine:   engine,
		logger:   logger,
		position: observable.New(0),
		playing:  observable.New(false),
	}
}

// Position is the live cursor position
func (s *Sequencer) Position() *observable.Value[int] {
	return s.position
}

// Playing reports whether an utterance chain is running
func (s *Sequencer) Playing() *observable.Value[bool] {
	return s.playing
}

// OnFinished registers fn to run when the last sentence has been spoken
func (s *Sequencer) OnFinished(fn func()) {
	s.mu.Lock()
	s.onFinished = fn
	s.mu.Unlock()
}

// OnProgress registers fn to run on every position update made by playback.
// fn must not call back into the sequencer.
func (s *Sequencer) OnProgress(fn func(position int)) {
	s.mu.Lock()
	s.onProgress = fn
	s.mu.Unlock()
}

// SetText halts playback, segments text and rewinds the cursor
func (s *Sequencer) SetText(documentID, text string) {
	sentences := Segment(text)

	s.mu.Lock()
	wasSpeaking := s.haltLocked()
	s.documentID = documentID
	s.sentences = sentences
	s.index = 0
	s.state = StateIdle
	s.position.Set(0)
	s.mu.Unlock()

	if wasSpeaking {
		s.stopEngine()
	}
	s.awaitHooks()
}

// Speak starts the utterance chain from the current sentence. It is a no-op
// when already speaking, when there is no text or when the cursor is past
// the last sentence.
func (s *Sequencer) Speak() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSpeaking || s.index >= len(s.sentences) {
		return
	}

	s.generation++
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.state = StateSpeaking
	s.playing.Set(true)

	go s.run(ctx, s.generation, done)
}

// Pause interrupts the current utterance and keeps the cursor
func (s *Sequencer) Pause() {
	s.mu.Lock()
	if s.state != StateSpeaking {
		s.mu.Unlock()
		return
	}
	s.haltLocked()
	s.state = StatePaused
	s.mu.Unlock()

	s.stopEngine()
	s.awaitHooks()
}

// Resume continues from the retained cursor unless already speaking
func (s *Sequencer) Resume() {
	s.Speak()
}

// Stop interrupts playback and rewinds the cursor to the start
func (s *Sequencer) Stop() {
	s.mu.Lock()
	wasSpeaking := s.haltLocked()
	s.index = 0
	s.state = StateIdle
	s.position.Set(0)
	s.mu.Unlock()

	if wasSpeaking {
		s.stopEngine()
	}
	s.awaitHooks()
}

// SeekToPosition moves the cursor to the sentence containing position and
// publishes position verbatim. Positions past the last sentence are
// ignored. Playback is neither started nor stopped.
func (s *Sequencer) SeekToPosition(position int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := SentenceAt(s.sentences, position)
	if i < 0 {
		return
	}
	s.index = i
	s.position.Set(position)
}

// SetVoice passes the voice through to the engine
func (s *Sequencer) SetVoice(id string) error {
	return s.engine.SetVoice(id)
}

// SetRate passes the rate through to the engine
func (s *Sequencer) SetRate(rate float64) {
	s.engine.SetRate(rate)
}

// SetPitch passes the pitch through to the engine
func (s *Sequencer) SetPitch(pitch float64) {
	s.engine.SetPitch(pitch)
}

// Cursor returns the index of the next sentence to speak
func (s *Sequencer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// State returns the playback state
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sentences returns a copy of the segmented text
func (s *Sequencer) Sentences() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sentences...)
}

// Engine returns the engine the sequencer drives
func (s *Sequencer) Engine() speech.Engine {
	return s.engine
}

// Wait blocks until the most recent run loop has exited
func (s *Sequencer) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// haltLocked invalidates the running loop and reports whether one was active
func (s *Sequencer) haltLocked() bool {
	wasSpeaking := s.state == StateSpeaking
	s.generation++
	s.releaseLocked()
	s.playing.Set(false)
	return wasSpeaking
}

func (s *Sequencer) releaseLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// emitProgress runs the progress hook unless generation was halted
func (s *Sequencer) emitProgress(generation uint64, position int) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	s.mu.Lock()
	current := s.generation == generation
	onProgress := s.onProgress
	s.mu.Unlock()

	if current && onProgress != nil {
		onProgress(position)
	}
}

// awaitHooks blocks until a progress hook in flight has returned
func (s *Sequencer) awaitHooks() {
	s.hookMu.Lock()
	s.hookMu.Unlock()
}

func (s *Sequencer) stopEngine() {
	if err := s.engine.Stop(); err != nil {
		s.logger.Warn("failed to stop speech engine", slog.Any("error", err))
	}
}

func (s *Sequencer) run(ctx context.Context, generation uint64, done chan struct{}) {
	defer close(done)

	for {
		s.mu.Lock()
		if s.generation != generation {
			s.mu.Unlock()
			return
		}

		if s.index >= len(s.sentences) {
			s.state = StateIdle
			s.releaseLocked()
			s.playing.Set(false)
			onFinished := s.onFinished
			s.mu.Unlock()

			if onFinished != nil {
				onFinished()
			}
			return
		}

		i := s.index
		utterance := speech.Utterance{
			ID:         fmt.Sprintf("sentence_%d", i),
			DocumentID: s.documentID,
			Index:      i,
			Text:       strings.TrimSpace(s.sentences[i]),
		}
		// The cursor advances before the engine finishes the utterance
		position := PositionAfter(s.sentences, i)
		s.position.Set(position)
		s.index++
		s.mu.Unlock()

		s.emitProgress(generation, position)

		if err := s.engine.Speak(ctx, utterance); err != nil {
			s.mu.Lock()
			if s.generation == generation {
				// Engine failure aborts the chain; there is no retry
				s.logger.Warn("speech engine error",
					slog.Int("sentence", i),
					slog.String("engine", s.engine.Name()),
					slog.Any("error", err))
				s.generation++
				s.state = StateIdle
				s.releaseLocked()
				s.playing.Set(false)
			}
			s.mu.Unlock()
			return
		}
	}
}
