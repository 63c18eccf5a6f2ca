// Package reader holds the reading session: the currently open document,
// the reading position and bookmarks, and the playback controls built on
// the sequencer. Every piece of state a client renders is an observable.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unalkalkan/VoiceReader/internal/config"
	"github.com/unalkalkan/VoiceReader/internal/observable"
	"github.com/unalkalkan/VoiceReader/internal/parser"
	"github.com/unalkalkan/VoiceReader/internal/playback"
	"github.com/unalkalkan/VoiceReader/internal/speech"
	"github.com/unalkalkan/VoiceReader/internal/store"
	"github.com/unalkalkan/VoiceReader/internal/util"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// ErrNoDocument is returned by operations that need an open document
var ErrNoDocument = errors.New("no document loaded")

const (
	previewSentences = 10
	writeTimeout     = 5 * time.Second
)

var previewDelimiters = regexp.MustCompile(`[.!?]+`)

// Extractor turns a declared document stream into a Document
type Extractor interface {
	Extract(ctx context.Context, r io.Reader, mimeType string) (*types.Document, error)
}

// Options are the initial speech settings of a session
type Options struct {
	Voice    string
	Language string
	Rate     float64
	Pitch    float64
}

// Session is the single reading session of the application
type Session struct {
	extractor Extractor
	store     store.Store
	sequencer *playback.Sequencer
	logger    *slog.Logger
	language  string

	mu   sync.Mutex
	path string

	writes      sync.WaitGroup
	writeMu     sync.Mutex
	progressSeq atomic.Uint64

	CurrentDocument *observable.Value[*types.Document]
	Loading         *observable.Value[bool]
	Position        *observable.Value[int]
	Bookmarks       *observable.Value[[]types.Bookmark]
	RecentDocuments *observable.Value[[]types.DocumentRecord]
	SelectedVoice   *observable.Value[string]
	SpeechRate      *observable.Value[float64]
	SpeechPitch     *observable.Value[float64]
	Playing         *observable.Value[bool]
}

// NewSession creates a session reading through engine and persisting to st
func NewSession(extractor Extractor, st store.Store, engine speech.Engine, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Rate == 0 {
		opts.Rate = 1.0
	}
	if opts.Pitch == 0 {
		opts.Pitch = 1.0
	}

	seq := playback.NewSequencer(engine, logger)
	s := &Session{
		extractor:       extractor,
		store:           st,
		sequencer:       seq,
		logger:          logger,
		language:        opts.Language,
		CurrentDocument: observable.New[*types.Document](nil),
		Loading:         observable.New(false),
		Position:        observable.New(0),
		Bookmarks:       observable.New([]types.Bookmark{}),
		RecentDocuments: observable.New([]types.DocumentRecord{}),
		SelectedVoice:   observable.New(opts.Voice),
		SpeechRate:      observable.New(clampSetting(opts.Rate)),
		SpeechPitch:     observable.New(clampSetting(opts.Pitch)),
		Playing:         seq.Playing(),
	}

	seq.SetRate(s.SpeechRate.Get())
	seq.SetPitch(s.SpeechPitch.Get())
	seq.OnProgress(func(position int) {
		// The optimistic formula can run past the text when the last
		// sentence has no delimiter
		position = min(position, s.CurrentDocument.Get().Length())
		s.Position.Set(position)
		s.persistProgress(position)
	})
	seq.OnFinished(func() {
		s.background(func(ctx context.Context) error {
			_, err := s.CreateAutoBookmark(ctx)
			return err
		})
	})

	return s
}

// Initialize loads the recent documents and picks a default voice when none
// was configured
func (s *Session) Initialize(ctx context.Context) error {
	if err := s.RefreshRecent(ctx); err != nil {
		return err
	}

	voice := s.SelectedVoice.Get()
	if voice == "" {
		voices, err := s.sequencer.Engine().Voices(ctx)
		if err != nil {
			s.logger.Warn("failed to list voices", slog.Any("error", err))
			return nil
		}
		candidates := speech.SelectLanguage(voices, s.language)
		if len(candidates) == 0 {
			return nil
		}
		voice = candidates[0].ID
	}

	if err := s.SetVoice(voice); err != nil {
		s.logger.Warn("failed to select voice", slog.String("voice", voice), slog.Any("error", err))
	}
	return nil
}

// LoadDocument extracts r as mimeType and makes it the current document.
// On failure the current document is left unchanged.
func (s *Session) LoadDocument(ctx context.Context, path, mimeType string, r io.Reader) (*types.Document, error) {
	s.Loading.Set(true)
	defer s.Loading.Set(false)

	doc, err := s.extractor.Extract(ctx, r, mimeType)
	if err != nil {
		s.logger.Warn("document extraction failed",
			slog.String("path", path),
			slog.String("kind", string(parser.KindOf(err))),
			slog.Any("error", err))
		return nil, err
	}

	rec := types.DocumentRecord{
		Path:         path,
		Title:        doc.Title,
		Author:       doc.Author,
		TotalLength:  doc.Length(),
		LastReadTime: time.Now().UTC(),
		Type:         doc.Type,
	}
	existing, err := s.store.GetDocument(ctx, path)
	switch {
	case err == nil:
		rec.LastPosition = existing.LastPosition
		rec.Progress = existing.Progress
		rec.CurrentChapter = existing.CurrentChapter
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to read document record: %w", err)
	}

	if err := s.store.UpsertDocument(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save document record: %w", err)
	}

	s.mu.Lock()
	s.path = path
	s.mu.Unlock()

	s.sequencer.SetText(util.DocumentID(path), doc.Content)
	s.CurrentDocument.Set(doc)
	s.Position.Set(rec.LastPosition)
	s.sequencer.SeekToPosition(rec.LastPosition)

	if err := s.refreshBookmarks(ctx, path); err != nil {
		s.logger.Warn("failed to load bookmarks", slog.String("path", path), slog.Any("error", err))
	}
	if err := s.RefreshRecent(ctx); err != nil {
		s.logger.Warn("failed to load recent documents", slog.Any("error", err))
	}

	s.logger.Info("document loaded",
		slog.String("path", path),
		slog.String("type", string(doc.Type)),
		slog.Int("chapters", len(doc.Chapters)),
		slog.Int("position", rec.LastPosition))
	return doc, nil
}

// Summary describes the open document and the playback cursor
type Summary struct {
	Path           string             `json:"path,omitempty"`
	Title          string             `json:"title,omitempty"`
	Author         *string            `json:"author,omitempty"`
	Type           types.DocumentType `json:"type,omitempty"`
	Length         int                `json:"length"`
	Chapters       int                `json:"chapters"`
	CurrentChapter *string            `json:"current_chapter,omitempty"`
	Position       int                `json:"position"`
	Cursor         int                `json:"cursor"`
	Sentences      int                `json:"sentences"`
	State          string             `json:"state"`
	Playing        bool               `json:"playing"`
	Loading        bool               `json:"loading"`
}

// Summary returns a snapshot of the session
func (s *Session) Summary() Summary {
	sum := Summary{
		Path:      s.Path(),
		Position:  s.Position.Get(),
		Cursor:    s.sequencer.Cursor(),
		Sentences: len(s.sequencer.Sentences()),
		State:     s.sequencer.State().String(),
		Playing:   s.Playing.Get(),
		Loading:   s.Loading.Get(),
	}
	if doc := s.CurrentDocument.Get(); doc != nil {
		sum.Title = doc.Title
		sum.Author = doc.Author
		sum.Type = doc.Type
		sum.Length = doc.Length()
		sum.Chapters = len(doc.Chapters)
	}
	if ch := s.CurrentChapter(); ch != nil {
		sum.CurrentChapter = types.StringPtr(ch.Title)
	}
	return sum
}

// Path returns the source path of the current document
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Sequencer exposes the playback sequencer
func (s *Session) Sequencer() *playback.Sequencer {
	return s.sequencer
}

// RefreshRecent reloads the recent documents list from the store
func (s *Session) RefreshRecent(ctx context.Context) error {
	recs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	s.RecentDocuments.Set(recs)
	return nil
}

// DeleteDocument removes a document and its bookmarks from the catalog.
// Deleting the open document closes it.
func (s *Session) DeleteDocument(ctx context.Context, path string) error {
	if err := s.store.DeleteDocument(ctx, path); err != nil {
		return err
	}

	s.mu.Lock()
	current := s.path == path
	if current {
		s.path = ""
	}
	s.mu.Unlock()

	if current {
		s.sequencer.SetText("", "")
		s.CurrentDocument.Set(nil)
		s.Position.Set(0)
		s.Bookmarks.Set([]types.Bookmark{})
	}
	return s.RefreshRecent(ctx)
}

// CreateBookmark bookmarks the current position
func (s *Session) CreateBookmark(ctx context.Context, note string) (*types.Bookmark, error) {
	b, err := s.newBookmark(note, false)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertBookmark(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save bookmark: %w", err)
	}
	return b, s.refreshBookmarks(ctx, b.DocumentPath)
}

// CreateAutoBookmark replaces the document's auto bookmark with one at the
// current position
func (s *Session) CreateAutoBookmark(ctx context.Context) (*types.Bookmark, error) {
	b, err := s.newBookmark("", true)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceAutoBookmark(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save auto bookmark: %w", err)
	}
	return b, s.refreshBookmarks(ctx, b.DocumentPath)
}

// DeleteBookmark removes a bookmark by id
func (s *Session) DeleteBookmark(ctx context.Context, id string) error {
	if err := s.store.DeleteBookmark(ctx, id); err != nil {
		return err
	}
	if path := s.Path(); path != "" {
		return s.refreshBookmarks(ctx, path)
	}
	return nil
}

// UpdateBookmarkNote replaces the note of a bookmark of the current document
func (s *Session) UpdateBookmarkNote(ctx context.Context, id, note string) (*types.Bookmark, error) {
	for _, b := range s.Bookmarks.Get() {
		if b.ID != id {
			continue
		}
		b.Note = types.StringPtr(note)
		if err := s.store.UpdateBookmark(ctx, b); err != nil {
			return nil, err
		}
		return &b, s.refreshBookmarks(ctx, b.DocumentPath)
	}
	return nil, fmt.Errorf("bookmark %s: %w", id, store.ErrNotFound)
}

// JumpToBookmark moves the reading position to a bookmark of the current
// document
func (s *Session) JumpToBookmark(id string) error {
	for _, b := range s.Bookmarks.Get() {
		if b.ID == id {
			return s.UpdatePosition(b.Position)
		}
	}
	return fmt.Errorf("bookmark %s: %w", id, store.ErrNotFound)
}

// JumpToTOCEntry moves the reading position to the index-th top-level
// table of contents entry
func (s *Session) JumpToTOCEntry(index int) error {
	doc := s.CurrentDocument.Get()
	if doc == nil {
		return ErrNoDocument
	}
	if index < 0 || index >= len(doc.TableOfContents) {
		return fmt.Errorf("table of contents entry %d out of range", index)
	}
	return s.UpdatePosition(doc.TableOfContents[index].StartOffset)
}

// UpdatePosition sets the reading position, moves the sequencer cursor and
// persists progress in the background
func (s *Session) UpdatePosition(position int) error {
	doc := s.CurrentDocument.Get()
	if doc == nil {
		return ErrNoDocument
	}
	position = max(0, min(position, doc.Length()))

	s.Position.Set(position)
	s.sequencer.SeekToPosition(position)
	s.persistProgress(position)
	return nil
}

// CurrentChapter returns the first chapter containing the current position
func (s *Session) CurrentChapter() *types.Chapter {
	doc := s.CurrentDocument.Get()
	if doc == nil {
		return nil
	}
	position := s.Position.Get()
	for i := range doc.Chapters {
		ch := &doc.Chapters[i]
		if position >= ch.StartOffset && position <= ch.EndOffset {
			return ch
		}
	}
	return nil
}

// CurrentText previews the text following the current position: up to ten
// sentence fragments joined by ". ", with "..." appended when the limit was hit
func (s *Session) CurrentText() string {
	doc := s.CurrentDocument.Get()
	if doc == nil {
		return ""
	}

	content := []rune(doc.Content)
	position := max(0, min(s.Position.Get(), len(content)))
	sentences := previewDelimiters.Split(string(content[position:]), previewSentences+1)
	if len(sentences) > previewSentences {
		sentences = sentences[:previewSentences]
	}

	text := strings.Join(sentences, ". ")
	if len(sentences) == previewSentences {
		text += "..."
	}
	return text
}

// Play starts reading from the cursor, rewinding first when the previous
// run reached the end
func (s *Session) Play() error {
	if s.CurrentDocument.Get() == nil {
		return ErrNoDocument
	}
	if s.sequencer.Cursor() >= len(s.sequencer.Sentences()) {
		s.sequencer.Stop()
		s.Position.Set(0)
	}
	s.sequencer.Speak()
	return nil
}

// Pause halts reading and records an auto bookmark at the position reached
func (s *Session) Pause(ctx context.Context) error {
	if s.CurrentDocument.Get() == nil {
		return ErrNoDocument
	}
	speaking := s.sequencer.State() == playback.StateSpeaking
	s.sequencer.Pause()
	// the cursor may have advanced past the last delivered progress
	if doc := s.CurrentDocument.Get(); speaking && doc != nil {
		position := min(s.sequencer.Position().Get(), doc.Length())
		if position != s.Position.Get() {
			s.Position.Set(position)
			s.persistProgress(position)
		}
	}
	_, err := s.CreateAutoBookmark(ctx)
	return err
}

// Resume continues reading from the retained cursor
func (s *Session) Resume() error {
	if s.CurrentDocument.Get() == nil {
		return ErrNoDocument
	}
	s.sequencer.Resume()
	return nil
}

// Stop halts reading and rewinds to the start of the document
func (s *Session) Stop() {
	s.sequencer.Stop()
	if s.CurrentDocument.Get() == nil {
		return
	}
	s.Position.Set(0)
	s.persistProgress(0)
}

// Voices lists the voices of the session's engine
func (s *Session) Voices(ctx context.Context) ([]types.Voice, error) {
	return s.sequencer.Engine().Voices(ctx)
}

// SetVoice selects a voice by id
func (s *Session) SetVoice(id string) error {
	if err := s.sequencer.SetVoice(id); err != nil {
		return err
	}
	s.SelectedVoice.Set(id)
	return nil
}

// SetSpeechRate sets the speech rate, clamped into the supported range, and
// returns the value applied
func (s *Session) SetSpeechRate(rate float64) float64 {
	rate = clampSetting(rate)
	s.SpeechRate.Set(rate)
	s.sequencer.SetRate(rate)
	return rate
}

// SetSpeechPitch sets the speech pitch, clamped into the supported range,
// and returns the value applied
func (s *Session) SetSpeechPitch(pitch float64) float64 {
	pitch = clampSetting(pitch)
	s.SpeechPitch.Set(pitch)
	s.sequencer.SetPitch(pitch)
	return pitch
}

// Flush waits for background progress and bookmark writes to finish
func (s *Session) Flush() {
	s.writes.Wait()
}

// Close stops playback and flushes pending writes
func (s *Session) Close() {
	s.sequencer.Stop()
	s.sequencer.Wait()
	s.Flush()
}

func (s *Session) newBookmark(note string, auto bool) (*types.Bookmark, error) {
	doc := s.CurrentDocument.Get()
	path := s.Path()
	if doc == nil || path == "" {
		return nil, ErrNoDocument
	}

	b := &types.Bookmark{
		DocumentPath:  path,
		DocumentTitle: doc.Title,
		Position:      s.Position.Get(),
		Note:          types.StringPtr(note),
		Timestamp:     time.Now().UTC(),
		IsAuto:        auto,
	}
	if ch := s.CurrentChapter(); ch != nil {
		b.ChapterTitle = types.StringPtr(ch.Title)
	}
	return b, nil
}

func (s *Session) refreshBookmarks(ctx context.Context, path string) error {
	list, err := s.store.ListBookmarks(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to list bookmarks: %w", err)
	}
	s.Bookmarks.Set(list)
	return nil
}

// persistProgress writes position in the background. Writes are serialised
// and a write superseded by a newer one is skipped.
func (s *Session) persistProgress(position int) {
	doc := s.CurrentDocument.Get()
	path := s.Path()
	if doc == nil || path == "" {
		return
	}

	length := doc.Length()
	position = max(0, min(position, length))
	progress := 0.0
	if length > 0 {
		progress = float64(position) / float64(length)
	}
	seq := s.progressSeq.Add(1)

	s.background(func(ctx context.Context) error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		if s.progressSeq.Load() != seq {
			return nil
		}
		return s.store.UpdateProgress(ctx, path, position, progress)
	})
}

func (s *Session) background(fn func(ctx context.Context) error) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := fn(ctx); err != nil && !errors.Is(err, ErrNoDocument) {
			s.logger.Warn("background write failed", slog.Any("error", err))
		}
	}()
}

func clampSetting(v float64) float64 {
	return max(config.MinSpeechSetting, min(v, config.MaxSpeechSetting))
}
