package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/unalkalkan/VoiceReader/internal/parser"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher imports documents as they appear or change in a library folder
type Watcher struct {
	importer *Importer
	dir      string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher for dir. Events for the same path arriving
// within debounce of each other cause a single import.
func NewWatcher(importer *Importer, dir string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		importer: importer,
		dir:      dir,
		debounce: debounce,
		logger:   logger,
	}
}

// Run processes file change events until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.dir); err != nil {
		return err
	}

	w.logger.Info("watcher: started", slog.String("dir", w.dir))

	ready := make(chan string)
	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Reset(w.debounce)
			return
		}
		pending[path] = time.AfterFunc(w.debounce, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case path := <-ready:
			if _, err := w.importer.Import(ctx, path); err != nil {
				w.logger.Warn("watcher: import failed",
					slog.String("path", path),
					slog.String("kind", string(parser.KindOf(err))),
					slog.Any("error", err))
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						w.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.Any("error", addErr))
					}
					w.scheduleExisting(ev.Name, schedule)
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && Supported(ev.Name) {
				schedule(ev.Name)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.Any("error", watchErr))
		}
	}
}

// scheduleExisting queues documents already present in a new directory
func (w *Watcher) scheduleExisting(dir string, schedule func(string)) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !Supported(p) {
			return nil
		}
		schedule(p)
		return nil
	})
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
