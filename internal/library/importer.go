// Package library imports documents from a folder into the reading state
// store and keeps the catalog current while the folder changes.
package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unalkalkan/VoiceReader/internal/parser"
	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/internal/store"
	"github.com/unalkalkan/VoiceReader/internal/util"
	"github.com/unalkalkan/VoiceReader/pkg/types"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedFile is returned for files without a supported extension
var ErrUnsupportedFile = errors.New("unsupported document file")

const defaultConcurrency = 4

// Extractor turns a declared document stream into a Document
type Extractor interface {
	Extract(ctx context.Context, r io.Reader, mimeType string) (*types.Document, error)
}

// ScanResult summarizes a folder scan
type ScanResult struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// Importer extracts documents from disk and records them in the store
type Importer struct {
	extractor   Extractor
	store       store.Store
	blobs       storage.Adapter
	logger      *slog.Logger
	concurrency int

	mu         sync.RWMutex
	onImported func(types.DocumentRecord)
}

// NewImporter creates an importer. blobs may be nil, in which case source
// bytes are not archived.
func NewImporter(extractor Extractor, st store.Store, blobs storage.Adapter, concurrency int, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Importer{
		extractor:   extractor,
		store:       st,
		blobs:       blobs,
		logger:      logger,
		concurrency: concurrency,
	}
}

// OnImported registers fn to run after each successful import
func (im *Importer) OnImported(fn func(types.DocumentRecord)) {
	im.mu.Lock()
	im.onImported = fn
	im.mu.Unlock()
}

// Supported reports whether path has a document extension the importer handles
func Supported(path string) bool {
	return parser.MIMEForPath(path) != ""
}

// Import extracts the file at path and upserts its catalog record. Reading
// progress of an already known document is kept.
func (im *Importer) Import(ctx context.Context, path string) (*types.DocumentRecord, error) {
	mimeType := parser.MIMEForPath(path)
	if mimeType == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", absPath, err)
	}

	if im.blobs != nil {
		key := util.SourcePath(util.DocumentID(absPath), strings.ToLower(filepath.Ext(absPath)))
		if err := storage.PutBytes(ctx, im.blobs, key, data); err != nil {
			return nil, fmt.Errorf("failed to archive %s: %w", absPath, err)
		}
	}

	doc, err := im.extractor.Extract(ctx, bytes.NewReader(data), mimeType)
	if err != nil {
		return nil, err
	}

	rec := types.DocumentRecord{
		Path:         absPath,
		Title:        doc.Title,
		Author:       doc.Author,
		TotalLength:  doc.Length(),
		LastReadTime: time.Now().UTC(),
		Type:         doc.Type,
	}
	existing, err := im.store.GetDocument(ctx, absPath)
	switch {
	case err == nil:
		rec.LastPosition = existing.LastPosition
		rec.Progress = existing.Progress
		rec.CurrentChapter = existing.CurrentChapter
		rec.LastReadTime = existing.LastReadTime
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to read document record: %w", err)
	}

	if err := im.store.UpsertDocument(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save document record: %w", err)
	}

	im.logger.Info("document imported",
		slog.String("path", absPath),
		slog.String("type", string(rec.Type)),
		slog.Int("length", rec.TotalLength))

	im.mu.RLock()
	fn := im.onImported
	im.mu.RUnlock()
	if fn != nil {
		fn(rec)
	}
	return &rec, nil
}

// Scan imports every supported file below dir. Individual failures are
// logged and counted; only walking errors and cancellation abort the scan.
func (im *Importer) Scan(ctx context.Context, dir string) (ScanResult, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(p) && !strings.HasPrefix(d.Name(), ".") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	var imported, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)

	for _, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := im.Import(gctx, p); err != nil {
				failed.Add(1)
				im.logger.Warn("import failed",
					slog.String("path", p),
					slog.String("kind", string(parser.KindOf(err))),
					slog.Any("error", err))
				return nil
			}
			imported.Add(1)
			return nil
		})
	}

	result := ScanResult{}
	err = g.Wait()
	result.Imported = int(imported.Load())
	result.Failed = int(failed.Load())

	im.logger.Info("library scan finished",
		slog.String("dir", dir),
		slog.Int("imported", result.Imported),
		slog.Int("failed", result.Failed))
	return result, err
}
