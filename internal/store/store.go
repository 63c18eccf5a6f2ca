// Package store persists the reading state: the document catalog with
// per-document progress, and bookmarks.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// ErrNotFound is returned when a document record or bookmark does not exist
var ErrNotFound = errors.New("not found")

// Store is the reading state store. Writes with an existing key replace the
// stored row.
type Store interface {
	// UpsertDocument inserts or replaces the record keyed by its path
	UpsertDocument(ctx context.Context, rec types.DocumentRecord) error

	// GetDocument returns the record for path or ErrNotFound
	GetDocument(ctx context.Context, path string) (*types.DocumentRecord, error)

	// UpdateProgress sets the last position and progress of a record
	UpdateProgress(ctx context.Context, path string, position int, progress float64) error

	// ListDocuments returns all records, most recently read first
	ListDocuments(ctx context.Context) ([]types.DocumentRecord, error)

	// DeleteDocument removes a record and its bookmarks
	DeleteDocument(ctx context.Context, path string) error

	// InsertBookmark stores b, assigning an ID when empty; an existing ID is replaced
	InsertBookmark(ctx context.Context, b *types.Bookmark) error

	// ReplaceAutoBookmark deletes the document's auto bookmark and inserts b
	// as the new one in a single step
	ReplaceAutoBookmark(ctx context.Context, b *types.Bookmark) error

	// DeleteAutoBookmark removes the auto bookmark of a document, if any
	DeleteAutoBookmark(ctx context.Context, path string) error

	// GetAutoBookmark returns the auto bookmark of a document or ErrNotFound
	GetAutoBookmark(ctx context.Context, path string) (*types.Bookmark, error)

	// ListBookmarks returns the bookmarks of a document, newest first
	ListBookmarks(ctx context.Context, path string) ([]types.Bookmark, error)

	// ListAllBookmarks returns every bookmark, newest first
	ListAllBookmarks(ctx context.Context) ([]types.Bookmark, error)

	// UpdateBookmark replaces an existing bookmark or returns ErrNotFound
	UpdateBookmark(ctx context.Context, b types.Bookmark) error

	// DeleteBookmark removes a bookmark by ID
	DeleteBookmark(ctx context.Context, id string) error

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close releases the backend
	Close() error
}

// Open creates the store selected by cfg.Driver. The blob driver keeps its
// JSON files on adapter.
func Open(cfg types.StoreConfig, adapter storage.Adapter) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg.DSN)
	case "postgres":
		return NewGormStore(cfg.DSN)
	case "blob":
		if adapter == nil {
			return nil, fmt.Errorf("blob store requires a storage adapter")
		}
		return NewBlobStore(adapter), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

func prepareBookmark(b *types.Bookmark) error {
	if b.DocumentPath == "" {
		return fmt.Errorf("bookmark document path is required")
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func sortDocuments(recs []types.DocumentRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].LastReadTime.After(recs[j].LastReadTime)
	})
}

func sortBookmarks(bms []types.Bookmark) {
	sort.SliceStable(bms, func(i, j int) bool {
		return bms[i].Timestamp.After(bms[j].Timestamp)
	})
}
