package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/internal/util"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// BlobStore keeps each document record and each document's bookmark list as
// a JSON object on a storage adapter. All operations are serialized by a
// single mutex, so one process must own the prefix.
type BlobStore struct {
	storage storage.Adapter
	mu      sync.Mutex
}

// NewBlobStore creates a store on top of a storage adapter
func NewBlobStore(adapter storage.Adapter) *BlobStore {
	return &BlobStore{storage: adapter}
}

func (s *BlobStore) UpsertDocument(ctx context.Context, rec types.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(ctx, util.RecordPath(util.DocumentID(rec.Path)), rec)
}

func (s *BlobStore) GetDocument(ctx context.Context, path string) (*types.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getDocument(ctx, path)
}

func (s *BlobStore) UpdateProgress(ctx context.Context, path string, position int, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getDocument(ctx, path)
	if err != nil {
		return err
	}
	rec.LastPosition = position
	rec.Progress = progress
	return s.putJSON(ctx, util.RecordPath(util.DocumentID(path)), rec)
}

func (s *BlobStore) ListDocuments(ctx context.Context) ([]types.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.storage.List(ctx, "records/")
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	out := make([]types.DocumentRecord, 0, len(keys))
	for _, key := range keys {
		if path.Ext(key) != ".json" {
			continue
		}
		var rec types.DocumentRecord
		if err := s.getJSON(ctx, key, &rec); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	sortDocuments(out)
	return out, nil
}

func (s *BlobStore) DeleteDocument(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := util.DocumentID(path)
	if err := s.storage.Delete(ctx, util.BookmarksPath(id)); err != nil {
		return fmt.Errorf("failed to delete bookmarks: %w", err)
	}
	if err := s.storage.Delete(ctx, util.RecordPath(id)); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *BlobStore) InsertBookmark(ctx context.Context, b *types.Bookmark) error {
	if err := prepareBookmark(b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.modifyBookmarks(ctx, b.DocumentPath, func(list []types.Bookmark) []types.Bookmark {
		return append(removeBookmark(list, b.ID), *b)
	})
}

func (s *BlobStore) ReplaceAutoBookmark(ctx context.Context, b *types.Bookmark) error {
	b.IsAuto = true
	if err := prepareBookmark(b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.modifyBookmarks(ctx, b.DocumentPath, func(list []types.Bookmark) []types.Bookmark {
		return append(removeAuto(removeBookmark(list, b.ID)), *b)
	})
}

func (s *BlobStore) DeleteAutoBookmark(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.modifyBookmarks(ctx, path, removeAuto)
}

func (s *BlobStore) GetAutoBookmark(ctx context.Context, path string) (*types.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadBookmarks(ctx, util.BookmarksPath(util.DocumentID(path)))
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		if b.IsAuto {
			found := b
			return &found, nil
		}
	}
	return nil, fmt.Errorf("auto bookmark for %s: %w", path, ErrNotFound)
}

func (s *BlobStore) ListBookmarks(ctx context.Context, path string) ([]types.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadBookmarks(ctx, util.BookmarksPath(util.DocumentID(path)))
	if err != nil {
		return nil, err
	}
	sortBookmarks(list)
	return list, nil
}

func (s *BlobStore) ListAllBookmarks(ctx context.Context) ([]types.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.allBookmarks(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Bookmark
	for _, list := range all {
		out = append(out, list...)
	}
	if out == nil {
		out = make([]types.Bookmark, 0)
	}
	sortBookmarks(out)
	return out, nil
}

func (s *BlobStore) UpdateBookmark(ctx context.Context, b types.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, list, err := s.findBookmark(ctx, b.ID)
	if err != nil {
		return err
	}

	// The bookmark may move to another document
	if err := s.putBookmarks(ctx, key, removeBookmark(list, b.ID)); err != nil {
		return err
	}
	return s.modifyBookmarks(ctx, b.DocumentPath, func(list []types.Bookmark) []types.Bookmark {
		return append(removeBookmark(list, b.ID), b)
	})
}

func (s *BlobStore) DeleteBookmark(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, list, err := s.findBookmark(ctx, id)
	if err != nil {
		return err
	}
	return s.putBookmarks(ctx, key, removeBookmark(list, id))
}

func (s *BlobStore) Ping(ctx context.Context) error {
	_, err := s.storage.Exists(ctx, "records/")
	return err
}

// Close is a no-op; the adapter is owned by the caller
func (s *BlobStore) Close() error {
	return nil
}

func (s *BlobStore) getDocument(ctx context.Context, docPath string) (*types.DocumentRecord, error) {
	var rec types.DocumentRecord
	if err := s.getJSON(ctx, util.RecordPath(util.DocumentID(docPath)), &rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("document %s: %w", docPath, ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *BlobStore) modifyBookmarks(ctx context.Context, docPath string, fn func([]types.Bookmark) []types.Bookmark) error {
	key := util.BookmarksPath(util.DocumentID(docPath))
	list, err := s.loadBookmarks(ctx, key)
	if err != nil {
		return err
	}
	return s.putBookmarks(ctx, key, fn(list))
}

func (s *BlobStore) loadBookmarks(ctx context.Context, key string) ([]types.Bookmark, error) {
	list := make([]types.Bookmark, 0)
	if err := s.getJSON(ctx, key, &list); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return make([]types.Bookmark, 0), nil
		}
		return nil, err
	}
	return list, nil
}

func (s *BlobStore) putBookmarks(ctx context.Context, key string, list []types.Bookmark) error {
	if len(list) == 0 {
		return s.storage.Delete(ctx, key)
	}
	return s.putJSON(ctx, key, list)
}

func (s *BlobStore) allBookmarks(ctx context.Context) (map[string][]types.Bookmark, error) {
	keys, err := s.storage.List(ctx, "bookmarks/")
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	out := make(map[string][]types.Bookmark, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		list, err := s.loadBookmarks(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = list
	}
	return out, nil
}

func (s *BlobStore) findBookmark(ctx context.Context, id string) (string, []types.Bookmark, error) {
	all, err := s.allBookmarks(ctx)
	if err != nil {
		return "", nil, err
	}
	for key, list := range all {
		for _, b := range list {
			if b.ID == id {
				return key, list, nil
			}
		}
	}
	return "", nil, fmt.Errorf("bookmark %s: %w", id, ErrNotFound)
}

func (s *BlobStore) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return storage.PutBytes(ctx, s.storage, key, data)
}

func (s *BlobStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := storage.GetBytes(ctx, s.storage, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func removeBookmark(list []types.Bookmark, id string) []types.Bookmark {
	out := list[:0:0]
	for _, b := range list {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

func removeAuto(list []types.Bookmark) []types.Bookmark {
	out := list[:0:0]
	for _, b := range list {
		if !b.IsAuto {
			out = append(out, b)
		}
	}
	return out
}
