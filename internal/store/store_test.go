package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// backends returns every store implementation that can run in a unit test.
// Postgres runs when VR_TEST_POSTGRES_DSN is set.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	out := map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reader.db"))
			if err != nil {
				t.Fatalf("Failed to open sqlite store: %v", err)
			}
			return s
		},
		"blob": func(t *testing.T) Store {
			adapter, err := storage.NewLocalAdapter(t.TempDir())
			if err != nil {
				t.Fatalf("Failed to create adapter: %v", err)
			}
			return NewBlobStore(adapter)
		},
	}
	if dsn := os.Getenv("VR_TEST_POSTGRES_DSN"); dsn != "" {
		out["postgres"] = func(t *testing.T) Store {
			s, err := NewGormStore(dsn)
			if err != nil {
				t.Fatalf("Failed to open postgres store: %v", err)
			}
			s.db.Exec("DELETE FROM bookmark_models")
			s.db.Exec("DELETE FROM document_models")
			return s
		}
	}
	return out
}

func record(path string, lastRead time.Time) types.DocumentRecord {
	return types.DocumentRecord{
		Path:         path,
		Title:        "Title of " + path,
		Author:       types.StringPtr("Author"),
		TotalLength:  1000,
		LastReadTime: lastRead,
		Type:         types.DocumentTypeText,
	}
}

func TestStores(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("DocumentUpsertReplaces", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				testDocumentUpsert(t, s)
			})
			t.Run("ProgressRoundTrip", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				testProgressRoundTrip(t, s)
			})
			t.Run("RecentOrdering", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				testRecentOrdering(t, s)
			})
			t.Run("Bookmarks", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				testBookmarks(t, s)
			})
			t.Run("AutoBookmarkReplace", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				testAutoBookmarkReplace(t, s)
			})
			t.Run("DeleteDocumentCascades", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				testDeleteDocument(t, s)
			})
			t.Run("Ping", func(t *testing.T) {
				s := open(t)
				defer s.Close()
				if err := s.Ping(context.Background()); err != nil {
					t.Errorf("Ping failed: %v", err)
				}
			})
		})
	}
}

func testDocumentUpsert(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.GetDocument(ctx, "/missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	rec := record("/books/a.txt", now)
	if err := s.UpsertDocument(ctx, rec); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	rec.Title = "Renamed"
	rec.Author = nil
	rec.CurrentChapter = types.StringPtr("Section 2")
	if err := s.UpsertDocument(ctx, rec); err != nil {
		t.Fatalf("Second UpsertDocument failed: %v", err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected upsert to replace, got %d records", len(docs))
	}

	got, err := s.GetDocument(ctx, rec.Path)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Title != "Renamed" || got.Author != nil || got.CurrentChapter == nil || *got.CurrentChapter != "Section 2" {
		t.Errorf("Unexpected record: %+v", got)
	}
	if !got.LastReadTime.Equal(now) {
		t.Errorf("LastReadTime = %v, want %v", got.LastReadTime, now)
	}
}

func testProgressRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	rec := record("/books/p.txt", time.Now())
	if err := s.UpsertDocument(ctx, rec); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	position := 250
	progress := float64(position) / float64(rec.TotalLength)
	if err := s.UpdateProgress(ctx, rec.Path, position, progress); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	got, err := s.GetDocument(ctx, rec.Path)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.LastPosition != position || got.Progress != progress {
		t.Errorf("Round trip = (%d, %v), want (%d, %v)", got.LastPosition, got.Progress, position, progress)
	}

	if err := s.UpdateProgress(ctx, "/nope.txt", 1, 0.1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown document, got %v", err)
	}
}

func testRecentOrdering(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Now().UTC()
	for i, p := range []string{"/old.txt", "/newest.txt", "/middle.txt"} {
		offsets := []time.Duration{-2 * time.Hour, 0, -time.Hour}
		if err := s.UpsertDocument(ctx, record(p, base.Add(offsets[i]))); err != nil {
			t.Fatalf("UpsertDocument failed: %v", err)
		}
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	want := []string{"/newest.txt", "/middle.txt", "/old.txt"}
	if len(docs) != len(want) {
		t.Fatalf("Expected %d documents, got %d", len(want), len(docs))
	}
	for i := range want {
		if docs[i].Path != want[i] {
			t.Errorf("docs[%d] = %s, want %s", i, docs[i].Path, want[i])
		}
	}
}

func testBookmarks(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Now().UTC()

	first := types.Bookmark{DocumentPath: "/a.txt", DocumentTitle: "A", Position: 10, Timestamp: base}
	second := types.Bookmark{DocumentPath: "/a.txt", DocumentTitle: "A", Position: 20, Note: types.StringPtr("note"), Timestamp: base.Add(time.Minute)}
	other := types.Bookmark{DocumentPath: "/b.txt", DocumentTitle: "B", Position: 5, Timestamp: base.Add(2 * time.Minute)}

	for _, b := range []*types.Bookmark{&first, &second, &other} {
		if err := s.InsertBookmark(ctx, b); err != nil {
			t.Fatalf("InsertBookmark failed: %v", err)
		}
		if b.ID == "" {
			t.Fatal("InsertBookmark should assign an id")
		}
	}

	list, err := s.ListBookmarks(ctx, "/a.txt")
	if err != nil {
		t.Fatalf("ListBookmarks failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("Expected newest first, got %+v", list)
	}
	if list[0].Note == nil || *list[0].Note != "note" {
		t.Errorf("Note not persisted: %+v", list[0])
	}

	all, err := s.ListAllBookmarks(ctx)
	if err != nil {
		t.Fatalf("ListAllBookmarks failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != other.ID {
		t.Errorf("Unexpected all bookmarks: %+v", all)
	}

	first.Note = types.StringPtr("edited")
	if err := s.UpdateBookmark(ctx, first); err != nil {
		t.Fatalf("UpdateBookmark failed: %v", err)
	}
	list, _ = s.ListBookmarks(ctx, "/a.txt")
	if list[1].Note == nil || *list[1].Note != "edited" {
		t.Errorf("Update not applied: %+v", list[1])
	}
	if err := s.UpdateBookmark(ctx, types.Bookmark{ID: "missing", DocumentPath: "/a.txt"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating missing bookmark, got %v", err)
	}

	if err := s.DeleteBookmark(ctx, second.ID); err != nil {
		t.Fatalf("DeleteBookmark failed: %v", err)
	}
	if err := s.DeleteBookmark(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
	list, _ = s.ListBookmarks(ctx, "/a.txt")
	if len(list) != 1 {
		t.Errorf("Expected 1 bookmark after delete, got %d", len(list))
	}

	if err := s.InsertBookmark(ctx, &types.Bookmark{}); err == nil {
		t.Error("Expected error for bookmark without document path")
	}
}

func testAutoBookmarkReplace(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Now().UTC()

	manual := types.Bookmark{DocumentPath: "/a.txt", Position: 1, Timestamp: base}
	if err := s.InsertBookmark(ctx, &manual); err != nil {
		t.Fatalf("InsertBookmark failed: %v", err)
	}

	if _, err := s.GetAutoBookmark(ctx, "/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected no auto bookmark yet, got %v", err)
	}

	firstAuto := types.Bookmark{DocumentPath: "/a.txt", Position: 100, Timestamp: base.Add(time.Second)}
	if err := s.ReplaceAutoBookmark(ctx, &firstAuto); err != nil {
		t.Fatalf("ReplaceAutoBookmark failed: %v", err)
	}
	secondAuto := types.Bookmark{DocumentPath: "/a.txt", Position: 200, Timestamp: base.Add(2 * time.Second)}
	if err := s.ReplaceAutoBookmark(ctx, &secondAuto); err != nil {
		t.Fatalf("ReplaceAutoBookmark failed: %v", err)
	}

	list, err := s.ListBookmarks(ctx, "/a.txt")
	if err != nil {
		t.Fatalf("ListBookmarks failed: %v", err)
	}
	autos := 0
	for _, b := range list {
		if b.IsAuto {
			autos++
			if b.Position != 200 {
				t.Errorf("Expected newest auto bookmark, got position %d", b.Position)
			}
		}
	}
	if autos != 1 || len(list) != 2 {
		t.Errorf("Expected exactly one auto bookmark alongside the manual one, got %+v", list)
	}

	got, err := s.GetAutoBookmark(ctx, "/a.txt")
	if err != nil || got.ID != secondAuto.ID {
		t.Errorf("GetAutoBookmark = %+v, %v", got, err)
	}

	if err := s.DeleteAutoBookmark(ctx, "/a.txt"); err != nil {
		t.Fatalf("DeleteAutoBookmark failed: %v", err)
	}
	list, _ = s.ListBookmarks(ctx, "/a.txt")
	if len(list) != 1 || list[0].IsAuto {
		t.Errorf("Expected only the manual bookmark, got %+v", list)
	}
}

func testDeleteDocument(t *testing.T, s Store) {
	ctx := context.Background()
	rec := record("/gone.txt", time.Now())
	if err := s.UpsertDocument(ctx, rec); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}
	if err := s.InsertBookmark(ctx, &types.Bookmark{DocumentPath: rec.Path, Timestamp: time.Now()}); err != nil {
		t.Fatalf("InsertBookmark failed: %v", err)
	}

	if err := s.DeleteDocument(ctx, rec.Path); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if _, err := s.GetDocument(ctx, rec.Path); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected record to be gone, got %v", err)
	}
	list, err := s.ListBookmarks(ctx, rec.Path)
	if err != nil || len(list) != 0 {
		t.Errorf("Expected bookmarks to be gone, got %v (%v)", list, err)
	}
}

func TestOpen(t *testing.T) {
	adapter, err := storage.NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}

	s, err := Open(types.StoreConfig{Driver: "blob"}, adapter)
	if err != nil {
		t.Fatalf("Open(blob) failed: %v", err)
	}
	if _, ok := s.(*BlobStore); !ok {
		t.Errorf("Expected *BlobStore, got %T", s)
	}

	s, err = Open(types.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "r.db")}, nil)
	if err != nil {
		t.Fatalf("Open(sqlite) failed: %v", err)
	}
	s.Close()

	if _, err := Open(types.StoreConfig{Driver: "blob"}, nil); err == nil {
		t.Error("Expected error for blob store without adapter")
	}
	if _, err := Open(types.StoreConfig{Driver: "mysql"}, nil); err == nil {
		t.Error("Expected error for unknown driver")
	}
}

func TestGormLoggerUsesSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := newGormLogger(slog.NewJSONHandler(&buf, nil))

	logger.Info(context.Background(), "hidden %s", "info")
	logger.Warn(context.Background(), "slow %s", "query")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected a single JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("Expected WARN level, got %v", entry["level"])
	}
	if msg, _ := entry["msg"].(string); !bytes.Contains([]byte(msg), []byte("slow query")) {
		t.Errorf("Expected gorm message in slog entry, got %q", msg)
	}
}
