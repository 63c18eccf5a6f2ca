package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

func TestLocalAdapter(t *testing.T) {
	tmpDir := t.TempDir()
	adapter, err := NewLocalAdapter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create local adapter: %v", err)
	}
	defer adapter.Close()

	ctx := context.Background()
	testPath := "documents/doc1/source.txt"
	testData := []byte("Hello, World!")

	t.Run("Put", func(t *testing.T) {
		if err := adapter.Put(ctx, testPath, bytes.NewReader(testData)); err != nil {
			t.Fatalf("Failed to put data: %v", err)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := adapter.Exists(ctx, testPath)
		if err != nil {
			t.Fatalf("Failed to check existence: %v", err)
		}
		if !exists {
			t.Error("File should exist after Put")
		}
	})

	t.Run("Get", func(t *testing.T) {
		data, err := GetBytes(ctx, adapter, testPath)
		if err != nil {
			t.Fatalf("Failed to get data: %v", err)
		}
		if !bytes.Equal(data, testData) {
			t.Errorf("Expected %s, got %s", testData, data)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := PutBytes(ctx, adapter, testPath, []byte("v2")); err != nil {
			t.Fatalf("Failed to overwrite: %v", err)
		}
		data, err := GetBytes(ctx, adapter, testPath)
		if err != nil || string(data) != "v2" {
			t.Errorf("Expected v2, got %q (%v)", data, err)
		}
	})

	t.Run("List", func(t *testing.T) {
		PutBytes(ctx, adapter, "documents/doc1/audio/sentence_0.mp3", []byte("a"))
		PutBytes(ctx, adapter, "records/doc1.json", []byte("{}"))

		paths, err := adapter.List(ctx, "documents/")
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}
		sort.Strings(paths)
		want := []string{"documents/doc1/audio/sentence_0.mp3", "documents/doc1/source.txt"}
		if fmt.Sprint(paths) != fmt.Sprint(want) {
			t.Errorf("List = %v, want %v", paths, want)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := adapter.Delete(ctx, testPath); err != nil {
			t.Fatalf("Failed to delete data: %v", err)
		}
		exists, err := adapter.Exists(ctx, testPath)
		if err != nil {
			t.Fatalf("Failed to check existence: %v", err)
		}
		if exists {
			t.Error("File should not exist after Delete")
		}
		if err := adapter.Delete(ctx, testPath); err != nil {
			t.Errorf("Deleting a missing file should succeed, got %v", err)
		}
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		_, err := adapter.Get(ctx, "non-existent.txt")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("KeysStayInsideBase", func(t *testing.T) {
		if err := PutBytes(ctx, adapter, "../escape.txt", []byte("x")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(tmpDir, "escape.txt")); err != nil {
			t.Errorf("Expected key to be confined to base dir: %v", err)
		}
		if err := PutBytes(ctx, adapter, "", []byte("x")); err == nil {
			t.Error("Expected error for empty key")
		}
	})
}

func TestLocalAdapterConcurrency(t *testing.T) {
	adapter, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create local adapter: %v", err)
	}
	defer adapter.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			// Every writer targets the same key; the last rename wins
			data := []byte(fmt.Sprintf("writer %d", idx))
			if err := PutBytes(ctx, adapter, "shared.json", data); err != nil {
				t.Errorf("Failed to put data: %v", err)
			}
		}(i)
	}
	wg.Wait()

	data, err := GetBytes(ctx, adapter, "shared.json")
	if err != nil {
		t.Fatalf("Failed to read shared key: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("writer ")) {
		t.Errorf("Unexpected content %q", data)
	}

	paths, err := adapter.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("Expected temp files to be cleaned up, got %v", paths)
	}
}

func TestNewAdapter(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	adapter, err := NewAdapter(types.StorageConfig{
		Adapter: "local",
		Local:   types.LocalStorageOpts{BasePath: base},
		Options: map[string]string{"prefix": "/reader/"},
	})
	if err != nil {
		t.Fatalf("NewAdapter failed: %v", err)
	}
	defer adapter.Close()

	if err := PutBytes(ctx, adapter, "a.txt", []byte("x")); err != nil {
		t.Fatalf("PutBytes failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "reader", "a.txt")); err != nil {
		t.Errorf("Expected object below prefix directory: %v", err)
	}

	if _, err := NewAdapter(types.StorageConfig{Adapter: "ftp"}); err == nil {
		t.Error("Expected error for unknown adapter")
	}
}
