package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned by Get when nothing is stored at the path
var ErrNotFound = errors.New("object not found")

// Adapter is the blob storage used for source documents, synthesized audio
// and the blob-backed reading state store
type Adapter interface {
	// Put stores data at the given path, replacing any previous object
	Put(ctx context.Context, path string, data io.Reader) error

	// Get retrieves data from the given path; missing objects yield ErrNotFound
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes data at the given path; deleting a missing object is not an error
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)

	// List returns slash-separated paths matching the given prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Close cleans up any resources
	Close() error
}

// PutBytes stores data at path
func PutBytes(ctx context.Context, a Adapter, path string, data []byte) error {
	return a.Put(ctx, path, bytes.NewReader(data))
}

// GetBytes reads the whole object at path
func GetBytes(ctx context.Context, a Adapter, path string) ([]byte, error) {
	rc, err := a.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
