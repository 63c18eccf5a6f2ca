package util

import (
	"fmt"
	"path"

	"github.com/google/uuid"
)

// DocumentID derives a stable storage-safe identifier from a document path
func DocumentID(documentPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(documentPath)).String()
}

// AudioPath returns the storage path for a synthesized utterance
func AudioPath(documentID, utteranceID, format string) string {
	return path.Join("documents", documentID, "audio", fmt.Sprintf("%s.%s", utteranceID, format))
}

// SourcePath returns the storage path for a document's original bytes
func SourcePath(documentID, ext string) string {
	return path.Join("documents", documentID, "source"+ext)
}

// RecordPath returns the storage path for a document record in the blob store
func RecordPath(documentID string) string {
	return path.Join("records", documentID+".json")
}

// BookmarksPath returns the storage path for a document's bookmark list in
// the blob store
func BookmarksPath(documentID string) string {
	return path.Join("bookmarks", documentID+".json")
}

// AudioFormats returns the audio formats an engine may be asked to produce
func AudioFormats() []string {
	return []string{"mp3", "wav", "opus", "flac"}
}
