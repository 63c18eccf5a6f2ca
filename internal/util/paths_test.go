package util

import "testing"

func TestPaths(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"audio", AudioPath("doc1", "utt-3", "mp3"), "documents/doc1/audio/utt-3.mp3"},
		{"source", SourcePath("doc1", ".epub"), "documents/doc1/source.epub"},
		{"record", RecordPath("doc1"), "records/doc1.json"},
		{"bookmarks", BookmarksPath("doc1"), "bookmarks/doc1.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDocumentID(t *testing.T) {
	a := DocumentID("/books/a.epub")
	if a != DocumentID("/books/a.epub") {
		t.Error("DocumentID must be stable")
	}
	if a == DocumentID("/books/b.epub") {
		t.Error("Different paths must yield different ids")
	}
	if len(a) != 36 {
		t.Errorf("Expected uuid formatted id, got %q", a)
	}
}
