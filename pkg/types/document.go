package types

import (
	"time"
	"unicode/utf8"
)

// DocumentType identifies the container format a document was extracted from
type DocumentType string

const (
	DocumentTypeEPUB DocumentType = "EPUB"
	DocumentTypePDF  DocumentType = "PDF"
	DocumentTypeText DocumentType = "TEXT"
)

// Document is the normalized, immutable result of extraction
type Document struct {
	Title           string       `json:"title"`
	Author          *string      `json:"author,omitempty"`
	Content         string       `json:"content"`
	Chapters        []Chapter    `json:"chapters"`
	TableOfContents []TocEntry   `json:"table_of_contents"`
	Type            DocumentType `json:"type"`
}

// Length returns the content length in characters (runes)
func (d *Document) Length() int {
	if d == nil {
		return 0
	}
	return RuneLen(d.Content)
}

// Chapter is a contiguous body of text inside Document.Content.
// Offsets are character offsets; for PDF documents they are approximate
// boundary hints rather than exact positions.
type Chapter struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// TocEntry is a node of the table of contents
type TocEntry struct {
	Title       string     `json:"title"`
	Level       int        `json:"level"` // 0 = top
	StartOffset int        `json:"start_offset"`
	Children    []TocEntry `json:"children,omitempty"`
}

// DocumentRecord is the persisted catalog entry for a source path
type DocumentRecord struct {
	Path           string       `json:"path"`
	Title          string       `json:"title"`
	Author         *string      `json:"author,omitempty"`
	LastPosition   int          `json:"last_position"`
	TotalLength    int          `json:"total_length"`
	CurrentChapter *string      `json:"current_chapter,omitempty"`
	Progress       float64      `json:"progress"` // 0-1
	LastReadTime   time.Time    `json:"last_read_time"`
	Type           DocumentType `json:"type"`
}

// Bookmark marks a position inside a document.
// At most one auto bookmark exists per document.
type Bookmark struct {
	ID            string    `json:"id"`
	DocumentPath  string    `json:"document_path"`
	DocumentTitle string    `json:"document_title"`
	Position      int       `json:"position"`
	ChapterTitle  *string   `json:"chapter_title,omitempty"`
	Note          *string   `json:"note,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	IsAuto        bool      `json:"is_auto"`
}

// Voice represents a speech engine voice with metadata
type Voice struct {
	ID          string   `json:"id"`          // Engine-specific voice ID
	Name        string   `json:"name"`        // Human-readable name
	Languages   []string `json:"languages"`   // Supported language codes (ISO-639-1)
	Gender      string   `json:"gender"`      // "male", "female", "neutral", or empty
	Accent      string   `json:"accent"`      // Regional accent (e.g., "british", "american")
	Description string   `json:"description"` // Additional description
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RuneLen counts characters the way document offsets do
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
