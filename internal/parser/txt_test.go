package parser

import (
	"context"
	"testing"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

func TestTXTParser_Parse(t *testing.T) {
	parser := NewTXTParser()
	ctx := context.Background()

	t.Run("Two sections", func(t *testing.T) {
		data := "Hello.\n\nWorld."

		doc, err := parser.Parse(ctx, []byte(data))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}

		if doc.Title != "Text Document" || doc.Author != nil {
			t.Errorf("Unexpected metadata: title=%q author=%v", doc.Title, doc.Author)
		}
		if doc.Content != data {
			t.Errorf("Expected content to be the input verbatim, got %q", doc.Content)
		}
		if len(doc.Chapters) != 2 {
			t.Fatalf("Expected 2 sections, got %d", len(doc.Chapters))
		}

		want := []types.Chapter{
			{Title: "Section 1", Body: "Hello.", StartOffset: 0, EndOffset: 6},
			{Title: "Section 2", Body: "World.", StartOffset: 8, EndOffset: 14},
		}
		for i, ch := range doc.Chapters {
			if ch != want[i] {
				t.Errorf("Chapter %d = %+v, want %+v", i, ch, want[i])
			}
		}
	})

	t.Run("Offsets index content", func(t *testing.T) {
		data := "\n\n  First line\nsecond line  \n\n\n\tThird ü section\n"

		doc, err := parser.Parse(ctx, []byte(data))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(doc.Chapters) != 2 {
			t.Fatalf("Expected 2 sections, got %d", len(doc.Chapters))
		}

		runes := []rune(doc.Content)
		for _, ch := range doc.Chapters {
			if ch.StartOffset > ch.EndOffset || ch.EndOffset > len(runes) {
				t.Fatalf("Offsets out of range: %+v", ch)
			}
			if got := string(runes[ch.StartOffset:ch.EndOffset]); got != ch.Body {
				t.Errorf("content[%d:%d] = %q, want body %q", ch.StartOffset, ch.EndOffset, got, ch.Body)
			}
		}
		if doc.Chapters[1].Body != "Third ü section" {
			t.Errorf("Unexpected second body %q", doc.Chapters[1].Body)
		}
	})

	t.Run("Table of contents mirrors chapters", func(t *testing.T) {
		doc, err := parser.Parse(ctx, []byte("a\n\nb\n\nc"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(doc.TableOfContents) != len(doc.Chapters) {
			t.Fatalf("Expected %d TOC entries, got %d", len(doc.Chapters), len(doc.TableOfContents))
		}
		for i, entry := range doc.TableOfContents {
			if entry.Level != 0 || entry.Title != doc.Chapters[i].Title || entry.StartOffset != doc.Chapters[i].StartOffset {
				t.Errorf("TOC entry %d = %+v does not match chapter %+v", i, entry, doc.Chapters[i])
			}
		}
	})

	t.Run("Empty file", func(t *testing.T) {
		doc, err := parser.Parse(ctx, []byte(""))
		if err != nil {
			t.Fatalf("Empty text should parse, got %v", err)
		}
		if len(doc.Chapters) != 0 || doc.Content != "" {
			t.Errorf("Expected empty document, got %+v", doc)
		}
	})

	t.Run("Only blank lines", func(t *testing.T) {
		doc, err := parser.Parse(ctx, []byte("\n   \n\t\n"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(doc.Chapters) != 0 {
			t.Errorf("Expected no sections, got %d", len(doc.Chapters))
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := parser.Parse(cctx, []byte("a\nb")); err == nil {
			t.Error("Expected error for cancelled context")
		}
	})
}

func TestTXTParser_DocumentType(t *testing.T) {
	if got := NewTXTParser().DocumentType(); got != types.DocumentTypeText {
		t.Errorf("Expected %q, got %q", types.DocumentTypeText, got)
	}
}
