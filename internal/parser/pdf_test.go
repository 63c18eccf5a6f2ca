package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

func TestPDFParser_Parse(t *testing.T) {
	parser := NewPDFParser()
	ctx := context.Background()

	t.Run("Garbage bytes", func(t *testing.T) {
		_, err := parser.Parse(ctx, []byte("%PDF-1.4 truncated"))
		if !IsKind(err, KindCorruptContainer) {
			t.Fatalf("Expected corrupt container error, got %v", err)
		}
	})

	t.Run("Empty input", func(t *testing.T) {
		_, err := parser.Parse(ctx, nil)
		if !IsKind(err, KindCorruptContainer) {
			t.Fatalf("Expected corrupt container error, got %v", err)
		}
	})
}

// buildPDF writes a minimal PDF with one Helvetica text line per page. An
// empty string produces a page with an empty content stream.
func buildPDF(pages []string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestPDFParser_Pages(t *testing.T) {
	doc, err := NewPDFParser().Parse(context.Background(), buildPDF([]string{"Hello page one", "", "Third page text"}))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if doc.Title != "PDF Document" {
		t.Errorf("Expected title 'PDF Document', got %q", doc.Title)
	}
	if doc.Author != nil {
		t.Errorf("Expected nil author, got %q", *doc.Author)
	}
	if doc.Type != types.DocumentTypePDF {
		t.Errorf("Expected type PDF, got %s", doc.Type)
	}
	if !strings.Contains(doc.Content, "Hello page one\n") || !strings.Contains(doc.Content, "Third page text\n") {
		t.Errorf("Expected every page to end with a line break, got %q", doc.Content)
	}
	if strings.Contains(doc.Content, "oneThird") {
		t.Errorf("Page texts fused together: %q", doc.Content)
	}

	if len(doc.Chapters) != 2 {
		t.Fatalf("Expected blank page to be skipped, got %d chapters", len(doc.Chapters))
	}
	perPage := types.RuneLen(doc.Content) / 3
	expected := []struct {
		title      string
		start, end int
	}{
		{"Page 1", 0, perPage},
		{"Page 3", 2 * perPage, 3 * perPage},
	}
	for i, want := range expected {
		ch := doc.Chapters[i]
		if ch.Title != want.title || ch.StartOffset != want.start || ch.EndOffset != want.end {
			t.Errorf("Chapter %d: expected %s [%d-%d], got %s [%d-%d]",
				i, want.title, want.start, want.end, ch.Title, ch.StartOffset, ch.EndOffset)
		}
		if doc.TableOfContents[i].Title != want.title || doc.TableOfContents[i].StartOffset != want.start {
			t.Errorf("TOC %d: unexpected entry %+v", i, doc.TableOfContents[i])
		}
	}
	if !strings.Contains(doc.Chapters[1].Body, "Third page text") {
		t.Errorf("Expected page body text, got %q", doc.Chapters[1].Body)
	}
}

func TestPDFParser_NoPages(t *testing.T) {
	doc, err := NewPDFParser().Parse(context.Background(), buildPDF(nil))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Content != "" || len(doc.Chapters) != 0 {
		t.Errorf("Expected empty document, got %q with %d chapters", doc.Content, len(doc.Chapters))
	}
}

func TestPDFParser_DocumentType(t *testing.T) {
	if got := NewPDFParser().DocumentType(); got != types.DocumentTypePDF {
		t.Errorf("Expected %q, got %q", types.DocumentTypePDF, got)
	}
}

func TestDocumentBuilderClampsOffsets(t *testing.T) {
	b := newDocumentBuilder(types.DocumentTypePDF, pdfDocumentTitle, nil)
	b.doc.Content = "abcdef"
	b.addChapter("Page 1", "abc", 0, 3)
	b.addChapter("Page 2", "def", 3, 9)

	doc := b.build()
	if doc.Chapters[1].EndOffset != 6 {
		t.Errorf("Expected end offset clamped to 6, got %d", doc.Chapters[1].EndOffset)
	}
	if doc.TableOfContents[1].StartOffset != 3 {
		t.Errorf("Expected TOC offset 3, got %d", doc.TableOfContents[1].StartOffset)
	}
}
