package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"
)

const testContainerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>%TITLE%</dc:title>
    <dc:creator>%CREATOR%</dc:creator>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="c1" href="one.xhtml" media-type="application/xhtml+xml"/>
    <item id="blank" href="blank.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="two.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="c1"/>
    <itemref idref="blank"/>
    <itemref idref="c2"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="p1" playOrder="1">
      <navLabel><text>Opening</text></navLabel>
      <content src="one.xhtml#start"/>
    </navPoint>
  </navMap>
</ncx>`

func buildTestEPUB(t *testing.T, title, creator string) []byte {
	t.Helper()

	files := []struct {
		name string
		body string
	}{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", testContainerXML},
		{"OEBPS/content.opf", strings.NewReplacer("%TITLE%", title, "%CREATOR%", creator).Replace(testOPF)},
		{"OEBPS/toc.ncx", testNCX},
		{"OEBPS/one.xhtml", "<html><body><p>Hello   &amp; <b>welcome</b>.</p>\n</body></html>"},
		{"OEBPS/blank.xhtml", "<html><body>  <br/> </body></html>"},
		{"OEBPS/two.xhtml", "<html><body><p>Second part.</p></body></html>"},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("Failed to add %s: %v", f.name, err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatalf("Failed to write %s: %v", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestEPUBParser_Parse(t *testing.T) {
	parser := NewEPUBParser()
	ctx := context.Background()

	t.Run("Spine chapters", func(t *testing.T) {
		doc, err := parser.Parse(ctx, buildTestEPUB(t, "A Book", "Jo Writer"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}

		if doc.Title != "A Book" {
			t.Errorf("Expected title 'A Book', got %q", doc.Title)
		}
		if doc.Author == nil || *doc.Author != "Jo Writer" {
			t.Errorf("Expected author 'Jo Writer', got %v", doc.Author)
		}

		if len(doc.Chapters) != 2 {
			t.Fatalf("Expected blank spine item to be skipped, got %d chapters", len(doc.Chapters))
		}

		first, second := doc.Chapters[0], doc.Chapters[1]
		if first.Title != "Opening" {
			t.Errorf("Expected NCX label 'Opening', got %q", first.Title)
		}
		if first.Body != "Hello & welcome." {
			t.Errorf("Unexpected first body %q", first.Body)
		}
		if second.Title != "Chapter 3" {
			t.Errorf("Expected spine index title 'Chapter 3', got %q", second.Title)
		}
		if first.StartOffset != 0 || first.EndOffset != 16 {
			t.Errorf("Unexpected first offsets %d..%d", first.StartOffset, first.EndOffset)
		}
		if second.StartOffset != first.EndOffset+2 {
			t.Errorf("Expected second chapter to start after separator, got %d", second.StartOffset)
		}

		wantContent := "Hello & welcome.\n\nSecond part.\n\n"
		if doc.Content != wantContent {
			t.Errorf("Content = %q, want %q", doc.Content, wantContent)
		}
	})

	t.Run("Missing metadata", func(t *testing.T) {
		doc, err := parser.Parse(ctx, buildTestEPUB(t, "", ""))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if doc.Title != "Unknown Title" {
			t.Errorf("Expected fallback title, got %q", doc.Title)
		}
		if doc.Author != nil {
			t.Errorf("Expected nil author, got %q", *doc.Author)
		}
	})

	t.Run("Not a zip", func(t *testing.T) {
		_, err := parser.Parse(ctx, []byte("definitely not an epub"))
		if !IsKind(err, KindCorruptContainer) {
			t.Fatalf("Expected corrupt container error, got %v", err)
		}
	})
}

func TestPlainText(t *testing.T) {
	tests := map[string]string{
		"<p>a</p>":                   "a",
		"  <div>x\n\n y </div> ":     "x y",
		"&lt;tag&gt; &quot;q&quot;":  `<tag> "q"`,
		"<p>joined</p><p>words</p>":  "joinedwords",
		"<html><head></head></html>": "",
	}
	for in, want := range tests {
		if got := plainText(in); got != want {
			t.Errorf("plainText(%q) = %q, want %q", in, got, want)
		}
	}
}
