package parser

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

const (
	unknownTitle     = "Unknown Title"
	ncxMediaType     = "application/x-dtbncx+xml"
	chapterSeparator = "\n\n"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// EPUBParser parses ePUB files
type EPUBParser struct{}

// NewEPUBParser creates a new ePUB parser
func NewEPUBParser() *EPUBParser {
	return &EPUBParser{}
}

// Parse walks the spine in reading order. Each non-blank spine item becomes
// one chapter, and chapters are joined in content by a blank line.
func (p *EPUBParser) Parse(ctx context.Context, data []byte) (*types.Document, error) {
	rc, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, corrupt(MIMETypeEPUB, fmt.Errorf("failed to open epub: %w", err))
	}

	if len(rc.Rootfiles) == 0 {
		return nil, corrupt(MIMETypeEPUB, fmt.Errorf("no rootfiles found in epub"))
	}

	book := rc.Rootfiles[0]

	title := strings.TrimSpace(book.Metadata.Title)
	if title == "" {
		title = unknownTitle
	}
	builder := newDocumentBuilder(types.DocumentTypeEPUB, title, types.StringPtr(strings.TrimSpace(book.Metadata.Creator)))

	labels := navLabels(book)

	var content strings.Builder
	offset := 0
	for i, ref := range book.Spine.Itemrefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ref.Item == nil {
			continue
		}

		raw, err := readItem(ref.Item)
		if err != nil {
			return nil, corrupt(MIMETypeEPUB, fmt.Errorf("failed to read spine item %q: %w", ref.Item.HREF, err))
		}

		body := plainText(raw)
		if body == "" {
			continue
		}

		chapterTitle := labels.lookup(ref.Item.HREF)
		if chapterTitle == "" {
			chapterTitle = fmt.Sprintf("Chapter %d", i+1)
		}

		end := offset + types.RuneLen(body)
		builder.addChapter(chapterTitle, body, offset, end)

		content.WriteString(body)
		content.WriteString(chapterSeparator)
		offset = end + len(chapterSeparator)
	}

	builder.doc.Content = content.String()
	return builder.build(), nil
}

// SupportedTypes returns the declared MIME types routed to this parser
func (p *EPUBParser) SupportedTypes() []string {
	return []string{MIMETypeEPUB}
}

// DocumentType returns the type of documents this parser produces
func (p *EPUBParser) DocumentType() types.DocumentType {
	return types.DocumentTypeEPUB
}

func readItem(item *epub.Item) (string, error) {
	r, err := item.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// plainText strips markup, decodes entities and collapses whitespace
func plainText(markup string) string {
	text := tagPattern.ReplaceAllString(markup, "")
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NCX XML structures for reading declared item titles from toc.ncx
type ncx struct {
	NavMap struct {
		NavPoints []navPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type navPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

// labelIndex maps item hrefs (fragment stripped) to the first navLabel
// pointing at them
type labelIndex map[string]string

func (l labelIndex) lookup(href string) string {
	if href == "" {
		return ""
	}
	if t, ok := l[href]; ok {
		return t
	}
	return l[path.Base(href)]
}

// navLabels reads the NCX declared in the manifest. A missing or malformed
// NCX only means no declared titles.
func navLabels(book *epub.Rootfile) labelIndex {
	index := make(labelIndex)

	var ncxItem *epub.Item
	for i := range book.Manifest.Items {
		if book.Manifest.Items[i].MediaType == ncxMediaType {
			ncxItem = &book.Manifest.Items[i]
			break
		}
	}
	if ncxItem == nil {
		return index
	}

	raw, err := readItem(ncxItem)
	if err != nil {
		return index
	}

	var toc ncx
	if err := xml.Unmarshal([]byte(raw), &toc); err != nil {
		return index
	}

	var walk func(points []navPoint)
	walk = func(points []navPoint) {
		for _, np := range points {
			href := np.Content.Src
			if idx := strings.Index(href, "#"); idx != -1 {
				href = href[:idx]
			}
			label := strings.TrimSpace(np.Label.Text)
			if href != "" && label != "" {
				if _, exists := index[href]; !exists {
					index[href] = label
				}
				if _, exists := index[path.Base(href)]; !exists {
					index[path.Base(href)] = label
				}
			}
			walk(np.Children)
		}
	}
	walk(toc.NavMap.NavPoints)

	return index
}
