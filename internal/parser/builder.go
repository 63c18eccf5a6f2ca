package parser

import "github.com/unalkalkan/VoiceReader/pkg/types"

// documentBuilder accumulates chapters and their flat level-0 TOC entries
type documentBuilder struct {
	doc *types.Document
}

func newDocumentBuilder(docType types.DocumentType, title string, author *string) *documentBuilder {
	return &documentBuilder{
		doc: &types.Document{
			Title:           title,
			Author:          author,
			Chapters:        make([]types.Chapter, 0),
			TableOfContents: make([]types.TocEntry, 0),
			Type:            docType,
		},
	}
}

func (b *documentBuilder) addChapter(title, body string, start, end int) {
	b.doc.Chapters = append(b.doc.Chapters, types.Chapter{
		Title:       title,
		Body:        body,
		StartOffset: start,
		EndOffset:   end,
	})
	b.doc.TableOfContents = append(b.doc.TableOfContents, types.TocEntry{
		Title:       title,
		Level:       0,
		StartOffset: start,
	})
}

// build clamps offsets into [0, len(content)] and returns the document
func (b *documentBuilder) build() *types.Document {
	length := types.RuneLen(b.doc.Content)
	for i := range b.doc.Chapters {
		ch := &b.doc.Chapters[i]
		ch.StartOffset = clamp(ch.StartOffset, 0, length)
		ch.EndOffset = clamp(ch.EndOffset, ch.StartOffset, length)
		b.doc.TableOfContents[i].StartOffset = ch.StartOffset
	}
	return b.doc
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
