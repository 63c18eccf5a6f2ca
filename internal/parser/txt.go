package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

const textDocumentTitle = "Text Document"

// TXTParser parses plain text files into blank-line separated sections
type TXTParser struct{}

// NewTXTParser creates a new TXT parser
func NewTXTParser() *TXTParser {
	return &TXTParser{}
}

// Parse splits the text on blank lines. Every run of non-blank lines becomes
// a "Section n" chapter; content is the input verbatim.
func (p *TXTParser) Parse(ctx context.Context, data []byte) (*types.Document, error) {
	content := string(data)
	builder := newDocumentBuilder(types.DocumentTypeText, textDocumentTitle, nil)
	builder.doc.Content = content

	var (
		section      []string
		sectionStart int
		counter      int
	)

	flush := func() {
		raw := strings.Join(section, "\n")
		body := strings.TrimSpace(raw)
		lead := types.RuneLen(raw) - types.RuneLen(strings.TrimLeftFunc(raw, unicode.IsSpace))
		start := sectionStart + lead
		builder.addChapter(fmt.Sprintf("Section %d", len(builder.doc.Chapters)+1), body, start, start+types.RuneLen(body))
		section = section[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if strings.TrimSpace(line) == "" {
			if len(section) > 0 {
				flush()
			}
		} else {
			if len(section) == 0 {
				sectionStart = counter
			}
			section = append(section, line)
		}

		// +1 restores the newline removed by the split
		counter += types.RuneLen(line) + 1
	}

	if len(section) > 0 {
		flush()
	}

	return builder.build(), nil
}

// SupportedTypes returns the declared MIME types routed to this parser
func (p *TXTParser) SupportedTypes() []string {
	return []string{MIMETypeText, "text/markdown"}
}

// DocumentType returns the type of documents this parser produces
func (p *TXTParser) DocumentType() types.DocumentType {
	return types.DocumentTypeText
}
