package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

const (
	pdfDocumentTitle = "PDF Document"
	pageSeparator    = "\n"
)

// PDFParser parses PDF files
type PDFParser struct{}

// NewPDFParser creates a new PDF parser
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse extracts page text in page order, ending each decoded page with a
// line break. Every non-blank page becomes a "Page i" chapter whose offsets divide content evenly across the page count.
func (p *PDFParser) Parse(ctx context.Context, data []byte) (doc *types.Document, err error) {
	// the pdf package panics on some malformed xref tables and streams
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = corrupt(MIMETypePDF, fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, corrupt(MIMETypePDF, fmt.Errorf("open pdf: %w", err))
	}

	totalPages := reader.NumPage()
	pages := make([]string, totalPages)
	var content strings.Builder
	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages that fail to decode contribute no text
			continue
		}
		pages[i-1] = text
		content.WriteString(text)
		content.WriteString(pageSeparator)
	}

	builder := newDocumentBuilder(types.DocumentTypePDF, pdfDocumentTitle, nil)
	builder.doc.Content = content.String()

	if totalPages == 0 {
		return builder.build(), nil
	}

	perPage := types.RuneLen(builder.doc.Content) / totalPages
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		builder.addChapter(fmt.Sprintf("Page %d", i+1), text, i*perPage, (i+1)*perPage)
	}

	return builder.build(), nil
}

// SupportedTypes returns the declared MIME types routed to this parser
func (p *PDFParser) SupportedTypes() []string {
	return []string{MIMETypePDF, "application/x-pdf"}
}

// DocumentType returns the type of documents this parser produces
func (p *PDFParser) DocumentType() types.DocumentType {
	return types.DocumentTypePDF
}
