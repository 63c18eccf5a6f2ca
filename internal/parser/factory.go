package parser

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// MIME types declared for the supported containers
const (
	MIMETypeEPUB = "application/epub+zip"
	MIMETypePDF  = "application/pdf"
	MIMETypeText = "text/plain"
)

// DefaultFactory dispatches on the declared MIME type
type DefaultFactory struct {
	epub Parser
	pdf  Parser
	text Parser
}

// NewFactory creates a new parser factory with default parsers
func NewFactory() *DefaultFactory {
	return &DefaultFactory{
		epub: NewEPUBParser(),
		pdf:  NewPDFParser(),
		text: NewTXTParser(),
	}
}

// ForMIME returns the parser for mimeType. Matching is by substring on the
// lower-cased media type, so "application/epub+zip" and "application/x-pdf"
// both resolve; there is no content sniffing fallback.
func (f *DefaultFactory) ForMIME(mimeType string) (Parser, error) {
	mediaType := normalizeMIME(mimeType)
	switch {
	case mediaType == "":
		return nil, unsupported(mimeType)
	case strings.Contains(mediaType, "epub"):
		return f.epub, nil
	case strings.Contains(mediaType, "pdf"):
		return f.pdf, nil
	case strings.Contains(mediaType, "text"):
		return f.text, nil
	default:
		return nil, unsupported(mimeType)
	}
}

// Extract reads r fully and parses it with the parser declared by mimeType
func (f *DefaultFactory) Extract(ctx context.Context, r io.Reader, mimeType string) (*types.Document, error) {
	p, err := f.ForMIME(mimeType)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ioFailure(mimeType, fmt.Errorf("failed to read document: %w", err))
	}

	return p.Parse(ctx, data)
}

// MIMEForPath declares a MIME type from a file extension, or "" when the
// extension is not a supported document format
func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return MIMETypeEPUB
	case ".pdf":
		return MIMETypePDF
	case ".txt", ".text", ".md":
		return MIMETypeText
	default:
		return ""
	}
}

// normalizeMIME lower-cases the media type and drops parameters such as charset
func normalizeMIME(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
