package parser

import (
	"context"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// Parser converts raw container bytes into a normalized document
type Parser interface {
	// Parse extracts title, author, content, chapters and table of contents.
	// An empty document is valid; failures are *ExtractionError values.
	Parse(ctx context.Context, data []byte) (*types.Document, error)

	// SupportedTypes returns the MIME types this parser handles
	SupportedTypes() []string

	// DocumentType returns the type of documents this parser produces
	DocumentType() types.DocumentType
}

// Factory creates parsers for declared MIME types
type Factory interface {
	// ForMIME returns a parser for the given MIME type
	ForMIME(mimeType string) (Parser, error)
}
