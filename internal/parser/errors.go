package parser

import (
	"errors"
	"fmt"
)

// Kind classifies why extraction failed
type Kind string

const (
	KindUnsupportedFormat Kind = "unsupported_format"
	KindCorruptContainer  Kind = "corrupt_container"
	KindIoFailure         Kind = "io_failure"
)

// ExtractionError is returned by every parser and by Extract
type ExtractionError struct {
	Kind   Kind
	Format string // MIME type or document type the failure relates to
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Kind, e.Format)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an ExtractionError of the given kind
func IsKind(err error, kind Kind) bool {
	var extractErr *ExtractionError
	if errors.As(err, &extractErr) {
		return extractErr.Kind == kind
	}
	return false
}

// KindOf returns the extraction error kind of err, or "" for other errors
func KindOf(err error) Kind {
	var extractErr *ExtractionError
	if errors.As(err, &extractErr) {
		return extractErr.Kind
	}
	return ""
}

func unsupported(format string) error {
	return &ExtractionError{Kind: KindUnsupportedFormat, Format: format}
}

func corrupt(format string, err error) error {
	return &ExtractionError{Kind: KindCorruptContainer, Format: format, Err: err}
}

func ioFailure(format string, err error) error {
	return &ExtractionError{Kind: KindIoFailure, Format: format, Err: err}
}
