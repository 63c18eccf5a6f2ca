package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/unalkalkan/VoiceReader/internal/parser"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract a document and print its outline",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mime",
				Usage: "Declared MIME type, derived from the extension when empty",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the whole document as JSON",
			},
			&cli.BoolFlag{
				Name:  "content",
				Usage: "Print the extracted text after the outline",
			},
		},
		Action: extract,
	}
}

func extract(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("missing document path")
	}

	mimeType := cmd.String("mime")
	if mimeType == "" {
		mimeType = parser.MIMEForPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	doc, err := parser.NewFactory().Extract(ctx, f, mimeType)
	if err != nil {
		return fmt.Errorf("extraction failed (%s): %w", parser.KindOf(err), err)
	}

	if cmd.Bool("json") {
		return printJSON(os.Stdout, doc)
	}
	return printDocument(os.Stdout, doc, cmd.Bool("content"))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printDocument writes a human readable outline of doc
func printDocument(w io.Writer, doc *types.Document, withContent bool) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Title:    %s\n", doc.Title)
	if doc.Author != nil {
		fmt.Fprintf(&b, "Author:   %s\n", *doc.Author)
	}
	fmt.Fprintf(&b, "Type:     %s\n", doc.Type)
	fmt.Fprintf(&b, "Length:   %d\n", doc.Length())
	fmt.Fprintf(&b, "Chapters: %d\n", len(doc.Chapters))

	for i, ch := range doc.Chapters {
		fmt.Fprintf(&b, "  %3d. %s [%d-%d]\n", i+1, ch.Title, ch.StartOffset, ch.EndOffset)
	}

	if len(doc.TableOfContents) > 0 {
		b.WriteString("Contents:\n")
		writeTOC(&b, doc.TableOfContents)
	}

	if withContent {
		b.WriteString("\n")
		b.WriteString(doc.Content)
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTOC(b *strings.Builder, entries []types.TocEntry) {
	for _, e := range entries {
		fmt.Fprintf(b, "%s- %s @%d\n", strings.Repeat("  ", e.Level+1), e.Title, e.StartOffset)
		writeTOC(b, e.Children)
	}
}
