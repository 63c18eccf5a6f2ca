package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/unalkalkan/VoiceReader/internal/reader"
)

func speakCommand() *cli.Command {
	return &cli.Command{
		Name:      "speak",
		Usage:     "Read a document aloud from the stored position; interrupt to pause and bookmark",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mime",
				Usage: "Declared MIME type, derived from the extension when empty",
			},
			&cli.IntFlag{
				Name:  "from",
				Usage: "Character position to start reading from",
			},
			&cli.StringFlag{
				Name:  "voice",
				Usage: "Voice identifier",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Speech rate multiplier",
			},
		},
		Action: speak,
	}
}

func speak(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("missing document path")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	s := a.session

	if _, err := a.openFile(ctx, path, cmd.String("mime")); err != nil {
		return err
	}
	if cmd.IsSet("voice") {
		if err := s.SetVoice(cmd.String("voice")); err != nil {
			return err
		}
	}
	if cmd.IsSet("rate") {
		s.SetSpeechRate(cmd.Float("rate"))
	}
	if cmd.IsSet("from") {
		if err := s.UpdatePosition(int(cmd.Int("from"))); err != nil {
			return err
		}
	}

	positions, cancel := s.Position.Subscribe()
	defer cancel()
	go printProgress(os.Stderr, s, positions)

	if err := s.Play(); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		s.Sequencer().Wait()
		close(done)
	}()

	select {
	case <-done:
		fmt.Fprintln(os.Stderr, "finished")
	case <-ctx.Done():
		if err := s.Pause(context.Background()); err != nil {
			return err
		}
		<-done
		fmt.Fprintf(os.Stderr, "paused at %d\n", s.Position.Get())
	}

	s.Flush()
	return nil
}

// printProgress writes one line per position update until positions closes
func printProgress(w io.Writer, s *reader.Session, positions <-chan int) {
	for p := range positions {
		fmt.Fprintln(w, progressLine(p, s.CurrentDocument.Get().Length(), s.CurrentText()))
	}
}

func progressLine(position, length int, preview string) string {
	percent := 0.0
	if length > 0 {
		percent = float64(position) / float64(length) * 100
	}
	if i := strings.IndexAny(preview, ".!?"); i >= 0 {
		preview = preview[:i+1]
	}
	return fmt.Sprintf("[%5.1f%%] %d %s", percent, position, strings.TrimSpace(preview))
}
