package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/unalkalkan/VoiceReader/internal/config"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

const version = "0.2.0"

func main() {
	cmd := &cli.Command{
		Name:    "voicereader",
		Usage:   "Read EPUB, PDF and text documents aloud and remember where you stopped",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("VR_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			extractCommand(),
			speakCommand(),
			libraryCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads the configured file. The built-in defaults apply when
// the default file is absent; an explicitly named file must exist.
func loadConfig(cmd *cli.Command) (*types.Config, error) {
	path := cmd.String("config")

	var (
		cfg *types.Config
		err error
	)
	if cmd.IsSet("config") {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
