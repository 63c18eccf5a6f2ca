package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// InitLogger configures the global slog logger and returns it.
// Accepts levels: debug, info, warn, error. Defaults to info on unknown input.
func InitLogger(cfg types.LogConfig) *slog.Logger {
	return initLogger(os.Stdout, cfg)
}

func initLogger(w io.Writer, cfg types.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: true,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
