package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// New creates a structured logger with text output.
// app: application name (e.g., "emberlaunch")
// level: one of "debug", "info", "warn", "error" (default: "info")
// logFile: optional file path; when non-empty, output is teed to it.
func New(app string, level string, logFile string) (*slog.Logger, error) {
	var writer io.Writer = os.Stdout
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		writer = io.MultiWriter(os.Stdout, f)
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	logger := slog.New(slog.NewTextHandler(writer, opts))

	// Add default attributes: app and pid
	return logger.With(
		slog.String("app", app),
		slog.Int("pid", os.Getpid()),
	), nil
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
