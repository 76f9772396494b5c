package util

import (
	"log/slog"
	"os"
	"strings"
)

// InitSlog configures the default slog logger from the LOG_LEVEL
// environment variable (debug, info, warn, error; default info).
func InitSlog() {
	logLevel, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		return
	}

	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
