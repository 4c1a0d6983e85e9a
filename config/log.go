package config

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger. When File is set, output goes to a
// size-rotated file instead of console; the returned closer releases it.
func (c LogConfig) NewLogger(console io.Writer) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}
	if c.File == "" {
		return slog.New(slog.NewTextHandler(console, opts)), nopCloser{}
	}

	out := &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		LocalTime:  true,
	}
	return slog.New(slog.NewJSONHandler(out, opts)), out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
