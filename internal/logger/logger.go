package logger

import (
	"context"
	"io"
	"log/slog"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// LevelDone sits between Info and Warn and marks a completed user-visible
// action ("started 1700000000000"). The color handler renders it green.
const LevelDone = slog.Level(2)

// Rotation defaults for the daemon's own log file.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// New returns a leveled logger writing colorized text to w. This is the CLI
// diagnostics sink; it never influences control flow or returned results.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewColorTextHandler(w, &slog.HandlerOptions{Level: level}, false))
}

// NewFile returns a logger writing plain text to a rotating file, used by the
// daemonized supervisor, plus the writer so callers can close it.
func NewFile(path string, level slog.Level) (*slog.Logger, io.WriteCloser) {
	w := &lj.Logger{
		Filename:   path,
		MaxSize:    DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAgeDays,
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h), w
}

// Done logs msg at LevelDone.
func Done(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelDone, msg, args...)
}
