// Package internal provides the leveled trace/debug logging gate shared by
// the congestion, sender and receiver packages' loggers: a thin wrapper around *slog.Logger that skips
// attribute construction when the level is disabled, the same role the
// teacher's own debug.go plays for its tcp package.
package internal

import (
	"context"
	"log/slog"
)

// LevelTrace is one step below slog.LevelDebug, used for the highest-volume
// per-segment traces (every send/recv/ack).
const LevelTrace slog.Level = slog.LevelDebug - 2

// LogEnabled reports whether l would emit a record at lvl. A nil logger is
// always disabled.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs logs msg and attrs at level through l, or does nothing if l is
// nil. Callers should guard with LogEnabled first when attrs are expensive
// to build.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
