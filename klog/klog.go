// Package klog is the kernel's diagnostic channel. Messages are leveled and
// fire-and-forget: a logger never blocks its caller on failure and a nil
// *Logger silently drops everything.
package klog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LevelStats sits between info and warn so counters survive an INFO filter.
const LevelStats = slog.Level(2)

type Logger struct {
	l *slog.Logger
}

// New returns a logger writing text records at or above level to w.
func New(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelStats {
					a.Value = slog.StringValue("STATS")
				}
			}
			return a
		},
	})
	return &Logger{l: slog.New(handler)}
}

// Discard returns a logger that drops every message.
func Discard() *Logger {
	return New(io.Discard, slog.LevelError+1)
}

// With returns a logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{l: l.l.With(args...)}
}

func (l *Logger) logf(level slog.Level, format string, params ...any) {
	if l == nil || !l.l.Enabled(context.Background(), level) {
		return
	}
	l.l.Log(context.Background(), level, fmt.Sprintf(format, params...))
}

func (l *Logger) Errorf(format string, params ...any) {
	l.logf(slog.LevelError, format, params...)
}

func (l *Logger) Warnf(format string, params ...any) {
	l.logf(slog.LevelWarn, format, params...)
}

func (l *Logger) Infof(format string, params ...any) {
	l.logf(slog.LevelInfo, format, params...)
}

func (l *Logger) Debugf(format string, params ...any) {
	l.logf(slog.LevelDebug, format, params...)
}

// Statsf logs a counter-style message tagged with category.
func (l *Logger) Statsf(category string, format string, params ...any) {
	if l == nil || !l.l.Enabled(context.Background(), LevelStats) {
		return
	}
	l.l.Log(context.Background(), LevelStats, fmt.Sprintf(format, params...), "category", category)
}

// ParseLevel converts a configuration string to a level. Unknown strings fall
// back to INFO and return an error describing the fallback.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "STATS":
		return LevelStats, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q, using INFO", s)
	}
}
