// Package logging adapts log/slog to the runtime.Logger interface so that
// code shared with the Nakama plugin logs the same way in the standalone
// binaries.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/heroiclabs/nakama-common/runtime"
)

type Logger struct {
	l      *slog.Logger
	fields map[string]interface{}
}

// New returns a text logger writing to w at level ("debug", "info", "warn",
// "error"; anything else means info).
func New(level string, w io.Writer) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{l: slog.New(h)}
}

// ParseLevel maps a level name onto slog.
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

func (g *Logger) log(level slog.Level, format string, v ...interface{}) {
	if !g.l.Enabled(context.Background(), level) {
		return
	}
	g.l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func (g *Logger) Debug(format string, v ...interface{}) { g.log(slog.LevelDebug, format, v...) }
func (g *Logger) Info(format string, v ...interface{})  { g.log(slog.LevelInfo, format, v...) }
func (g *Logger) Warn(format string, v ...interface{})  { g.log(slog.LevelWarn, format, v...) }
func (g *Logger) Error(format string, v ...interface{}) { g.log(slog.LevelError, format, v...) }

func (g *Logger) WithField(key string, v interface{}) runtime.Logger {
	return g.WithFields(map[string]interface{}{key: v})
}

func (g *Logger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(g.fields)+len(fields))
	args := make([]any, 0, 2*len(fields))
	for k, v := range g.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
		args = append(args, k, v)
	}
	return &Logger{l: g.l.With(args...), fields: merged}
}

func (g *Logger) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(g.fields))
	for k, v := range g.fields {
		out[k] = v
	}
	return out
}

var _ runtime.Logger = (*Logger)(nil)
