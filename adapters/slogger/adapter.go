// Package slogger bridges log/slog onto the glog.Logger contract the rest
// of the module consumes. Library code stays on the glog interface; only
// the process entry points pick a concrete backend.
package slogger

import (
	"context"
	"log/slog"
	"os"

	glog "github.com/goliatone/go-logger/glog"
)

const levelTrace = slog.LevelDebug - 4

type Logger struct {
	inner *slog.Logger
	ctx   context.Context
}

// New builds a JSON logger named after the component. Debug enables the
// debug and trace levels.
func New(name string, debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = levelTrace
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{
		inner: slog.New(handler).With("component", name),
	}
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	l.inner.Log(ctx, level, msg, args...)
}

func (l *Logger) Trace(msg string, args ...any) { l.log(levelTrace, msg, args...) }

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

func (l *Logger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

func (l *Logger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *Logger) Fatal(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
	os.Exit(1)
}

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &Logger{inner: l.inner, ctx: ctx}
}

var _ glog.Logger = (*Logger)(nil)
