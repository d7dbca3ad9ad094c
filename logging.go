package coropool

import (
	"io"
	"log/slog"
)

// Logger is the structured logging sink the pool writes debug/diagnostic
// output to. *slog.Logger satisfies it once wrapped in slogAdapter below.
// The pool treats its log destination as an external collaborator's
// concern: it never decides where logs go, only what to log and at what
// level.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// slogAdapter lets a *slog.Logger satisfy Logger without the pool importing
// log/slog's Logger type directly into its public surface.
type slogAdapter struct{ l *slog.Logger }

// NewLogger wraps a *slog.Logger as a Logger. A nil l is equivalent to
// slog.Default().
func NewLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogAdapter{l: l}
}

func (a slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

// NewNopLogger returns a Logger that discards everything, for callers that
// don't want pool diagnostics (and for tests).
func NewNopLogger() Logger {
	return slogAdapter{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
