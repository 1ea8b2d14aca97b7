package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newLogger writes text to a terminal and JSON otherwise, or JSON always
// when forceJSON is set.
func newLogger(w io.Writer, level slog.Level, forceJSON bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if !forceJSON && isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
