package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

func parseLevel(input string) (level slog.Level) {
	if err := level.UnmarshalText([]byte(input)); err != nil {
		level = slog.LevelWarn
	}
	return level
}

// newLogger writes tinted console logs, with colour only on a terminal.
func newLogger(w io.Writer, level string, noColor bool) *slog.Logger {
	colorize := !noColor
	if f, ok := w.(*os.File); ok && colorize {
		colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	} else {
		colorize = false
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      parseLevel(level),
		TimeFormat: time.Kitchen,
		NoColor:    !colorize,
	}))
}
