// Package applog wraps zerolog with the level/format knobs cmd/taskpool
// exposes, so every subcommand logs the same way regardless of which one
// is running.
package applog

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger at level, writing JSON to os.Stdout unless
// pretty is true, in which case it writes a human-readable console format
// through a color-aware writer (no escape codes when stdout isn't a tty).
func New(level string, pretty bool) zerolog.Logger {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: colorableStdout(), NoColor: !isatty.IsTerminal(os.Stdout.Fd())}
	}

	zerolog.SetGlobalLevel(parseLevel(level))
	return zerolog.New(out).With().Timestamp().Logger()
}

func colorableStdout() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout()
	}
	return os.Stdout
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
