// Package logging builds the process-wide zerolog root logger. Components
// derive their own loggers from the root with .With().Str("component", ...).
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. level is one of debug/info/warn/error
// (case-insensitive, default info). With console true the output is
// human-readable; otherwise JSON lines on stdout.
func New(level string, console bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out = zerolog.Logger{}
	if console {
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		out = zerolog.New(writer)
	} else {
		out = zerolog.New(os.Stdout)
	}

	return out.Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
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
