// Package logx builds the zerolog loggers used across motorctl.
package logx

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "15:04:05.000"

func init() {
	zerolog.ErrorFieldName = "err"
}

// New returns a logger writing to w at the named level. Console output is
// human readable; otherwise each event is one JSON object.
func New(w io.Writer, level string, console bool) zerolog.Logger {
	out := w
	if console {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	return zerolog.New(out).
		Level(ParseLevel(level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
}

func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "OFF", "DISABLED":
		return zerolog.Disabled
	default:
		return def
	}
}
