package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger builds a root logger from the logging section. The engines scope
// it per component themselves; nothing in this module ever touches the
// global logger, so embedding applications keep full control.
func (c LoggingConfig) Logger() zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.ToLower(c.Format) == "console" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(out).
		Level(parseLevel(c.Level)).
		With().
		Timestamp().
		Logger()
}

// parseLevel converts string level to zerolog.Level; unknown names fall
// back to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
