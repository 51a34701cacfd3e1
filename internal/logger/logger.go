package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// New returns a zerolog.Logger writing to w at the given level.
// format "text" selects the human readable console writer, anything else JSON.
// An unparsable level falls back to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}

	output := w
	if format == "text" {
		output = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}

	return zerolog.New(output).Level(logLevel).With().Timestamp().Logger()
}
