package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// parseZerologLevel maps the configured level onto zerolog, including TRACE.
func parseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds the logger used by the database and InfluxDB managers.
// It writes uncoloured console lines to file, or to stdout when file is nil.
func NewZerolog(file io.Writer, level string, component string) zerolog.Logger {
	out := file
	noColor := true
	if out == nil {
		out = osStdout
		noColor = false
	}
	w := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
		FormatTimestamp: func(i any) string {
			if s, ok := i.(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
				return s
			}
			return ""
		},
	}
	return zerolog.New(w).
		Level(parseZerologLevel(level)).
		With().Timestamp().Str("component", component).
		Logger()
}
