package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// GraylogSink ships log records to a Graylog server over GELF/UDP.
type GraylogSink struct {
	writer *gelf.Writer
}

// NewGraylogSink opens a GELF writer for address (host:port).
func NewGraylogSink(address string) (*GraylogSink, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer for %s: %w", address, err)
	}
	w.Facility = ServiceName
	return &GraylogSink{writer: w}, nil
}

// Handler returns a JSON slog handler writing to the sink. The GELF writer
// uses the first line as the short message.
func (g *GraylogSink) Handler(level string) slog.Handler {
	return NewGraylogHandler(g.writer, level)
}

// Close closes the underlying UDP connection.
func (g *GraylogSink) Close() error {
	return g.writer.Close()
}

// NewGraylogHandler builds the handler used for GELF output on any writer.
func NewGraylogHandler(w io.Writer, level string) slog.Handler {
	return slog.NewJSONHandler(w, handlerOptions(parseLevel(level)))
}
