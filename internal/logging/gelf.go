package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// DialGraylog opens a UDP GELF writer to address.
func DialGraylog(address string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to graylog at %s: %w", address, err)
	}
	w.Facility = InstrumentationName
	return w, nil
}

// NewGraylogHandler writes one JSON document per record. The GELF writer
// turns each write into a message with the document as its short message.
func NewGraylogHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}
