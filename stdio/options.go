package stdio

import (
	"io"
	"log/slog"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-http-go/internal/metrics"
)

// Option customizes a Transport.
type Option func(*Transport)

// WithIO sets the reader and writer for the transport.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(t *Transport) {
		if r != nil {
			t.r = r
		}
		if w != nil {
			t.w = w
		}
	}
}

// WithReader overrides the input stream.
func WithReader(r io.Reader) Option {
	return func(t *Transport) {
		if r != nil {
			t.r = r
		}
	}
}

// WithWriter overrides the output stream.
func WithWriter(w io.Writer) Option {
	return func(t *Transport) {
		if w != nil {
			t.w = w
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// WithCodec overrides the codec. Its limit bounds the length of one line.
func WithCodec(c jsonrpc.Codec) Option {
	return func(t *Transport) { t.codec = c }
}

// WithMetrics records message and decode counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}
