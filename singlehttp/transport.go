package singlehttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-http-go/internal/logctx"
	"github.com/ggoodman/mcp-http-go/internal/metrics"
	"github.com/ggoodman/mcp-http-go/transport"
)

var _ transport.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithCodec overrides the codec, typically to change the body size limit.
func WithCodec(c jsonrpc.Codec) Option {
	return func(t *Transport) { t.codec = c }
}

// WithLogger sets the logger. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// WithMetrics records message and decode counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// Transport binds one HTTP request/response pair to one protocol exchange.
type Transport struct {
	transport.Hooks

	w       http.ResponseWriter
	r       *http.Request
	codec   jsonrpc.Codec
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	started bool
	written bool
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a transport for the request r and its response writer w.
func New(w http.ResponseWriter, r *http.Request, opts ...Option) *Transport {
	t := &Transport{
		w:    w,
		r:    r,
		log:  slog.Default(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start reads and decodes the request body. On success the OnMessage handler
// fires exactly once. Decode failures are answered directly on the HTTP
// response, reported through OnError, and close the transport; they are not
// returned because no consumer action is possible.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return transport.ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	msg, err := t.readMessage()
	if err != nil {
		t.reject(ctx, err)
		return nil
	}
	t.metrics.MessageIn(metrics.TransportSingle, msg.Kind())
	ctx = logctx.WithRPCMessage(ctx, logctx.MessageData(msg))

	if !t.EmitMessage(ctx, msg) {
		err := errors.New("no message handler attached")
		t.Fail(http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, "Internal MCP server error")
		t.EmitError(err)
		return t.Close()
	}

	if !msg.ExpectsReply() {
		if t.writeResponse(http.StatusAccepted, nil) {
			t.log.DebugContext(ctx, "single.ack", slog.String("kind", string(msg.Kind())))
		}
		return t.Close()
	}
	return nil
}

// Send writes msg as the one and only response, then closes the transport.
// Once a response has been written, Send is a no-op.
func (t *Transport) Send(ctx context.Context, msg *jsonrpc.AnyMessage) error {
	b, err := t.codec.Encode(msg)
	if err != nil {
		return err
	}
	if !t.writeResponse(http.StatusOK, b) {
		t.log.DebugContext(ctx, "single.send.skip")
		return nil
	}
	t.metrics.MessageOut(metrics.TransportSingle, msg.Kind())
	return t.Close()
}

// Fail writes a JSON-RPC error body with the given HTTP status unless a
// response was already written or the transport is closed. It reports
// whether the body was written.
func (t *Transport) Fail(status int, code jsonrpc.ErrorCode, message string) bool {
	b, err := jsonrpc.Encode(jsonrpc.NewError(nil, code, message, nil))
	if err != nil {
		return false
	}
	return t.writeResponse(status, b)
}

// Close marks the transport closed and notifies OnClose observers once. It
// performs no I/O.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.closeOnce.Do(func() {
		close(t.done)
		t.EmitClose()
	})
	return nil
}

// Done is closed when the transport closes.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Written reports whether a response has been written.
func (t *Transport) Written() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written
}

// Started reports whether Start has been called.
func (t *Transport) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

func (t *Transport) readMessage() (*jsonrpc.AnyMessage, error) {
	if err := t.codec.CheckLength(t.r.ContentLength); err != nil {
		return nil, err
	}
	body, err := t.codec.ReadBody(t.r.Body)
	if err != nil {
		return nil, err
	}
	return t.codec.Decode(body, t.r.Header.Get("Content-Type"))
}

func (t *Transport) reject(ctx context.Context, err error) {
	t.metrics.DecodeError(metrics.TransportSingle, err)
	t.log.WarnContext(ctx, "single.decode.fail", slog.String("err", err.Error()))

	var tooLarge *jsonrpc.TooLargeError
	if errors.As(err, &tooLarge) {
		t.Fail(http.StatusRequestEntityTooLarge, jsonrpc.ErrorCodeInvalidRequest, tooLarge.Error())
	} else {
		t.Fail(http.StatusBadRequest, jsonrpc.ErrorCodeParseError, fmt.Sprintf("Invalid JSON-RPC message: %v", err))
	}
	t.EmitError(err)
	_ = t.Close()
}

// writeResponse writes at most one response for the request.
func (t *Transport) writeResponse(status int, body []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.written || t.closed {
		return false
	}
	t.written = true

	if body != nil {
		t.w.Header().Set("Content-Type", "application/json")
	}
	t.w.WriteHeader(status)
	if body != nil {
		if _, err := t.w.Write(body); err != nil {
			t.log.WarnContext(t.r.Context(), "single.write.fail", slog.String("err", err.Error()))
		}
	}
	return true
}
