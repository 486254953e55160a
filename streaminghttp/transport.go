package streaminghttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-http-go/internal/logctx"
	"github.com/ggoodman/mcp-http-go/internal/metrics"
	"github.com/ggoodman/mcp-http-go/transport"
	"github.com/google/uuid"
)

var _ transport.Transport = (*Transport)(nil)

var (
	// ErrStreamingUnsupported is returned by Start when the response writer
	// cannot flush.
	ErrStreamingUnsupported = errors.New("response writer does not support streaming")
	// ErrNotStarted is returned by Send before the stream is open.
	ErrNotStarted = errors.New("stream not started")
	// ErrNoHandler is returned by Deliver when no consumer is attached.
	ErrNoHandler = errors.New("no message handler attached")
)

var eventStreamMediaType = contenttype.NewMediaType("text/event-stream")

const (
	// SessionIDHeader carries the session id on the stream response.
	SessionIDHeader = "Mcp-Session-Id"

	// DefaultEndpoint is the delivery path announced in the handshake.
	DefaultEndpoint = "/messages"

	endpointEvent = "endpoint"
	messageEvent  = "message"
)

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// WithMetrics records message counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// WithEndpoint sets the delivery path announced in the handshake event.
func WithEndpoint(path string) Option {
	return func(t *Transport) {
		if path != "" {
			t.endpoint = path
		}
	}
}

// WithKeepAlive writes a comment frame every d while the stream is open.
// Zero disables keep-alives.
func WithKeepAlive(d time.Duration) Option {
	return func(t *Transport) { t.keepAlive = d }
}

// Transport binds one SSE response stream to one session.
type Transport struct {
	transport.Hooks

	id        string
	w         http.ResponseWriter
	r         *http.Request
	log       *slog.Logger
	metrics   *metrics.Metrics
	endpoint  string
	keepAlive time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	wf      *lockedWriteFlusher

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a transport for the stream request r. The session id is
// assigned here so the caller can register the session before Start
// announces it to the client.
func New(w http.ResponseWriter, r *http.Request, opts ...Option) *Transport {
	// Keep the request's values for logging but not its cancellation; Close
	// cancels the session explicitly.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	t := &Transport{
		id:       uuid.NewString(),
		w:        w,
		r:        r,
		log:      slog.Default(),
		endpoint: DefaultEndpoint,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ctx = logctx.WithSessionData(t.ctx, &logctx.SessionData{SessionID: t.id, Transport: metrics.TransportStreaming})
	return t
}

// SessionID returns the session identifier.
func (t *Transport) SessionID() string {
	return t.id
}

// Context returns the session context. It is canceled when the transport closes.
func (t *Transport) Context() context.Context {
	return t.ctx
}

// Endpoint returns the delivery URL announced to the client.
func (t *Transport) Endpoint() string {
	return t.endpoint + "?" + url.Values{"sessionId": {t.id}}.Encode()
}

// Started reports whether the stream headers have been written.
func (t *Transport) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Start opens the event stream and writes the endpoint handshake. The
// transport closes when the client disconnects.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return transport.ErrAlreadyStarted
	}
	if t.ctx.Err() != nil {
		t.mu.Unlock()
		return transport.ErrClosed
	}
	f, ok := t.w.(http.Flusher)
	if !ok {
		t.mu.Unlock()
		return ErrStreamingUnsupported
	}
	t.started = true
	t.wf = &lockedWriteFlusher{Writer: t.w, Flusher: f, ctx: t.ctx}

	h := t.w.Header()
	h.Set("Content-Type", eventStreamMediaType.String())
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(SessionIDHeader, t.id)
	t.w.WriteHeader(http.StatusOK)
	t.mu.Unlock()

	if err := t.wf.writeFrame(sseEvent(endpointEvent, []byte(t.Endpoint()))); err != nil {
		t.log.WarnContext(t.ctx, "sse.handshake.fail", slog.String("err", err.Error()))
		t.EmitError(fmt.Errorf("failed to write endpoint event: %w", err))
		_ = t.Close()
		return err
	}
	t.log.InfoContext(t.ctx, "sse.stream.start")

	go t.watch()
	if t.keepAlive > 0 {
		go t.ping(t.keepAlive)
	}
	return nil
}

// Deliver hands an inbound message to the consumer under the session context.
func (t *Transport) Deliver(ctx context.Context, msg *jsonrpc.AnyMessage) error {
	if t.ctx.Err() != nil {
		return transport.ErrClosed
	}
	t.metrics.MessageIn(metrics.TransportStreaming, msg.Kind())
	if !t.EmitMessage(logctx.WithRPCMessage(t.ctx, logctx.MessageData(msg)), msg) {
		return ErrNoHandler
	}
	return nil
}

// Send writes msg as one message event. It is a no-op once the transport has
// closed. A failed write closes the transport.
func (t *Transport) Send(ctx context.Context, msg *jsonrpc.AnyMessage) error {
	if t.ctx.Err() != nil {
		return nil
	}
	t.mu.Lock()
	wf := t.wf
	t.mu.Unlock()
	if wf == nil {
		return ErrNotStarted
	}

	b, err := jsonrpc.Encode(msg)
	if err != nil {
		return err
	}
	if err := wf.writeFrame(sseEvent(messageEvent, b)); err != nil {
		if t.ctx.Err() != nil {
			// Closed while waiting for the lock.
			return nil
		}
		t.log.ErrorContext(t.ctx, "sse.write.fail", slog.String("err", err.Error()))
		err = fmt.Errorf("failed to write SSE event: %w", err)
		t.EmitError(err)
		_ = t.Close()
		return err
	}
	t.metrics.MessageOut(metrics.TransportStreaming, msg.Kind())
	return nil
}

// Close cancels the session context and notifies OnClose observers once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		// Blocks until any in-flight frame is written; none follow.
		t.mu.Lock()
		wf := t.wf
		t.mu.Unlock()
		if wf != nil {
			wf.shut()
		}
		close(t.done)
		t.log.InfoContext(t.ctx, "sse.stream.close")
		t.EmitClose()
	})
	return nil
}

// Done is closed when the transport closes.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

func (t *Transport) watch() {
	select {
	case <-t.r.Context().Done():
		t.log.InfoContext(t.ctx, "sse.client.gone")
		_ = t.Close()
	case <-t.done:
	}
}

func (t *Transport) ping(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.wf.writeFrame(sseComment("ping")); err != nil {
				if t.ctx.Err() == nil {
					t.log.WarnContext(t.ctx, "sse.ping.fail", slog.String("err", err.Error()))
					t.EmitError(err)
					_ = t.Close()
				}
				return
			}
		}
	}
}
