package stdio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-http-go/internal/logctx"
	"github.com/ggoodman/mcp-http-go/internal/metrics"
	"github.com/ggoodman/mcp-http-go/transport"
	"github.com/google/uuid"
)

var _ transport.Transport = (*Transport)(nil)

// Transport reads newline-delimited messages from a reader and writes
// replies, one per line, to a writer.
type Transport struct {
	transport.Hooks

	r       io.Reader
	w       io.Writer
	log     *slog.Logger
	codec   jsonrpc.Codec
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	wmu     sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// New constructs a Transport over os.Stdin and os.Stdout unless overridden.
func New(opts ...Option) *Transport {
	t := &Transport{
		r:    os.Stdin,
		w:    os.Stdout,
		log:  slog.Default(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins reading input in the background. Messages are handed to the
// OnMessage handler one at a time, in arrival order.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return transport.ErrAlreadyStarted
	}
	select {
	case <-t.done:
		return transport.ErrClosed
	default:
	}
	t.started = true

	sctx := logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: uuid.NewString(), Transport: metrics.TransportStdio})
	t.ctx, t.cancel = context.WithCancel(sctx)

	go t.readLoop()
	go func() {
		select {
		case <-t.ctx.Done():
			_ = t.Close()
		case <-t.done:
		}
	}()
	t.log.InfoContext(t.ctx, "stdio.start")
	return nil
}

func (t *Transport) readLoop() {
	defer t.Close()

	br := bufio.NewReader(t.r)
	limit := t.codec.Limit()
	for {
		line, err := readLine(br, limit)
		if len(bytes.TrimSpace(line)) > 0 || errors.Is(err, errLineTooLong) {
			t.handleLine(line, err)
		}
		if err == nil || errors.Is(err, errLineTooLong) {
			continue
		}
		if !errors.Is(err, io.EOF) {
			t.log.ErrorContext(t.ctx, "stdio.read.fail", slog.String("err", err.Error()))
			t.EmitError(fmt.Errorf("failed to read input: %w", err))
		} else {
			t.log.InfoContext(t.ctx, "stdio.eof")
		}
		return
	}
}

func (t *Transport) handleLine(line []byte, readErr error) {
	if t.ctx.Err() != nil {
		return
	}

	var (
		msg *jsonrpc.AnyMessage
		err error
	)
	if errors.Is(readErr, errLineTooLong) {
		err = &jsonrpc.TooLargeError{Limit: t.codec.Limit()}
	} else {
		msg, err = t.codec.Decode(line, "")
	}
	if err != nil {
		t.metrics.DecodeError(metrics.TransportStdio, err)
		t.log.WarnContext(t.ctx, "stdio.decode.fail", slog.String("err", err.Error()))
		t.EmitError(err)
		_ = t.Send(t.ctx, decodeFailure(err))
		return
	}

	t.metrics.MessageIn(metrics.TransportStdio, msg.Kind())
	ctx := logctx.WithRPCMessage(t.ctx, logctx.MessageData(msg))
	if !t.EmitMessage(ctx, msg) {
		t.log.WarnContext(ctx, "stdio.message.unhandled")
	}
}

func decodeFailure(err error) *jsonrpc.AnyMessage {
	var (
		parseErr *jsonrpc.ParseError
		tooLarge *jsonrpc.TooLargeError
	)
	switch {
	case errors.As(err, &parseErr):
		return jsonrpc.NewError(nil, jsonrpc.ErrorCodeParseError, "Parse error", nil)
	case errors.As(err, &tooLarge):
		return jsonrpc.NewError(nil, jsonrpc.ErrorCodeInvalidRequest, "Message too large", nil)
	default:
		return jsonrpc.NewError(nil, jsonrpc.ErrorCodeInvalidRequest, "Invalid Request", nil)
	}
}

// Send writes msg as one line. Writes are serialized. It is a no-op once the
// transport has closed; a failed write closes the transport.
func (t *Transport) Send(ctx context.Context, msg *jsonrpc.AnyMessage) error {
	select {
	case <-t.done:
		return nil
	default:
	}
	b, err := jsonrpc.Encode(msg)
	if err != nil {
		return err
	}

	t.wmu.Lock()
	_, err = t.w.Write(append(b, '\n'))
	t.wmu.Unlock()
	if err != nil {
		err = fmt.Errorf("failed to write message: %w", err)
		t.log.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
		t.EmitError(err)
		_ = t.Close()
		return err
	}
	t.metrics.MessageOut(metrics.TransportStdio, msg.Kind())
	return nil
}

// Close stops delivery and notifies OnClose observers once. A read blocked
// on the underlying reader is abandoned, not interrupted.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		cancel := t.cancel
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		close(t.done)
		t.log.Info("stdio.close")
		t.EmitClose()
	})
	return nil
}

// Done is closed when the transport closes.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}
