// Package transport defines the capability shared by every delivery mode:
// a Transport accepts inbound protocol messages from a channel, hands them to
// exactly one Consumer through observer hooks, and writes the Consumer's
// replies back onto the same channel.
//
// Lifecycle
//
//	Created -> Started -> ... -> Closed
//
// Start may be called once. Close is idempotent and always fires the OnClose
// observers exactly once. Each variant documents how many replies Send
// accepts: the single-request HTTP transport closes after the first, the
// streaming transport keeps the stream open until closed.
package transport

import (
	"context"
	"errors"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
)

var (
	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("transport already started")
	// ErrClosed is returned by operations that require an open transport.
	ErrClosed = errors.New("transport closed")
)

// MessageHandler receives one decoded inbound message.
type MessageHandler func(ctx context.Context, msg *jsonrpc.AnyMessage)

// ErrorHandler observes a fault while handling input.
type ErrorHandler func(err error)

// CloseHandler observes transport termination.
type CloseHandler func()

// Transport mediates message delivery between a channel and its Consumer.
type Transport interface {
	// Start begins reading input. It returns ErrAlreadyStarted on a second call.
	Start(ctx context.Context) error
	// Send writes one outbound message.
	Send(ctx context.Context, msg *jsonrpc.AnyMessage) error
	// Close terminates the transport. Safe to call more than once.
	Close() error
	// Done is closed once the transport reaches its Closed state.
	Done() <-chan struct{}

	OnMessage(fn MessageHandler)
	OnError(fn ErrorHandler)
	OnClose(fn CloseHandler)
}

// Consumer interprets decoded messages and produces replies. Attach takes
// ownership of t: it registers its OnMessage handler and calls Start.
type Consumer interface {
	Attach(ctx context.Context, t Transport) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(ctx context.Context, t Transport) error

func (f ConsumerFunc) Attach(ctx context.Context, t Transport) error {
	return f(ctx, t)
}
