package transport

import (
	"context"
	"sync"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
)

// Hooks holds observer registrations for a Transport. Implementations embed
// it and call the Emit methods; the zero value is ready to use.
type Hooks struct {
	mu        sync.Mutex
	onMessage MessageHandler
	onError   []ErrorHandler
	onClose   []CloseHandler
	closed    bool
}

// OnMessage sets the single inbound message handler, replacing any previous one.
func (h *Hooks) OnMessage(fn MessageHandler) {
	h.mu.Lock()
	h.onMessage = fn
	h.mu.Unlock()
}

// OnError adds an error observer.
func (h *Hooks) OnError(fn ErrorHandler) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.onError = append(h.onError, fn)
	h.mu.Unlock()
}

// OnClose adds a close observer. Registering after the close has fired
// invokes fn immediately.
func (h *Hooks) OnClose(fn CloseHandler) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		fn()
		return
	}
	h.onClose = append(h.onClose, fn)
	h.mu.Unlock()
}

// EmitMessage hands msg to the message handler. It reports false if no
// handler is registered.
func (h *Hooks) EmitMessage(ctx context.Context, msg *jsonrpc.AnyMessage) bool {
	h.mu.Lock()
	fn := h.onMessage
	h.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(ctx, msg)
	return true
}

// EmitError notifies every error observer.
func (h *Hooks) EmitError(err error) {
	h.mu.Lock()
	fns := append([]ErrorHandler(nil), h.onError...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// EmitClose notifies close observers. Only the first call has an effect.
func (h *Hooks) EmitClose() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	fns := h.onClose
	h.onClose = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
