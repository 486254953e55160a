package streaminghttp

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/ggoodman/mcp-http-go/transport"
)

// lockedWriteFlusher wraps an io.Writer + http.Flusher with a mutex and an optional context.
// It serializes concurrent frame writes and refuses to write after ctx is canceled.
type lockedWriteFlusher struct {
	io.Writer
	http.Flusher
	mu     sync.Mutex
	ctx    context.Context
	closed bool
}

// shut waits for an in-flight frame and refuses all later ones.
func (l *lockedWriteFlusher) shut() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// writeFrame writes one complete frame and flushes it while holding the lock,
// so frames from concurrent callers never interleave.
func (l *lockedWriteFlusher) writeFrame(frame []byte) error {
	if l.ctx != nil && l.ctx.Err() != nil {
		return l.ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check after acquiring the lock to minimize races with cancellation
	if l.closed {
		return transport.ErrClosed
	}
	if l.ctx != nil && l.ctx.Err() != nil {
		return l.ctx.Err()
	}
	if _, err := l.Writer.Write(frame); err != nil {
		return err
	}
	l.Flusher.Flush()
	return nil
}

// sseEvent encodes a named event. Payload lines are split across data fields
// so embedded newlines cannot terminate the frame early.
func sseEvent(event string, payload []byte) []byte {
	var buf bytes.Buffer
	if event != "" {
		buf.WriteString("event: ")
		buf.WriteString(event)
		buf.WriteByte('\n')
	}
	for _, line := range bytes.Split(payload, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(bytes.TrimSuffix(line, []byte("\r")))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// sseComment encodes a comment frame, ignored by event stream parsers.
func sseComment(text string) []byte {
	return []byte(": " + text + "\n\n")
}
