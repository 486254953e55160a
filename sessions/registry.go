package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-http-go/transport"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session already exists")
)

// SessionTransport is a transport bound to a session id that accepts
// deliveries from outside the stream.
type SessionTransport interface {
	transport.Transport
	SessionID() string
	Deliver(ctx context.Context, msg *jsonrpc.AnyMessage) error
}

// Entry is one registered session.
type Entry struct {
	SessionID string
	Transport SessionTransport
	Consumer  transport.Consumer
	CreatedAt time.Time
}

// Registry is a process-local, concurrency-safe session table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Create registers a session. It fails with ErrDuplicateSession if id is
// already present.
func (r *Registry) Create(id string, t SessionTransport, c transport.Consumer) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return nil, ErrDuplicateSession
	}
	e := &Entry{SessionID: id, Transport: t, Consumer: c, CreatedAt: time.Now()}
	r.entries[id] = e
	return e, nil
}

// Lookup returns the entry for id or ErrSessionNotFound.
func (r *Registry) Lookup(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Remove deletes id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Drain returns a snapshot of all entries.
func (r *Registry) Drain() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Shutdown closes every registered transport concurrently and waits for the
// closes to finish or ctx to end, then removes the entries it closed. Sessions
// registered after the snapshot are left alone. It returns ctx.Err() if the
// wait was cut short.
func (r *Registry) Shutdown(ctx context.Context) error {
	entries := r.Drain()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *Entry) {
			defer wg.Done()
			_ = e.Transport.Close()
		}(e)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-ctx.Done():
		err = ctx.Err()
	}

	r.mu.Lock()
	for _, e := range entries {
		if r.entries[e.SessionID] == e {
			delete(r.entries, e.SessionID)
		}
	}
	r.mu.Unlock()
	return err
}
