// Package memoryrelay provides an in-memory sessions.Relay. Relays created
// from the same Bus behave like separate processes sharing one session
// namespace, which makes multi-host setups testable without external
// infrastructure.
//
// Characteristics
//
//	Durability        : none (RAM only)
//	Horizontal scale  : no (process local)
//	Delivery          : at-most-once, buffered per relay
//	Concurrency       : safe (RWMutex on the owner table)
//
// Example:
//
//	bus := memoryrelay.NewBus()
//	a, b := bus.Relay(), bus.Relay()
//	// each relay wires into its own httphost.Handler via httphost.WithRelay
package memoryrelay

import (
	"context"
	"sync"

	"github.com/ggoodman/mcp-http-go/sessions"
)

var _ sessions.Relay = (*Relay)(nil)

const inboxSize = 64

// Bus is the shared owner table.
type Bus struct {
	mu     sync.RWMutex
	owners map[string]*Relay
}

func NewBus() *Bus {
	return &Bus{owners: make(map[string]*Relay)}
}

// Relay returns a new participant on the bus.
func (b *Bus) Relay() *Relay {
	return &Relay{bus: b, inbox: make(chan forwarded, inboxSize)}
}

type forwarded struct {
	sessionID string
	payload   []byte
}

// Relay is one participant on a Bus.
type Relay struct {
	bus   *Bus
	inbox chan forwarded
}

func (r *Relay) Claim(ctx context.Context, sessionID string) error {
	r.bus.mu.Lock()
	defer r.bus.mu.Unlock()
	if owner, ok := r.bus.owners[sessionID]; ok && owner != r {
		return sessions.ErrDuplicateSession
	}
	r.bus.owners[sessionID] = r
	return nil
}

func (r *Relay) Release(ctx context.Context, sessionID string) error {
	r.bus.mu.Lock()
	defer r.bus.mu.Unlock()
	if r.bus.owners[sessionID] == r {
		delete(r.bus.owners, sessionID)
	}
	return nil
}

func (r *Relay) Forward(ctx context.Context, sessionID string, payload []byte) error {
	r.bus.mu.RLock()
	owner, ok := r.bus.owners[sessionID]
	r.bus.mu.RUnlock()
	if !ok {
		return sessions.ErrSessionNotFound
	}
	msg := forwarded{sessionID: sessionID, payload: append([]byte(nil), payload...)}
	select {
	case owner.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) Listen(ctx context.Context, fn sessions.ForwardHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-r.inbox:
			fn(ctx, msg.sessionID, msg.payload)
		}
	}
}
