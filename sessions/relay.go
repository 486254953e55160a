package sessions

import "context"

// ForwardHandler receives a payload forwarded to a session this process claimed.
type ForwardHandler func(ctx context.Context, sessionID string, payload []byte)

// Relay carries delivery bodies between processes sharing a session namespace.
type Relay interface {
	// Claim marks this process as the owner of sessionID and starts receiving
	// payloads forwarded to it. It returns ErrDuplicateSession if another
	// owner holds the id.
	Claim(ctx context.Context, sessionID string) error
	// Release gives up ownership. Releasing an unclaimed id is not an error.
	Release(ctx context.Context, sessionID string) error
	// Forward hands payload to the owner of sessionID. It returns
	// ErrSessionNotFound when no process owns the id.
	Forward(ctx context.Context, sessionID string, payload []byte) error
	// Listen calls fn for every payload forwarded to a claimed session until
	// ctx is done.
	Listen(ctx context.Context, fn ForwardHandler) error
}
