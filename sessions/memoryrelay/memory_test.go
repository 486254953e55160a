package memoryrelay

import (
	"testing"

	"github.com/ggoodman/mcp-http-go/sessions"
	"github.com/ggoodman/mcp-http-go/sessions/relaytest"
)

func TestMemoryRelay(t *testing.T) {
	relaytest.RunRelayTests(t, func(t *testing.T) (sessions.Relay, sessions.Relay) {
		bus := NewBus()
		return bus.Relay(), bus.Relay()
	})
}
