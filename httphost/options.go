package httphost

import (
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-http-go/internal/metrics"
	"github.com/ggoodman/mcp-http-go/sessions"
)

// Routes names the paths the handler serves.
type Routes struct {
	Single   string
	Connect  string
	Messages string
	Health   string
}

// DefaultRoutes matches the paths used by MCP clients of the HTTP+SSE transport.
var DefaultRoutes = Routes{
	Single:   "/mcp",
	Connect:  "/sse",
	Messages: "/messages",
	Health:   "/health",
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the logger. If not provided, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMetrics records transport, session and delivery metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMaxBodyBytes bounds inbound request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) { h.codec = jsonrpc.Codec{MaxBytes: n} }
}

// WithKeepAlive sets the idle keep-alive interval for streams. Zero disables.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Handler) { h.keepAlive = d }
}

// WithRoutes overrides the served paths. Empty fields keep their defaults.
func WithRoutes(r Routes) Option {
	return func(h *Handler) {
		if r.Single != "" {
			h.routes.Single = r.Single
		}
		if r.Connect != "" {
			h.routes.Connect = r.Connect
		}
		if r.Messages != "" {
			h.routes.Messages = r.Messages
		}
		if r.Health != "" {
			h.routes.Health = r.Health
		}
	}
}

// WithRegistry supplies the session registry, typically to share it with
// other components.
func WithRegistry(reg *sessions.Registry) Option {
	return func(h *Handler) {
		if reg != nil {
			h.registry = reg
		}
	}
}

// WithRelay enables cross-process delivery.
func WithRelay(r sessions.Relay) Option {
	return func(h *Handler) { h.relay = r }
}
