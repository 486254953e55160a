// Package httphost mounts the transports on a net/http handler.
//
// Routes (paths configurable with WithRoutes)
//
//	POST /mcp                 single-request exchange, one reply per request
//	GET  /sse                 open a streaming session
//	POST /messages?sessionId= deliver one message to a streaming session
//	GET  /health              liveness check
//
// Every request gets its own consumer from the ConsumerFactory: stateless
// requests get a throwaway consumer, streaming sessions keep theirs for the
// life of the stream. Streaming sessions are tracked in a sessions.Registry
// and, when a sessions.Relay is configured, claimed there too so deliveries
// arriving at another replica are forwarded to the replica that holds the
// stream.
//
// Construction
//
//	h := httphost.New(ctx, func() transport.Consumer { return echo.New() },
//	    httphost.WithLogger(log),
//	    httphost.WithKeepAlive(25*time.Second),
//	)
//	srv := &http.Server{Addr: ":8787", Handler: h}
//	srv.RegisterOnShutdown(func() { _ = h.Shutdown(shutdownCtx) })
//
// The ctx passed to New bounds background work (the relay listener).
package httphost
