package httphost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-http-go/internal/logctx"
	"github.com/ggoodman/mcp-http-go/internal/metrics"
	"github.com/ggoodman/mcp-http-go/sessions"
	"github.com/ggoodman/mcp-http-go/singlehttp"
	"github.com/ggoodman/mcp-http-go/streaminghttp"
	"github.com/ggoodman/mcp-http-go/transport"
)

var _ http.Handler = (*Handler)(nil)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaTypes = []contenttype.MediaType{contenttype.NewMediaType("text/event-stream")}
)

const (
	internalErrorMessage = "Internal MCP server error"
	releaseTimeout       = 5 * time.Second
)

// ConsumerFactory builds a fresh consumer for one transport.
type ConsumerFactory func() transport.Consumer

// Handler serves the protocol routes.
type Handler struct {
	newConsumer ConsumerFactory
	registry    *sessions.Registry
	relay       sessions.Relay
	codec       jsonrpc.Codec
	log         *slog.Logger
	metrics     *metrics.Metrics
	keepAlive   time.Duration
	routes      Routes
	mux         *http.ServeMux
	closing     atomic.Bool
}

// New constructs a Handler. When a relay is configured, New starts a
// goroutine applying forwarded deliveries until ctx is done.
func New(ctx context.Context, newConsumer ConsumerFactory, opts ...Option) *Handler {
	h := &Handler{
		newConsumer: newConsumer,
		registry:    sessions.NewRegistry(),
		log:         slog.Default(),
		routes:      DefaultRoutes,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.mux = http.NewServeMux()
	h.mux.HandleFunc("POST "+h.routes.Single, h.handleSingle)
	h.mux.HandleFunc("GET "+h.routes.Connect, h.handleConnect)
	h.mux.HandleFunc("POST "+h.routes.Messages, h.handleDeliver)
	h.mux.HandleFunc("GET "+h.routes.Health, h.handleHealth)

	if h.relay != nil {
		go h.listenRelay(ctx)
	}
	return h
}

// Registry returns the session registry.
func (h *Handler) Registry() *sessions.Registry {
	return h.registry
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

// Shutdown stops accepting new sessions and closes the open ones, waiting at
// most until ctx is done.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.closing.Store(true)
	n := h.registry.Len()
	err := h.registry.Shutdown(ctx)
	h.log.InfoContext(ctx, "host.shutdown", slog.Int("sessions", n))
	return err
}

func (h *Handler) handleSingle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !isJSONRequest(r) {
		writeRPCError(w, http.StatusUnsupportedMediaType, jsonrpc.ErrorCodeInvalidRequest, "Content-Type must be application/json")
		h.log.WarnContext(ctx, "http.single.content_type.fail", slog.String("content_type", r.Header.Get("Content-Type")))
		return
	}

	t := singlehttp.New(w, r,
		singlehttp.WithCodec(h.codec),
		singlehttp.WithLogger(h.log),
		singlehttp.WithMetrics(h.metrics),
	)
	t.OnError(func(err error) {
		h.log.WarnContext(ctx, "http.single.error", slog.String("err", err.Error()))
	})
	h.log.DebugContext(ctx, "http.single.start")

	err := h.attach(ctx, t)
	if err == nil && !t.Started() {
		err = h.safely(func() error { return t.Start(ctx) })
	}
	if err != nil {
		h.log.ErrorContext(ctx, "http.single.attach.fail", slog.String("err", err.Error()))
		t.Fail(http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, internalErrorMessage)
		_ = t.Close()
		return
	}

	select {
	case <-t.Done():
	case <-ctx.Done():
		h.log.InfoContext(ctx, "http.single.client.gone")
	}
	_ = t.Close()
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.closing.Load() {
		writeJSONError(w, http.StatusServiceUnavailable, "Server is shutting down")
		return
	}
	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		writeJSONError(w, http.StatusNotAcceptable, "Accept must allow text/event-stream")
		h.log.WarnContext(ctx, "sse.accept.fail", slog.String("accept", r.Header.Get("Accept")))
		return
	}

	consumer, err := h.consumer()
	if err != nil {
		h.log.ErrorContext(ctx, "session.consumer.fail", slog.String("err", err.Error()))
		writeRPCError(w, http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, internalErrorMessage)
		return
	}

	st := streaminghttp.New(w, r,
		streaminghttp.WithLogger(h.log),
		streaminghttp.WithMetrics(h.metrics),
		streaminghttp.WithEndpoint(h.routes.Messages),
		streaminghttp.WithKeepAlive(h.keepAlive),
	)
	id := st.SessionID()
	sctx := st.Context()

	// Register before Start announces the id so no delivery can miss it.
	entry, err := h.registry.Create(id, st, consumer)
	if err != nil {
		h.log.ErrorContext(sctx, "session.create.fail", slog.String("err", err.Error()))
		writeRPCError(w, http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, internalErrorMessage)
		_ = st.Close()
		return
	}
	if h.relay != nil {
		if err := h.relay.Claim(ctx, id); err != nil {
			h.log.ErrorContext(sctx, "session.claim.fail", slog.String("err", err.Error()))
			h.registry.Remove(id)
			writeRPCError(w, http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, internalErrorMessage)
			_ = st.Close()
			return
		}
	}
	h.metrics.SessionOpened()

	st.OnError(func(err error) {
		h.log.WarnContext(sctx, "session.error", slog.String("err", err.Error()))
	})
	st.OnClose(func() {
		h.registry.Remove(id)
		if h.relay != nil {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(sctx), releaseTimeout)
			defer cancel()
			if err := h.relay.Release(rctx, id); err != nil {
				h.log.WarnContext(sctx, "session.release.fail", slog.String("err", err.Error()))
			}
		}
		age := time.Since(entry.CreatedAt)
		h.metrics.SessionClosed(age)
		h.log.InfoContext(sctx, "session.close", slog.Duration("age", age))
	})
	h.log.InfoContext(sctx, "session.create.ok")

	err = h.safely(func() error { return consumer.Attach(sctx, st) })
	if err == nil && !st.Started() {
		err = st.Start(sctx)
	}
	if err != nil {
		h.log.ErrorContext(sctx, "session.attach.fail", slog.String("err", err.Error()))
		if !st.Started() {
			writeRPCError(w, http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, internalErrorMessage)
		}
		_ = st.Close()
		return
	}

	<-st.Done()
}

func (h *Handler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		h.metrics.Delivery(metrics.DeliveryBadID)
		writeJSONError(w, http.StatusBadRequest, "Missing sessionId query parameter")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		h.metrics.Delivery(metrics.DeliveryBadID)
		writeJSONError(w, http.StatusBadRequest, "Invalid sessionId query parameter")
		return
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: id, Transport: metrics.TransportStreaming})

	entry, err := h.registry.Lookup(id)
	if err != nil && h.relay == nil {
		h.notFound(ctx, w)
		return
	}

	msg, err := h.readDelivery(r)
	if err != nil {
		h.metrics.Delivery(metrics.DeliveryInvalid)
		h.metrics.DecodeError(metrics.TransportStreaming, err)
		h.log.WarnContext(ctx, "delivery.decode.fail", slog.String("err", err.Error()))
		var tooLarge *jsonrpc.TooLargeError
		if errors.As(err, &tooLarge) {
			writeRPCError(w, http.StatusRequestEntityTooLarge, jsonrpc.ErrorCodeInvalidRequest, tooLarge.Error())
			return
		}
		writeRPCError(w, http.StatusBadRequest, jsonrpc.ErrorCodeParseError, fmt.Sprintf("Invalid JSON-RPC message: %v", err))
		return
	}
	ctx = logctx.WithRPCMessage(ctx, logctx.MessageData(msg))

	if entry == nil {
		h.forward(ctx, w, id, msg)
		return
	}

	err = h.safely(func() error { return entry.Transport.Deliver(ctx, msg) })
	if err != nil {
		if errors.Is(err, transport.ErrClosed) {
			h.notFound(ctx, w)
			return
		}
		h.log.ErrorContext(ctx, "delivery.fail", slog.String("err", err.Error()))
		writeRPCError(w, http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, internalErrorMessage)
		return
	}
	h.metrics.Delivery(metrics.DeliveryAccepted)
	h.log.DebugContext(ctx, "delivery.ok")
	writeAccepted(w)
}

func (h *Handler) forward(ctx context.Context, w http.ResponseWriter, id string, msg *jsonrpc.AnyMessage) {
	payload, err := jsonrpc.Encode(msg)
	if err == nil {
		err = h.relay.Forward(ctx, id, payload)
	}
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		h.notFound(ctx, w)
	case err != nil:
		h.log.ErrorContext(ctx, "delivery.forward.fail", slog.String("err", err.Error()))
		writeRPCError(w, http.StatusBadGateway, jsonrpc.ErrorCodeInternalError, internalErrorMessage)
	default:
		h.metrics.Delivery(metrics.DeliveryForwarded)
		h.log.DebugContext(ctx, "delivery.forward.ok")
		writeAccepted(w)
	}
}

func (h *Handler) notFound(ctx context.Context, w http.ResponseWriter) {
	h.metrics.Delivery(metrics.DeliveryNotFound)
	h.log.InfoContext(ctx, "delivery.session.miss")
	writeJSONError(w, http.StatusNotFound, "Session not found or expired")
}

func (h *Handler) readDelivery(r *http.Request) (*jsonrpc.AnyMessage, error) {
	if err := h.codec.CheckLength(r.ContentLength); err != nil {
		return nil, err
	}
	body, err := h.codec.ReadBody(r.Body)
	if err != nil {
		return nil, err
	}
	return h.codec.Decode(body, r.Header.Get("Content-Type"))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) listenRelay(ctx context.Context) {
	h.log.InfoContext(ctx, "relay.listen.start")
	err := h.relay.Listen(ctx, h.applyForwarded)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.ErrorContext(ctx, "relay.listen.fail", slog.String("err", err.Error()))
	}
}

func (h *Handler) applyForwarded(ctx context.Context, id string, payload []byte) {
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: id, Transport: metrics.TransportStreaming})
	entry, err := h.registry.Lookup(id)
	if err != nil {
		h.log.InfoContext(ctx, "relay.session.miss")
		return
	}
	msg, err := h.codec.Decode(payload, "")
	if err != nil {
		h.log.WarnContext(ctx, "relay.decode.fail", slog.String("err", err.Error()))
		return
	}
	// The listener serves every session; consumers run off its goroutine.
	go func() {
		err := h.safely(func() error { return entry.Transport.Deliver(ctx, msg) })
		if err != nil {
			h.log.WarnContext(ctx, "relay.deliver.fail", slog.String("err", err.Error()))
			return
		}
		h.metrics.Delivery(metrics.DeliveryAccepted)
	}()
}

// attach builds a consumer and hands it t.
func (h *Handler) attach(ctx context.Context, t transport.Transport) error {
	c, err := h.consumer()
	if err != nil {
		return err
	}
	return h.safely(func() error { return c.Attach(ctx, t) })
}

func (h *Handler) consumer() (c transport.Consumer, err error) {
	err = h.safely(func() error {
		c = h.newConsumer()
		return nil
	})
	if err == nil && c == nil {
		err = errors.New("consumer factory returned nil")
	}
	return c, err
}

// safely runs fn, converting a panic into an error.
func (h *Handler) safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("consumer panic: %v", p)
		}
	}()
	return fn()
}

func isJSONRequest(r *http.Request) bool {
	if r.Header.Get("Content-Type") == "" {
		return true
	}
	ct, err := contenttype.GetMediaType(r)
	if err != nil {
		return false
	}
	return ct.Type == jsonMediaType.Type && ct.Subtype == jsonMediaType.Subtype
}
