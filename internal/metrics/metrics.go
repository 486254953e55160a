// Package metrics provides Prometheus collectors for the transports and the
// session registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/prometheus/client_golang/prometheus"
)

// Transport labels.
const (
	TransportSingle    = "single"
	TransportStreaming = "streaming"
	TransportStdio     = "stdio"
)

// Delivery outcomes.
const (
	DeliveryAccepted  = "accepted"
	DeliveryForwarded = "forwarded"
	DeliveryNotFound  = "not_found"
	DeliveryBadID     = "bad_session_id"
	DeliveryInvalid   = "invalid_body"
)

// Metrics groups the collectors registered by the server.
type Metrics struct {
	messages        *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionDuration prometheus.Histogram
	deliveries      *prometheus.CounterVec
}

// New constructs unregistered collectors.
func New() *Metrics {
	return &Metrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_transport_messages_total",
				Help: "Protocol messages handled by transports",
			},
			[]string{"transport", "direction", "kind"},
		),
		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_transport_decode_errors_total",
				Help: "Inbound payloads rejected by the codec",
			},
			[]string{"transport", "reason"},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mcp_sessions_active",
				Help: "Streaming sessions currently registered",
			},
		),
		sessionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mcp_sessions_created_total",
				Help: "Streaming sessions created",
			},
		),
		sessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mcp_session_duration_seconds",
				Help:    "Lifetime of streaming sessions",
				Buckets: []float64{1, 10, 60, 300, 900, 3600, 4 * 3600, 24 * 3600},
			},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_deliveries_total",
				Help: "Delivery requests by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.messages,
		m.decodeErrors,
		m.sessionsActive,
		m.sessionsCreated,
		m.sessionDuration,
		m.deliveries,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MessageIn records a decoded inbound message.
func (m *Metrics) MessageIn(transport string, kind jsonrpc.Kind) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(transport, "in", string(kind)).Inc()
}

// MessageOut records a written outbound message.
func (m *Metrics) MessageOut(transport string, kind jsonrpc.Kind) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(transport, "out", string(kind)).Inc()
}

// DecodeError records a rejected payload, classified by the codec error type.
func (m *Metrics) DecodeError(transport string, err error) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(transport, Reason(err)).Inc()
}

// SessionOpened records a registered streaming session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
	m.sessionsActive.Inc()
}

// SessionClosed records the removal of a session that lived for d.
func (m *Metrics) SessionClosed(d time.Duration) {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessionDuration.Observe(d.Seconds())
}

// Delivery records the outcome of a delivery request.
func (m *Metrics) Delivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

// Reason maps a codec error to a low-cardinality label.
func Reason(err error) string {
	var (
		pe *jsonrpc.ParseError
		se *jsonrpc.SchemaError
		tl *jsonrpc.TooLargeError
	)
	switch {
	case errors.As(err, &tl):
		return "too_large"
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &se):
		return "schema"
	default:
		return "read"
	}
}
