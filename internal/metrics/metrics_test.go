package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	m.MessageIn(TransportSingle, jsonrpc.KindRequest)
	m.MessageIn(TransportSingle, jsonrpc.KindRequest)
	m.MessageOut(TransportStreaming, jsonrpc.KindResponse)
	m.DecodeError(TransportSingle, &jsonrpc.ParseError{Err: errors.New("x")})
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed(time.Second)
	m.Delivery(DeliveryNotFound)

	if want, got := 2.0, testutil.ToFloat64(m.messages.WithLabelValues(TransportSingle, "in", "request")); want != got {
		t.Fatalf("messages in: want %v got %v", want, got)
	}
	if want, got := 1.0, testutil.ToFloat64(m.messages.WithLabelValues(TransportStreaming, "out", "response")); want != got {
		t.Fatalf("messages out: want %v got %v", want, got)
	}
	if want, got := 1.0, testutil.ToFloat64(m.decodeErrors.WithLabelValues(TransportSingle, "parse")); want != got {
		t.Fatalf("decode errors: want %v got %v", want, got)
	}
	if want, got := 1.0, testutil.ToFloat64(m.sessionsActive); want != got {
		t.Fatalf("active sessions: want %v got %v", want, got)
	}
	if want, got := 2.0, testutil.ToFloat64(m.sessionsCreated); want != got {
		t.Fatalf("created sessions: want %v got %v", want, got)
	}
	if want, got := 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues(DeliveryNotFound)); want != got {
		t.Fatalf("deliveries: want %v got %v", want, got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.MessageIn(TransportSingle, jsonrpc.KindRequest)
	m.DecodeError(TransportSingle, errors.New("x"))
	m.SessionOpened()
	m.SessionClosed(time.Second)
	m.Delivery(DeliveryAccepted)
}

func TestReason(t *testing.T) {
	cases := map[string]error{
		"too_large": &jsonrpc.TooLargeError{Limit: 1},
		"parse":     &jsonrpc.ParseError{Err: errors.New("x")},
		"schema":    &jsonrpc.SchemaError{Err: errors.New("x")},
		"read":      errors.New("connection reset"),
	}
	for want, err := range cases {
		if got := Reason(err); want != got {
			t.Fatalf("Reason(%v): want %s got %s", err, want, got)
		}
	}
}
