package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
)

func TestHandlerAddsContextGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewJSONHandler(&buf, nil)}).With(slog.String("component", "test"))

	msg, err := jsonrpc.NewRequest(jsonrpc.NewRequestID(7), "tools/call", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	ctx := WithRequestData(context.Background(), &RequestData{RequestID: "r1", Method: "POST", Path: "/messages"})
	ctx = WithSessionData(ctx, &SessionData{SessionID: "s1", Transport: "streaming"})
	ctx = WithRPCMessage(ctx, MessageData(msg))
	log.InfoContext(ctx, "delivery.ok")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %s: %v", buf.Bytes(), err)
	}
	if want, got := "test", rec["component"]; want != got {
		t.Fatalf("WithAttrs lost the wrapper: want %v got %v", want, got)
	}
	req, _ := rec["req"].(map[string]any)
	if want, got := "r1", req["id"]; want != got {
		t.Fatalf("req.id: want %v got %v", want, got)
	}
	sess, _ := rec["sess"].(map[string]any)
	if want, got := "s1", sess["id"]; want != got {
		t.Fatalf("sess.id: want %v got %v", want, got)
	}
	rpc, _ := rec["rpc"].(map[string]any)
	if want, got := "7", rpc["id"]; want != got {
		t.Fatalf("rpc.id: want %v got %v", want, got)
	}
	if want, got := "request", rpc["type"]; want != got {
		t.Fatalf("rpc.type: want %v got %v", want, got)
	}
}
