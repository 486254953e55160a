package stdio_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-http-go/stdio"
	"github.com/ggoodman/mcp-http-go/transport"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// harness wires a transport to a pair of pipes and collects output lines.
type harness struct {
	t     *testing.T
	tr    *stdio.Transport
	in    *io.PipeWriter
	lines chan string
}

func newHarness(t *testing.T, opts ...stdio.Option) *harness {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	opts = append([]stdio.Option{stdio.WithIO(inR, outW), stdio.WithLogger(discard)}, opts...)
	h := &harness{t: t, tr: stdio.New(opts...), in: inW, lines: make(chan string, 16)}

	go func() {
		sc := bufio.NewScanner(outR)
		for sc.Scan() {
			h.lines <- sc.Text()
		}
	}()

	t.Cleanup(func() {
		_ = h.tr.Close()
		_ = inW.Close()
		_ = outW.Close()
	})
	return h
}

// pong answers every request with "pong".
func (h *harness) pong() {
	h.tr.OnMessage(func(ctx context.Context, msg *jsonrpc.AnyMessage) {
		if !msg.ExpectsReply() {
			return
		}
		res, _ := jsonrpc.NewResult(msg.ID, "pong")
		_ = h.tr.Send(ctx, res)
	})
}

func (h *harness) write(line string) {
	h.t.Helper()
	if _, err := io.WriteString(h.in, line); err != nil {
		h.t.Fatalf("write: %v", err)
	}
}

func (h *harness) next() string {
	h.t.Helper()
	select {
	case line := <-h.lines:
		return line
	case <-time.After(2 * time.Second):
		h.t.Fatalf("timed out waiting for output")
		return ""
	}
}

func TestRequestReply(t *testing.T) {
	h := newHarness(t)
	h.pong()
	if err := h.tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.write(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	if want, got := `{"jsonrpc":"2.0","id":1,"result":"pong"}`, h.next(); want != got {
		t.Fatalf("unexpected reply:\nwant %s\ngot  %s", want, got)
	}

	// CRLF terminators and blank lines are tolerated.
	h.write("\r\n" + `{"jsonrpc":"2.0","id":"b","method":"ping"}` + "\r\n")
	if want, got := `{"jsonrpc":"2.0","id":"b","result":"pong"}`, h.next(); want != got {
		t.Fatalf("unexpected reply:\nwant %s\ngot  %s", want, got)
	}
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t)
	if err := h.tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.tr.Start(context.Background()); !errors.Is(err, transport.ErrAlreadyStarted) {
		t.Fatalf("want ErrAlreadyStarted, got %v", err)
	}
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		line string
		code jsonrpc.ErrorCode
	}{
		{name: "malformed", line: `{`, code: jsonrpc.ErrorCodeParseError},
		{name: "not an envelope", line: `{"jsonrpc":"1.0","id":1,"method":"ping"}`, code: jsonrpc.ErrorCodeInvalidRequest},
		{name: "batch", line: `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, code: jsonrpc.ErrorCodeInvalidRequest},
		{name: "too long", line: `{"jsonrpc":"2.0","id":1,"method":"` + strings.Repeat("x", 256) + `"}`, code: jsonrpc.ErrorCodeInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, stdio.WithCodec(jsonrpc.Codec{MaxBytes: 128}))
			var (
				mu   sync.Mutex
				errs int
			)
			h.tr.OnError(func(error) {
				mu.Lock()
				errs++
				mu.Unlock()
			})
			h.tr.OnMessage(func(ctx context.Context, msg *jsonrpc.AnyMessage) {
				if msg.Method != "ping" || msg.ID.String() != "2" {
					t.Errorf("unexpected message delivered: %+v", msg)
				}
				res, _ := jsonrpc.NewResult(msg.ID, "pong")
				_ = h.tr.Send(ctx, res)
			})
			if err := h.tr.Start(context.Background()); err != nil {
				t.Fatalf("Start: %v", err)
			}

			h.write(tc.line + "\n")
			var reply jsonrpc.AnyMessage
			if err := json.Unmarshal([]byte(h.next()), &reply); err != nil {
				t.Fatalf("reply is not a message: %v", err)
			}
			if reply.Error == nil {
				t.Fatalf("want error reply, got %+v", reply)
			}
			if want, got := tc.code, reply.Error.Code; want != got {
				t.Fatalf("error code: want %d got %d", want, got)
			}
			if reply.ID != nil {
				t.Fatalf("error reply must carry a null id, got %s", reply.ID.String())
			}

			// The transport keeps reading after a bad line.
			h.write(`{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
			if want, got := `{"jsonrpc":"2.0","id":2,"result":"pong"}`, h.next(); want != got {
				t.Fatalf("unexpected reply:\nwant %s\ngot  %s", want, got)
			}
			mu.Lock()
			defer mu.Unlock()
			if want, got := 1, errs; want != got {
				t.Fatalf("OnError calls: want %d got %d", want, got)
			}
		})
	}
}

func TestEOFCloses(t *testing.T) {
	h := newHarness(t)
	closed := make(chan struct{})
	h.tr.OnClose(func() { close(closed) })
	if err := h.tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_ = h.in.Close()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("transport did not close on EOF")
	}
	res, _ := jsonrpc.NewResult(jsonrpc.NewRequestID(1), "late")
	if err := h.tr.Send(context.Background(), res); err != nil {
		t.Fatalf("Send after close: %v", err)
	}
}

func TestContextCancelCloses(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	select {
	case <-h.tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("transport did not close on cancel")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteFailureCloses(t *testing.T) {
	tr := stdio.New(stdio.WithIO(strings.NewReader(""), failingWriter{}), stdio.WithLogger(discard))
	var errs int
	tr.OnError(func(error) { errs++ })

	res, _ := jsonrpc.NewResult(jsonrpc.NewRequestID(1), "pong")
	if err := tr.Send(context.Background(), res); err == nil {
		t.Fatalf("expected Send to fail")
	}
	select {
	case <-tr.Done():
	default:
		t.Fatalf("transport must close after a failed write")
	}
	if want, got := 1, errs; want != got {
		t.Fatalf("OnError calls: want %d got %d", want, got)
	}
}
