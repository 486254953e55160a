package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	req, err := NewRequest(NewRequestID(1), "ping", map[string]any{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	strReq, err := NewRequest(NewRequestID("abc"), "tools/call", map[string]any{"name": "echo"})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	note, err := NewNotification("notifications/initialized", nil)
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}
	res, err := NewResult(NewRequestID(1), "pong")
	if err != nil {
		t.Fatalf("NewResult: %v", err)
	}
	nullRes, err := NewResult(NewRequestID(2.5), nil)
	if err != nil {
		t.Fatalf("NewResult: %v", err)
	}

	cases := map[string]*AnyMessage{
		"request":           req,
		"string id request": strReq,
		"notification":      note,
		"result":            res,
		"null result":       nullRes,
		"error":             NewError(NewRequestID(7), ErrorCodeMethodNotFound, "method not found", "nope"),
		"error without id":  NewError(nil, ErrorCodeParseError, "bad", nil),
	}

	var codec Codec
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			b, err := codec.Encode(msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := codec.Decode(b, "application/json")
			if err != nil {
				t.Fatalf("Decode(%s): %v", b, err)
			}
			if !reflect.DeepEqual(msg, got) {
				t.Fatalf("round trip mismatch:\nwant %#v\ngot  %#v", msg, got)
			}
			if want, got := msg.Kind(), got.Kind(); want != got {
				t.Fatalf("kind mismatch: want %s got %s", want, got)
			}
		})
	}
}

func TestCodecDecodeParseErrors(t *testing.T) {
	var codec Codec
	for _, raw := range []string{"{", "", "not json", `{"jsonrpc":"2.0",}`, "\xff\xfe"} {
		_, err := codec.Decode([]byte(raw), "")
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Decode(%q): want ParseError, got %v", raw, err)
		}
	}
}

func TestCodecDecodeSchemaErrors(t *testing.T) {
	var codec Codec
	cases := map[string]string{
		"batch":               `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`,
		"scalar":              `42`,
		"wrong version":       `{"jsonrpc":"1.0","id":1,"method":"ping"}`,
		"missing version":     `{"id":1,"method":"ping"}`,
		"bool id":             `{"jsonrpc":"2.0","id":true,"method":"ping"}`,
		"object id":           `{"jsonrpc":"2.0","id":{},"method":"ping"}`,
		"request with result": `{"jsonrpc":"2.0","id":1,"method":"ping","result":1}`,
		"empty response":      `{"jsonrpc":"2.0","id":1}`,
		"result and error":    `{"jsonrpc":"2.0","id":1,"result":1,"error":{"code":1,"message":"x"}}`,
		"error without code":  `{"jsonrpc":"2.0","id":1,"error":{"message":"x"}}`,
		"scalar params":       `{"jsonrpc":"2.0","id":1,"method":"ping","params":3}`,
		"numeric method":      `{"jsonrpc":"2.0","id":1,"method":5}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode([]byte(raw), "application/json")
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("want SchemaError, got %v", err)
			}
		})
	}
}

func TestCodecDecodeKinds(t *testing.T) {
	var codec Codec
	cases := []struct {
		raw  string
		kind Kind
	}{
		{`{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`, KindRequest},
		{`{"jsonrpc":"2.0","id":"a","method":"ping"}`, KindRequest},
		{`{"jsonrpc":"2.0","method":"notifications/initialized"}`, KindNotification},
		{`{"jsonrpc":"2.0","id":null,"method":"notifications/initialized"}`, KindNotification},
		{`{"jsonrpc":"2.0","id":1,"result":"pong"}`, KindResponse},
		{`{"jsonrpc":"2.0","id":1,"result":null}`, KindResponse},
		{`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"nope"}}`, KindErrorResponse},
	}
	for _, tc := range cases {
		msg, err := codec.Decode([]byte(tc.raw), "")
		if err != nil {
			t.Fatalf("Decode(%s): %v", tc.raw, err)
		}
		if want, got := tc.kind, msg.Kind(); want != got {
			t.Fatalf("Decode(%s): want kind %s got %s", tc.raw, want, got)
		}
	}
}

func TestCodecCharset(t *testing.T) {
	var codec Codec
	// "café" in ISO-8859-1.
	raw := []byte("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"caf\xe9\"}")

	if _, err := codec.Decode(raw, "application/json"); err == nil {
		t.Fatalf("expected latin-1 bytes to be rejected as UTF-8")
	}

	msg, err := codec.Decode(raw, "application/json; charset=ISO-8859-1")
	if err != nil {
		t.Fatalf("Decode latin-1: %v", err)
	}
	if want, got := "café", msg.Method; want != got {
		t.Fatalf("unexpected method: want %q got %q", want, got)
	}

	_, err = codec.Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`), "application/json; charset=x-unknown-charset")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError for unknown charset, got %v", err)
	}
}

func TestCodecSizeLimit(t *testing.T) {
	codec := Codec{MaxBytes: 32}
	big := `{"jsonrpc":"2.0","id":1,"method":"` + strings.Repeat("a", 64) + `"}`

	_, err := codec.ReadBody(bytes.NewBufferString(big))
	var tl *TooLargeError
	if !errors.As(err, &tl) {
		t.Fatalf("ReadBody: want TooLargeError, got %v", err)
	}
	if want, got := int64(32), tl.Limit; want != got {
		t.Fatalf("unexpected limit: want %d got %d", want, got)
	}

	if _, err := codec.Decode([]byte(big), ""); !errors.As(err, &tl) {
		t.Fatalf("Decode: want TooLargeError, got %v", err)
	}
	if err := codec.CheckLength(33); !errors.As(err, &tl) {
		t.Fatalf("CheckLength: want TooLargeError, got %v", err)
	}
	if err := codec.CheckLength(-1); err != nil {
		t.Fatalf("CheckLength(-1): unexpected error %v", err)
	}

	small := `{"jsonrpc":"2.0","method":"a"}`
	b, err := codec.ReadBody(bytes.NewBufferString(small))
	if err != nil {
		t.Fatalf("ReadBody small: %v", err)
	}
	if string(b) != small {
		t.Fatalf("unexpected body %q", b)
	}
}

func TestEncodeErrorShape(t *testing.T) {
	b, err := Encode(NewError(nil, ErrorCodeParseError, "Invalid JSON-RPC message", nil))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["id"]; ok {
		t.Fatalf("unexpected id in %s", b)
	}
	e, _ := m["error"].(map[string]any)
	if want, got := float64(-32700), e["code"]; want != got {
		t.Fatalf("unexpected code: want %v got %v", want, got)
	}
}
